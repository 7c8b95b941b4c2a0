package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/sneharawat080/medsimplify/internal/application/simplify"
	"github.com/sneharawat080/medsimplify/internal/intelligence/lab_kb"
	"github.com/sneharawat080/medsimplify/internal/intelligence/report_builder"
	"github.com/sneharawat080/medsimplify/pkg/types/lab"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const sampleReport = "Hemoglobin: 14.2 g/dL (13.8-17.2)\nGlucose: 108 mg/dL (70-100)"

func newService(t *testing.T) simplify.Service {
	t.Helper()
	engine, err := report_builder.New(lab_kb.MustLoadEmbedded())
	require.NoError(t, err)
	return simplify.NewService(engine, nil)
}

func newSimplifyRouter(h *SimplifyHandler) *gin.Engine {
	r := gin.New()
	r.POST("/api/simplify-text", h.SimplifyText)
	r.POST("/api/simplify", h.SimplifyFile)
	r.GET("/api/kb/tests", h.ListTests)
	r.GET("/api/kb/tests/:name", h.GetTest)
	return r
}

func multipartBody(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	if contentType != "" {
		hdr.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func do(h http.Handler, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// stubService returns fixed errors for error-mapping tests.
type stubService struct {
	simplify.Service
	err error
}

func (s stubService) SimplifyText(context.Context, *lab.SimplifyTextRequest) (*lab.SimplifyResponse, error) {
	return nil, s.err
}
