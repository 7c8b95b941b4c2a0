package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sneharawat080/medsimplify/internal/testutil"
	"github.com/sneharawat080/medsimplify/pkg/errors"
	"github.com/sneharawat080/medsimplify/pkg/types/lab"
)

func decodeError(t *testing.T, body *bytes.Buffer) lab.ErrorDetail {
	t.Helper()
	var eb lab.ErrorBody
	require.NoError(t, json.Unmarshal(body.Bytes(), &eb))
	return eb.Error
}

func TestSimplifyText_Success(t *testing.T) {
	r := newSimplifyRouter(NewSimplifyHandler(newService(t), nil, 0))

	body, _ := json.Marshal(lab.SimplifyTextRequest{Text: sampleReport})
	w := do(r, http.MethodPost, "/api/simplify-text", bytes.NewBuffer(body), "application/json")

	require.Equal(t, http.StatusOK, w.Code)
	var resp lab.SimplifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.NotEmpty(t, resp.ReportID)
	assert.Equal(t, 2, resp.Summary.TestsFound)
	assert.Equal(t, 1, resp.Summary.StatusCounts[lab.StatusHigh])
	require.Len(t, resp.Categories, 2)
}

func TestSimplifyText_Errors(t *testing.T) {
	r := newSimplifyRouter(NewSimplifyHandler(newService(t), nil, 0))

	tests := []struct {
		name   string
		body   string
		status int
		code   errors.ErrorCode
	}{
		{"empty body", "", http.StatusBadRequest, errors.ErrCodeSimplifyEmptyInput},
		{"missing text", `{}`, http.StatusBadRequest, errors.ErrCodeSimplifyEmptyInput},
		{"not json", `text=abc`, http.StatusBadRequest, errors.ErrCodeBadRequest},
		{"too long", `{"text":"` + strings.Repeat("a", 20001) + `"}`, http.StatusBadRequest, errors.ErrCodeSimplifyTextTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/simplify-text", bytes.NewBufferString(tt.body), "application/json")
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, string(tt.code), decodeError(t, w.Body).Code)
		})
	}
}

func TestSimplifyText_BodyTooLarge(t *testing.T) {
	r := newSimplifyRouter(NewSimplifyHandler(newService(t), nil, 64))
	w := do(r, http.MethodPost, "/api/simplify-text",
		bytes.NewBufferString(`{"text":"`+strings.Repeat("a", 100)+`"}`), "application/json")
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, string(errors.ErrCodePayloadTooLarge), decodeError(t, w.Body).Code)
}

func TestSimplifyText_InternalErrorIsMasked(t *testing.T) {
	log := testutil.NewMockLogger()
	svc := stubService{err: errors.New(errors.ErrCodeInternal, "secret database detail")}
	r := newSimplifyRouter(NewSimplifyHandler(svc, log, 0))

	w := do(r, http.MethodPost, "/api/simplify-text", bytes.NewBufferString(`{"text":"x"}`), "application/json")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	detail := decodeError(t, w.Body)
	assert.Equal(t, "internal server error", detail.Message)
	assert.NotContains(t, w.Body.String(), "secret")
	assert.True(t, log.HasMessage("error", "request failed"))
}

func TestSimplifyText_ForeignErrorBecomesInternal(t *testing.T) {
	svc := stubService{err: assert.AnError}
	r := newSimplifyRouter(NewSimplifyHandler(svc, nil, 0))

	w := do(r, http.MethodPost, "/api/simplify-text", bytes.NewBufferString(`{"text":"x"}`), "application/json")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, string(errors.ErrCodeInternal), decodeError(t, w.Body).Code)
}

func TestSimplifyFile(t *testing.T) {
	r := newSimplifyRouter(NewSimplifyHandler(newService(t), nil, 0))

	body, ct := multipartBody(t, "file", "report.txt", "text/plain", []byte(sampleReport))
	w := do(r, http.MethodPost, "/api/simplify", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp lab.SimplifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Summary.TestsFound)
}

func TestSimplifyFile_PDF(t *testing.T) {
	r := newSimplifyRouter(NewSimplifyHandler(newService(t), nil, 0))

	body, ct := multipartBody(t, "file", "report.pdf", "application/pdf", testutil.PDFDocument("Glucose: 108 mg/dL (70-100)"))
	w := do(r, http.MethodPost, "/api/simplify", body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp lab.SimplifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Summary.TestsFound)
	assert.Equal(t, 1, resp.Summary.StatusCounts[lab.StatusHigh])
}

func TestSimplifyFile_DetectsMissingContentType(t *testing.T) {
	r := newSimplifyRouter(NewSimplifyHandler(newService(t), nil, 0))

	body, ct := multipartBody(t, "file", "report.txt", "", []byte(sampleReport))
	w := do(r, http.MethodPost, "/api/simplify", body, ct)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestSimplifyFile_Errors(t *testing.T) {
	r := newSimplifyRouter(NewSimplifyHandler(newService(t), nil, 0))

	body, ct := multipartBody(t, "document", "report.txt", "text/plain", []byte(sampleReport))
	w := do(r, http.MethodPost, "/api/simplify", body, ct)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(errors.ErrCodeSimplifyNoFile), decodeError(t, w.Body).Code)

	w = do(r, http.MethodPost, "/api/simplify", bytes.NewBufferString(`{}`), "application/json")
	assert.Equal(t, string(errors.ErrCodeSimplifyNoFile), decodeError(t, w.Body).Code)

	body, ct = multipartBody(t, "file", "scan.png", "image/png", []byte("\x89PNG"))
	w = do(r, http.MethodPost, "/api/simplify", body, ct)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Equal(t, string(errors.ErrCodeUnsupportedMedia), decodeError(t, w.Body).Code)

	body, ct = multipartBody(t, "file", "broken.pdf", "application/pdf", []byte("%PDF-1.4"))
	w = do(r, http.MethodPost, "/api/simplify", body, ct)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, string(errors.ErrCodeSimplifyUnreadable), decodeError(t, w.Body).Code)

	body, ct = multipartBody(t, "file", "a.zip", "application/zip", []byte("PK"))
	w = do(r, http.MethodPost, "/api/simplify", body, ct)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	body, ct = multipartBody(t, "file", "empty.txt", "text/plain", nil)
	w = do(r, http.MethodPost, "/api/simplify", body, ct)
	assert.Equal(t, string(errors.ErrCodeSimplifyNoFile), decodeError(t, w.Body).Code)
}

func TestSimplifyFile_TooLarge(t *testing.T) {
	r := newSimplifyRouter(NewSimplifyHandler(newService(t), nil, 512))

	body, ct := multipartBody(t, "file", "big.txt", "text/plain", bytes.Repeat([]byte("a"), 4096))
	w := do(r, http.MethodPost, "/api/simplify", body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestListAndGetTests(t *testing.T) {
	r := newSimplifyRouter(NewSimplifyHandler(newService(t), nil, 0))

	w := do(r, http.MethodGet, "/api/kb/tests", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Version string          `json:"version"`
		Count   int             `json:"count"`
		Tests   []lab.KBTestDTO `json:"tests"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.NotEmpty(t, list.Version)
	assert.Equal(t, len(list.Tests), list.Count)
	assert.Greater(t, list.Count, 30)

	w = do(r, http.MethodGet, "/api/kb/tests/hgb", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"key":"hemoglobin"`)

	w = do(r, http.MethodGet, "/api/kb/tests/unobtainium", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, string(errors.ErrCodeKBTestNotFound), decodeError(t, w.Body).Code)
}
