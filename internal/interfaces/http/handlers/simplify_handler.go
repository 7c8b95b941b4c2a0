package handlers

import (
	stderrors "errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sneharawat080/medsimplify/internal/application/simplify"
	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/logging"
	"github.com/sneharawat080/medsimplify/pkg/errors"
	"github.com/sneharawat080/medsimplify/pkg/types/lab"
)

// DefaultMaxUploadSize bounds request bodies when none is configured.
const DefaultMaxUploadSize int64 = 10 << 20

// SimplifyHandler exposes the simplify service and the knowledge base
// listing.
type SimplifyHandler struct {
	service       simplify.Service
	logger        logging.Logger
	maxUploadSize int64
}

// NewSimplifyHandler creates a SimplifyHandler. maxUploadSize <= 0 selects
// DefaultMaxUploadSize.
func NewSimplifyHandler(service simplify.Service, logger logging.Logger, maxUploadSize int64) *SimplifyHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &SimplifyHandler{service: service, logger: logger, maxUploadSize: maxUploadSize}
}

// SimplifyText handles POST /api/simplify-text.
func (h *SimplifyHandler) SimplifyText(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)

	var req lab.SimplifyTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if isTooLarge(err) {
			writeError(c, errors.ErrCodePayloadTooLarge, "request body too large")
			return
		}
		if stderrors.Is(err, io.EOF) {
			writeError(c, errors.ErrCodeSimplifyEmptyInput, "no text provided")
			return
		}
		writeError(c, errors.ErrCodeBadRequest, "request body must be JSON with a text field")
		return
	}

	resp, err := h.service.SimplifyText(c.Request.Context(), &req)
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SimplifyFile handles POST /api/simplify with a multipart "file" field.
func (h *SimplifyHandler) SimplifyFile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)

	fh, err := c.FormFile("file")
	if err != nil {
		switch {
		case isTooLarge(err):
			writeError(c, errors.ErrCodePayloadTooLarge, "file too large")
		case stderrors.Is(err, http.ErrMissingFile), stderrors.Is(err, http.ErrNotMultipart):
			writeError(c, errors.ErrCodeSimplifyNoFile, "no file provided")
		default:
			writeError(c, errors.ErrCodeBadRequest, "invalid multipart body")
		}
		return
	}
	if fh.Filename == "" {
		writeError(c, errors.ErrCodeSimplifyNoFile, "no file selected")
		return
	}

	data, err := readUpload(fh)
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	resp, err := h.service.SimplifyDocument(c.Request.Context(), &simplify.Document{
		Filename:    fh.Filename,
		ContentType: contentType,
		Data:        data,
	})
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListTests handles GET /api/kb/tests.
func (h *SimplifyHandler) ListTests(c *gin.Context) {
	tests := h.service.ListTests(c.Request.Context())
	c.JSON(http.StatusOK, lab.KBTestList{
		Version: h.service.KnowledgeBaseVersion(),
		Count:   len(tests),
		Tests:   tests,
	})
}

// GetTest handles GET /api/kb/tests/:name. Any synonym resolves.
func (h *SimplifyHandler) GetTest(c *gin.Context) {
	dto, err := h.service.LookupTest(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "open uploaded file")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeBadRequest, "read uploaded file")
	}
	if len(data) == 0 {
		return nil, errors.New(errors.ErrCodeSimplifyNoFile, "uploaded file is empty").WithDetail(fh.Filename)
	}
	return data, nil
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return stderrors.As(err, &mbe)
}
