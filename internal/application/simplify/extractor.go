package simplify

import (
	"bytes"
	"context"
	"mime"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sneharawat080/medsimplify/pkg/errors"
)

// Media types recognised for uploads.
const (
	MediaTextPlain = "text/plain"
	MediaPDF       = "application/pdf"
	MediaPNG       = "image/png"
	MediaJPEG      = "image/jpeg"
)

// TextExtractor turns an uploaded document into report text.
type TextExtractor interface {
	Extract(ctx context.Context, doc *Document) (string, error)
}

// TextExtractorFunc adapts a function to TextExtractor.
type TextExtractorFunc func(ctx context.Context, doc *Document) (string, error)

func (f TextExtractorFunc) Extract(ctx context.Context, doc *Document) (string, error) {
	return f(ctx, doc)
}

// ExtractorRegistry dispatches documents by media type. A type registered
// with a nil extractor is recognised but unsupported.
type ExtractorRegistry struct {
	byType map[string]TextExtractor
}

// NewExtractorRegistry returns an empty registry.
func NewExtractorRegistry() *ExtractorRegistry {
	return &ExtractorRegistry{byType: make(map[string]TextExtractor)}
}

// DefaultExtractors supports plain text and text-layer PDFs. Images are
// recognised but unsupported.
func DefaultExtractors() *ExtractorRegistry {
	r := NewExtractorRegistry()
	r.Register(MediaTextPlain, PlainTextExtractor{})
	r.Register(MediaPDF, PDFTextExtractor{MaxPages: DefaultPDFMaxPages})
	r.Register(MediaPNG, nil)
	r.Register(MediaJPEG, nil)
	r.Register("image/jpg", nil)
	return r
}

// Register binds mediaType to x.
func (r *ExtractorRegistry) Register(mediaType string, x TextExtractor) {
	r.byType[strings.ToLower(mediaType)] = x
}

// Accepted lists every recognised media type, sorted.
func (r *ExtractorRegistry) Accepted() []string {
	out := make([]string, 0, len(r.byType))
	for t := range r.byType {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether contentType has a working extractor.
func (r *ExtractorRegistry) Supports(contentType string) bool {
	mt, _ := parseMediaType(contentType)
	x, ok := r.byType[mt]
	return ok && x != nil
}

// Extract runs the extractor registered for doc.ContentType.
func (r *ExtractorRegistry) Extract(ctx context.Context, doc *Document) (string, error) {
	mt, err := parseMediaType(doc.ContentType)
	if err != nil {
		return "", err
	}
	x, ok := r.byType[mt]
	if !ok {
		return "", errors.UnsupportedMedia("file type not supported").
			WithDetailf("%s; supported types: %s", mt, strings.Join(r.Accepted(), ", "))
	}
	if x == nil {
		return "", errors.UnsupportedMedia("text extraction is not available for this file type").WithDetail(mt)
	}
	return x.Extract(ctx, doc)
}

func parseMediaType(contentType string) (string, error) {
	if strings.TrimSpace(contentType) == "" {
		return "", errors.UnsupportedMedia("content type is missing")
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeUnsupportedMedia, "invalid content type").WithDetail(contentType)
	}
	return strings.ToLower(mt), nil
}

// PlainTextExtractor decodes text/plain uploads. A byte order mark selects
// UTF-16; otherwise the data must be UTF-8.
type PlainTextExtractor struct{}

func (PlainTextExtractor) Extract(_ context.Context, doc *Document) (string, error) {
	if !hasUTF16BOM(doc.Data) && !utf8.Valid(doc.Data) {
		return "", errors.New(errors.ErrCodeBadRequest, "text file is not valid UTF-8").WithDetail(doc.Filename)
	}
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, doc.Data)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeBadRequest, "decode text file").WithDetail(doc.Filename)
	}
	return string(out), nil
}

func hasUTF16BOM(b []byte) bool {
	return bytes.HasPrefix(b, []byte{0xFE, 0xFF}) || bytes.HasPrefix(b, []byte{0xFF, 0xFE})
}
