package simplify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sneharawat080/medsimplify/internal/testutil"
	"github.com/sneharawat080/medsimplify/pkg/errors"
)

func TestExtractorRegistry_Dispatch(t *testing.T) {
	r := DefaultExtractors()
	ctx := context.Background()

	assert.True(t, r.Supports("text/plain"))
	assert.True(t, r.Supports("TEXT/PLAIN; charset=utf-8"))
	assert.True(t, r.Supports(MediaPDF))
	assert.False(t, r.Supports(MediaPNG))
	assert.False(t, r.Supports("application/zip"))
	assert.Contains(t, r.Accepted(), MediaJPEG)

	text, err := r.Extract(ctx, &Document{ContentType: MediaTextPlain, Data: []byte("Sodium: 140")})
	require.NoError(t, err)
	assert.Equal(t, "Sodium: 140", text)

	for _, ct := range []string{MediaPNG, MediaJPEG, "image/jpg", "", "not a/type/at all"} {
		_, err := r.Extract(ctx, &Document{ContentType: ct, Data: []byte("x")})
		assert.True(t, errors.IsCode(err, errors.ErrCodeUnsupportedMedia), ct)
	}
}

func TestExtractorRegistry_CustomExtractor(t *testing.T) {
	r := NewExtractorRegistry()
	r.Register("application/x-lab", TextExtractorFunc(func(_ context.Context, doc *Document) (string, error) {
		return "Potassium: " + string(doc.Data), nil
	}))

	text, err := r.Extract(context.Background(), &Document{ContentType: "application/x-lab", Data: []byte("4.1")})
	require.NoError(t, err)
	assert.Equal(t, "Potassium: 4.1", text)
}

func TestPlainTextExtractor_Encodings(t *testing.T) {
	x := PlainTextExtractor{}
	ctx := context.Background()

	text, err := x.Extract(ctx, &Document{Data: []byte("\xEF\xBB\xBFNa 140")})
	require.NoError(t, err)
	assert.Equal(t, "Na 140", text)

	// "Na" as UTF-16LE with BOM.
	text, err = x.Extract(ctx, &Document{Data: []byte{0xFF, 0xFE, 'N', 0, 'a', 0}})
	require.NoError(t, err)
	assert.Equal(t, "Na", text)

	_, err = x.Extract(ctx, &Document{Filename: "bad.txt", Data: []byte{'a', 0xC3, 0x28}})
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestPDFTextExtractor(t *testing.T) {
	doc := &Document{
		Filename:    "report.pdf",
		ContentType: MediaPDF,
		Data:        testutil.PDFDocument("Glucose: 108 mg/dL (70-100)", "Sodium: 140 mmol/L"),
	}
	text, err := DefaultExtractors().Extract(context.Background(), doc)
	require.NoError(t, err)
	assert.Contains(t, text, "Glucose: 108 mg/dL (70-100)")
	assert.Contains(t, text, "Sodium: 140 mmol/L")
}

func TestPDFTextExtractor_Unreadable(t *testing.T) {
	x := PDFTextExtractor{}
	ctx := context.Background()

	_, err := x.Extract(ctx, &Document{Filename: "scan.pdf", Data: []byte("%PDF-1.4 truncated")})
	assert.True(t, errors.IsCode(err, errors.ErrCodeSimplifyUnreadable))

	_, err = x.Extract(ctx, &Document{Filename: "blank.pdf", Data: testutil.PDFDocument()})
	assert.True(t, errors.IsCode(err, errors.ErrCodeSimplifyUnreadable))
}
