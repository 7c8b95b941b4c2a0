package simplify

import (
	"bytes"
	"context"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/sneharawat080/medsimplify/pkg/errors"
)

// DefaultPDFMaxPages bounds how many pages of an upload are read.
const DefaultPDFMaxPages = 50

// PDFTextExtractor reads the text layer of a PDF upload page by page.
// Scanned PDFs carry no text layer and are rejected as unreadable.
type PDFTextExtractor struct {
	MaxPages int
}

func (x PDFTextExtractor) Extract(ctx context.Context, doc *Document) (text string, err error) {
	// The parser panics on some malformed object graphs.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = errors.New(errors.ErrCodeSimplifyUnreadable, "malformed PDF").
				WithDetailf("%s: %v", doc.Filename, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSimplifyUnreadable, "cannot open PDF").WithDetail(doc.Filename)
	}

	pages := r.NumPage()
	limit := x.MaxPages
	if limit <= 0 {
		limit = DefaultPDFMaxPages
	}
	if pages > limit {
		pages = limit
	}

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", errors.Wrap(err, errors.ErrCodeTimeout, "PDF extraction cancelled")
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		// Pages that fail to decode are skipped; the rest of the report is
		// still worth reading.
		pt, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(pt)
		sb.WriteString("\n")
	}

	if strings.TrimSpace(sb.String()) == "" {
		return "", errors.New(errors.ErrCodeSimplifyUnreadable, "PDF has no text layer").
			WithDetailf("%s: scanned documents are not supported", doc.Filename)
	}
	return sb.String(), nil
}
