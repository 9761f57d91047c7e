package extract

import (
	"bytes"
	"fmt"

	"github.com/hyperjump/tutor/internal/models"
	"github.com/ledongthuc/pdf"
)

// extractPDF returns one page per PDF page that has a content stream. The pdf reader panics
// on some malformed cross-reference tables, so panics surface as extraction errors.
func extractPDF(content []byte) (pages []models.Page, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	total := r.NumPage()
	pages = make([]models.Page, 0, total)
	fonts := make(map[string]*pdf.Font)
	for n := 1; n <= total; n++ {
		p := r.Page(n)
		if p.V.IsNull() {
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := p.Font(name)
				fonts[name] = &f
			}
		}
		text, err := p.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", n, err)
		}
		pages = append(pages, models.Page{Number: n, Text: text})
	}
	return pages, nil
}
