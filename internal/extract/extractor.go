// Package extract provides per-page text extraction from course documents.
package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/tutor/internal/models"
)

// DefaultExtensions are the document types Extract understands.
var DefaultExtensions = []string{".pdf", ".docx", ".pptx", ".xlsx", ".odp", ".ods", ".txt", ".md", ".rst"}

// Extractor extracts logical pages of text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Supported reports whether ext (with leading dot, any case) can be extracted.
func Supported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range DefaultExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Extract reads the file at path and returns its pages in order.
func (e *Extractor) Extract(path string) ([]models.Page, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts pages from content based on ext (e.g. ".pdf").
// Pages with no text are dropped; page numbers keep their position in the source.
func (e *Extractor) ExtractBytes(content []byte, ext string) ([]models.Page, error) {
	var (
		pages []models.Page
		err   error
	)
	switch strings.ToLower(ext) {
	case ".pdf":
		pages, err = extractPDF(content)
	case ".docx":
		pages, err = extractDOCX(content)
	case ".xlsx":
		pages, err = extractExcel(content)
	case ".pptx":
		pages, err = extractPPTX(content)
	case ".odp":
		pages, err = extractODP(content)
	case ".ods":
		pages, err = extractODS(content)
	case ".txt", ".md", ".rst":
		pages, err = extractPlain(content)
	default:
		return nil, fmt.Errorf("unsupported document type %q", ext)
	}
	if err != nil {
		return nil, err
	}
	return nonEmpty(pages), nil
}

func nonEmpty(pages []models.Page) []models.Page {
	out := pages[:0]
	for _, p := range pages {
		p.Text = strings.TrimSpace(p.Text)
		if p.Text != "" {
			out = append(out, p)
		}
	}
	return out
}

// readZipFile returns the contents of name inside zr, or nil if absent.
func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		var buf bytes.Buffer
		_, err = buf.ReadFrom(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}
		return buf.Bytes(), nil
	}
	return nil, nil
}

// joinMatches joins the first capture group of each match with single spaces.
func joinMatches(parts [][]string) string {
	var b strings.Builder
	for _, p := range parts {
		t := strings.TrimSpace(p[1])
		if t == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(t)
	}
	return b.String()
}
