package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"

	"github.com/hyperjump/tutor/internal/models"
)

// openDocumentContentPath is the main content part of .odp and .ods packages.
const openDocumentContentPath = "content.xml"

var (
	odpDrawPage = regexp.MustCompile(`(?s)<draw:page[ >].*?</draw:page>`)
	odTextP     = regexp.MustCompile(`<text:p[^>]*>([^<]*)</text:p>`)
	odTextSpan  = regexp.MustCompile(`<text:span[^>]*>([^<]*)</text:span>`)
	odTextH     = regexp.MustCompile(`<text:h[^>]*>([^<]*)</text:h>`)
)

// extractODP returns one page per draw:page (slide).
func extractODP(content []byte) ([]models.Page, error) {
	xml, err := openDocumentContent(content, "ODP")
	if err != nil {
		return nil, err
	}
	var pages []models.Page
	for i, slide := range odpDrawPage.FindAllString(string(xml), -1) {
		pages = append(pages, models.Page{Number: i + 1, Text: odText(slide, true)})
	}
	return pages, nil
}

func openDocumentContent(content []byte, kind string) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", kind, err)
	}
	xml, err := readZipFile(zr, openDocumentContentPath)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", kind, err)
	}
	if xml == nil {
		return nil, fmt.Errorf("extract %s: %s not found", kind, openDocumentContentPath)
	}
	return xml, nil
}

// odText collects text:p and text:span contents, plus text:h headings when withHeadings.
func odText(s string, withHeadings bool) string {
	text := joinMatches(odTextP.FindAllStringSubmatch(s, -1))
	if spans := joinMatches(odTextSpan.FindAllStringSubmatch(s, -1)); spans != "" {
		text += " " + spans
	}
	if withHeadings {
		if h := joinMatches(odTextH.FindAllStringSubmatch(s, -1)); h != "" {
			text += " " + h
		}
	}
	return text
}
