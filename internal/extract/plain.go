package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/tutor/internal/models"
)

// linesPerPage groups plain text into pseudo pages so citations stay useful.
const linesPerPage = 50

// extractPlain splits UTF-8 text into pages of linesPerPage lines.
// Invalid UTF-8 sequences are replaced with the replacement character.
func extractPlain(content []byte) ([]models.Page, error) {
	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var pages []models.Page
	for start := 0; start < len(lines); start += linesPerPage {
		end := start + linesPerPage
		if end > len(lines) {
			end = len(lines)
		}
		pages = append(pages, models.Page{
			Number: start/linesPerPage + 1,
			Text:   strings.Join(lines[start:end], "\n"),
		})
	}
	return pages, nil
}
