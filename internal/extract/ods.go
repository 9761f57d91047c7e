package extract

import (
	"regexp"

	"github.com/hyperjump/tutor/internal/models"
)

var odsTable = regexp.MustCompile(`(?s)<table:table[ >].*?</table:table>`)

// extractODS returns one page per table (sheet).
func extractODS(content []byte) ([]models.Page, error) {
	xml, err := openDocumentContent(content, "ODS")
	if err != nil {
		return nil, err
	}
	var pages []models.Page
	for i, sheet := range odsTable.FindAllString(string(xml), -1) {
		pages = append(pages, models.Page{Number: i + 1, Text: odText(sheet, false)})
	}
	return pages, nil
}
