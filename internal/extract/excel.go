package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/hyperjump/tutor/internal/models"
	"github.com/xuri/excelize/v2"
)

// extractExcel returns one page per sheet with cells tab-separated. Blank rows and
// trailing empty cells are dropped so formatted but empty ranges do not pad chunks.
func extractExcel(content []byte) ([]models.Page, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	pages := make([]models.Page, 0, len(sheets))
	for i, sheet := range sheets {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		var sb strings.Builder
		for _, row := range rows {
			cells := trimTrailingBlank(row)
			if len(cells) == 0 {
				continue
			}
			sb.WriteString(strings.Join(cells, "\t"))
			sb.WriteByte('\n')
		}
		pages = append(pages, models.Page{Number: i + 1, Text: sb.String()})
	}
	return pages, nil
}

func trimTrailingBlank(row []string) []string {
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	return row[:end]
}
