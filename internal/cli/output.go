// Package cli renders tutor results for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/tutor/internal/models"
	"github.com/hyperjump/tutor/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// snippetLen bounds how much chunk content the text format prints.
const snippetLen = 240

// ParseFormat maps a --output flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// WriteJSON encodes v to w with two-space indentation.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteRetrieved writes retrieved chunks for query in the given format.
func WriteRetrieved(w io.Writer, query string, chunks []models.RetrievedChunk, format OutputFormat) error {
	if format == OutputJSON {
		if chunks == nil {
			chunks = []models.RetrievedChunk{}
		}
		return WriteJSON(w, map[string]interface{}{"query": query, "chunks": chunks})
	}
	if len(chunks) == 0 {
		fmt.Fprintf(w, "No material found for %q\n", query)
		return nil
	}
	fmt.Fprintf(w, "\n%d chunk(s) for %q\n\n", len(chunks), query)
	for i, c := range chunks {
		writeChunk(w, i+1, c)
	}
	return nil
}

func writeChunk(w io.Writer, rank int, c models.RetrievedChunk) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "%d. %s  score %.4f\n", rank, c.Label(), c.Score)
	fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(collapseSpace(c.Content), snippetLen))
}

// WriteIngestResult writes the outcome of an ingest run.
func WriteIngestResult(w io.Writer, res models.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, res)
	}
	fmt.Fprintln(w, res.Message)
	for _, d := range res.Documents {
		fmt.Fprintf(w, "  %s\n", d)
	}
	return nil
}

// WriteAnswer writes a tutor answer followed by the sources it cited.
func WriteAnswer(w io.Writer, resp *models.AskResponse, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, resp)
	}
	fmt.Fprintf(w, "\n%s\n", strings.TrimSpace(resp.Answer))
	if len(resp.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for _, s := range resp.Sources {
			fmt.Fprintf(w, "  %s %s\n", s.Label(), TruncateWords(collapseSpace(s.Content), 12))
		}
	}
	fmt.Fprintf(w, "\nsession: %s\n", resp.SessionID)
	return nil
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
