package ingest

import (
	"fmt"
	"strings"

	"github.com/hyperjump/tutor/internal/models"
)

// Default window, in characters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunker splits text into fixed-size overlapping character windows.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
// Overlap must be non-negative and strictly less than size.
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", chunkSize, chunkOverlap)
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Chunk splits one page of text. Sequence numbers start at seq so that chunk order is
// preserved across the pages of a document. Text that fits in one window is one chunk.
func (c *Chunker) Chunk(sourceID string, page, seq int, text string) []models.Chunk {
	runes := []rune(Preprocess(text))
	if len(runes) == 0 {
		return nil
	}
	step := c.chunkSize - c.chunkOverlap
	var chunks []models.Chunk
	for i := 0; i < len(runes); i += step {
		end := i + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		if content := strings.TrimSpace(string(runes[i:end])); content != "" {
			chunks = append(chunks, models.Chunk{
				SourceID:   sourceID,
				Page:       page,
				ChunkIndex: seq,
				Content:    content,
			})
			seq++
		}
		if end >= len(runes) {
			break
		}
	}
	return chunks
}

// ChunkPages chunks every page of a document in order.
func (c *Chunker) ChunkPages(sourceID string, pages []models.Page) []models.Chunk {
	var chunks []models.Chunk
	for _, p := range pages {
		chunks = append(chunks, c.Chunk(sourceID, p.Number, len(chunks), p.Text)...)
	}
	return chunks
}
