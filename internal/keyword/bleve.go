package keyword

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/hyperjump/tutor/internal/models"
)

// sourceBoost weights matches on the document name above matches in chunk text.
const sourceBoost = 2.0

// ErrClosed is returned by searches on an index that was retired by a reload.
var ErrClosed = errors.New("keyword index closed")

// Index is a memory-only bleve index whose document ids are chunk positions. Close waits
// for searches in flight; later searches fail with ErrClosed.
type Index struct {
	mu     sync.RWMutex
	closed bool
	index  bleve.Index
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so "bayes" matches "Bayes"
	// but does not collapse unrelated words that share a stem.
	textFieldMapping.Analyzer = standard.Name
	textFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("source", textFieldMapping)
	im.DefaultMapping = docMapping
	return im
}

// Build indexes every chunk in order. The chunk at position i gets document id "i".
func Build(ctx context.Context, chunks []models.EmbeddedChunk) (*Index, error) {
	index, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	batch := index.NewBatch()
	for i, ec := range chunks {
		if err := batch.Index(strconv.Itoa(i), map[string]interface{}{
			"content": ec.Chunk.Content,
			"source":  normalizeSource(ec.Chunk.SourceID),
		}); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("index chunk %d: %w", i, err)
		}
		if batch.Size() >= 1000 {
			if err := ctx.Err(); err != nil {
				_ = index.Close()
				return nil, err
			}
			if err := index.Batch(batch); err != nil {
				_ = index.Close()
				return nil, fmt.Errorf("index batch: %w", err)
			}
			batch.Reset()
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("index batch: %w", err)
	}
	return &Index{index: index}, nil
}

// normalizeSource replaces separators in file names so "os_lecture-03.pdf" is searchable
// as "os lecture 03 pdf" (the standard analyzer does not split on underscore).
func normalizeSource(name string) string {
	return strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(name)
}

// Search returns up to limit chunks matching query by BM25 over content and source name.
func (b *Index) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}
	content := bleve.NewMatchQuery(query)
	content.SetField("content")
	source := bleve.NewMatchQuery(query)
	source.SetField("source")
	source.SetBoost(sourceBoost)

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(content, source))
	req.Size = limit

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	hits := make([]Hit, 0, len(results.Hits))
	for _, h := range results.Hits {
		pos, err := strconv.Atoi(h.ID)
		if err != nil {
			continue
		}
		hits = append(hits, Hit{Position: pos, Score: h.Score})
	}
	return hits, nil
}

// DocCount returns the number of indexed chunks.
func (b *Index) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, ErrClosed
	}
	return b.index.DocCount()
}

// Close releases the index. It is safe to call more than once.
func (b *Index) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}
