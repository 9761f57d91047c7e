package vector

import (
	"context"
	"sort"
	"sync"

	"github.com/hyperjump/tutor/internal/errs"
	"github.com/hyperjump/tutor/internal/models"
	"github.com/hyperjump/tutor/pkg/utils"
)

// FlatIndex is an in-memory index using brute-force cosine search. Corpora of course
// material stay in the tens of thousands of chunks, where exact search is fast enough.
type FlatIndex struct {
	modelID    string
	dimensions int
	entries    []models.EmbeddedChunk
	mu         sync.RWMutex
}

// New creates an empty index for vectors of the given model and dimension.
func New(modelID string, dimensions int) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, errs.Errorf(errs.DimensionMismatch, "vector.new", "dimensions must be positive, got %d", dimensions)
	}
	return &FlatIndex{modelID: modelID, dimensions: dimensions}, nil
}

// ModelID returns the embedding model the vectors came from.
func (m *FlatIndex) ModelID() string { return m.modelID }

// Dimensions returns the vector dimension.
func (m *FlatIndex) Dimensions() int { return m.dimensions }

// Add appends a batch. The whole batch is rejected if any vector has the wrong dimension.
func (m *FlatIndex) Add(ctx context.Context, batch []models.EmbeddedChunk) error {
	for i := range batch {
		if len(batch[i].Vector) != m.dimensions {
			return errs.Errorf(errs.DimensionMismatch, "vector.add",
				"vector %d has dimension %d, index expects %d", i, len(batch[i].Vector), m.dimensions).
				WithDocument(batch[i].Chunk.SourceID)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ec := range batch {
		vec := make([]float32, m.dimensions)
		copy(vec, ec.Vector)
		m.entries = append(m.entries, models.EmbeddedChunk{Chunk: ec.Chunk, Vector: vec})
	}
	return nil
}

// Compatible reports a DimensionMismatch error unless a and b share model id and dimension.
func Compatible(a, b VectorIndex) error {
	if a.ModelID() != b.ModelID() || a.Dimensions() != b.Dimensions() {
		return errs.Errorf(errs.DimensionMismatch, "vector.merge",
			"cannot merge %s/%d into %s/%d", b.ModelID(), b.Dimensions(), a.ModelID(), a.Dimensions())
	}
	return nil
}

// Merge appends every chunk of other after this index's own chunks. It fails with
// DimensionMismatch, leaving m unchanged, if other was built with a different model or dimension.
func (m *FlatIndex) Merge(other VectorIndex) error {
	if err := Compatible(m, other); err != nil {
		return err
	}
	incoming := other.Chunks()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, incoming...)
	return nil
}

// RemoveSources drops every chunk whose SourceID is in sourceIDs, keeping the relative order
// of the rest. It returns the number of chunks removed.
func (m *FlatIndex) RemoveSources(sourceIDs []string) int {
	if len(sourceIDs) == 0 {
		return 0
	}
	remove := make(map[string]bool, len(sourceIDs))
	for _, id := range sourceIDs {
		remove[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := make([]models.EmbeddedChunk, 0, len(m.entries))
	for _, ec := range m.entries {
		if !remove[ec.Chunk.SourceID] {
			kept = append(kept, ec)
		}
	}
	n := len(m.entries) - len(kept)
	m.entries = kept
	return n
}

// Search returns up to k chunks by descending cosine similarity; equal scores keep
// insertion order. An empty index or k <= 0 yields no results.
func (m *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	if len(query) != m.dimensions {
		return nil, errs.Errorf(errs.DimensionMismatch, "vector.search",
			"query dimension %d, index expects %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.entries) == 0 {
		return nil, nil
	}
	scores := make([]Result, len(m.entries))
	for i := range m.entries {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		scores[i] = Result{
			Chunk:    m.entries[i].Chunk,
			Score:    utils.Cosine(query, m.entries[i].Vector),
			Position: i,
		}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k], nil
}

// Chunks returns the indexed chunks in insertion order. Vectors are shared and must not be modified.
func (m *FlatIndex) Chunks() []models.EmbeddedChunk {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.EmbeddedChunk, len(m.entries))
	copy(out, m.entries)
	return out
}

// ChunkAt returns the chunk at insertion position pos without copying the index.
func (m *FlatIndex) ChunkAt(pos int) (models.Chunk, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if pos < 0 || pos >= len(m.entries) {
		return models.Chunk{}, false
	}
	return m.entries[pos].Chunk, true
}

// Size returns the number of chunks in the index.
func (m *FlatIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
