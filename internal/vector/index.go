// Package vector provides an exact nearest-neighbour index over embedded chunks and its
// on-disk snapshot format.
package vector

import (
	"context"

	"github.com/hyperjump/tutor/internal/models"
)

// VectorIndex stores embedded chunks and answers similarity queries. All vectors in one
// index come from the same embedding model and share one dimension.
type VectorIndex interface {
	Add(ctx context.Context, batch []models.EmbeddedChunk) error
	Merge(other VectorIndex) error
	RemoveSources(sourceIDs []string) int
	Search(ctx context.Context, query []float32, k int) ([]Result, error)
	Save(path string) error
	Chunks() []models.EmbeddedChunk
	ChunkAt(pos int) (models.Chunk, bool)
	ModelID() string
	Dimensions() int
	Size() int
}

// Result is a single search hit. Position is the chunk's insertion order in the index.
type Result struct {
	Chunk    models.Chunk
	Score    float64 // cosine similarity in [-1, 1]
	Position int
}
