// Package keyword provides an in-memory BM25 index over indexed chunks, rebuilt each time
// the vector index is (re)loaded, for hybrid retrieval.
package keyword

// Hit is a single keyword search hit. Position is the chunk's position in the vector index.
type Hit struct {
	Position int
	Score    float64
}
