// Package models defines core data structures for chunks, sessions, queries and results.
package models

import (
	"strconv"
	"time"
)

// Chunk is a bounded span of document text. Page is 1-based; 0 means the source has no pages.
type Chunk struct {
	SourceID   string `json:"source_id"`
	Page       int    `json:"page,omitempty"`
	ChunkIndex int    `json:"chunk_index"`
	Content    string `json:"content"`
}

// Label renders the citation used in prompts, e.g. "[lecture1.pdf, p.3]".
func (c Chunk) Label() string {
	if c.Page > 0 {
		return "[" + c.SourceID + ", p." + strconv.Itoa(c.Page) + "]"
	}
	return "[" + c.SourceID + "]"
}

// EmbeddedChunk pairs a chunk with its embedding. len(Vector) is the dimension.
type EmbeddedChunk struct {
	Chunk  Chunk     `json:"chunk"`
	Vector []float32 `json:"-"`
}

// Page is one logical page of extracted text.
type Page struct {
	Number int
	Text   string
}

// DocumentRecord is the catalog entry for an ingested document.
type DocumentRecord struct {
	SourceID   string    `json:"source_id" db:"source_id"`
	Path       string    `json:"path,omitempty" db:"path"`
	Pages      int       `json:"pages" db:"pages"`
	Chunks     int       `json:"chunks" db:"chunks"`
	ModelID    string    `json:"model_id" db:"model_id"`
	IngestedAt time.Time `json:"ingested_at" db:"ingested_at"`
}
