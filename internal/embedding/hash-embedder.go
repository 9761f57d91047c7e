package embedding

import (
	"context"
	"fmt"

	"github.com/hyperjump/tutor/pkg/utils"
)

// HashEmbedder is a deterministic bag-of-words embedder: each token is hashed into a signed
// bucket and the result is L2-normalized. Texts sharing words get similar vectors, which is
// enough for offline use and tests without a model download.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a HashEmbedder of the given dimensions (default 384).
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the hashed embedding of text. Text with no tokens embeds to the zero vector.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	emb := make([]float32, e.dimensions)
	for _, tok := range Tokens(text) {
		h := HashString(tok)
		sign := float32(1)
		if h&(1<<40) != 0 {
			sign = -1
		}
		emb[h%uint64(e.dimensions)] += sign
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, texts, e.Embed)
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelID returns "hash-<dimensions>".
func (e *HashEmbedder) ModelID() string {
	return fmt.Sprintf("hash-%d", e.dimensions)
}

// Close is a no-op for HashEmbedder.
func (e *HashEmbedder) Close() error {
	return nil
}
