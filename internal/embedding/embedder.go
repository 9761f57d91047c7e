// Package embedding maps text to fixed-length vectors (ONNX, OpenAI-compatible APIs, or a
// deterministic hashing model) with an optional LRU cache in front.
package embedding

import "context"

// Embedder produces vector embeddings for text. EmbedBatch preserves input order.
// ModelID identifies the model; vectors from different model ids must never be mixed.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelID() string
	Close() error
}

// embedEach calls embed for each text in order, stopping on cancellation.
func embedEach(ctx context.Context, texts []string, embed func(context.Context, string) ([]float32, error)) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		emb, err := embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
