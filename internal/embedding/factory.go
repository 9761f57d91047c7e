package embedding

import (
	"fmt"
	"os"

	"github.com/hyperjump/tutor/internal/config"
)

// Providers accepted in embedding.provider.
const (
	ProviderHash   = "hash"
	ProviderONNX   = "onnx"
	ProviderOpenAI = "openai"
)

// New constructs the embedder configured in cfg, wrapped in an LRU cache when
// cfg.CacheSize > 0.
func New(cfg *config.EmbeddingConfig) (Embedder, error) {
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case ProviderHash, "":
		e = NewHashEmbedder(cfg.Dimensions)
	case ProviderONNX:
		e, err = NewONNXEmbedder(cfg.Model, cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	case ProviderOpenAI:
		e, err = NewOpenAIEmbedder(os.Getenv(cfg.APIKeyEnv), cfg.BaseURL, cfg.Model, cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s embedder: %w", cfg.Provider, err)
	}
	return WithCache(e, cfg.CacheSize), nil
}
