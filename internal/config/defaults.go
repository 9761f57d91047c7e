package config

import "fmt"

// Eviction policies accepted in session.eviction_policy.
const (
	EvictFewestTurns = "fewest_turns"
	EvictLeastRecent = "least_recent"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.SnapshotPath == "" {
		cfg.Storage.SnapshotPath = "./data/index/tutor.idx"
	}
	if cfg.Storage.CatalogPath == "" {
		cfg.Storage.CatalogPath = "./data/index/catalog.db"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "hash"
	}
	if cfg.Embedding.Model == "" {
		switch cfg.Embedding.Provider {
		case "openai":
			cfg.Embedding.Model = "text-embedding-3-small"
		case "onnx":
			cfg.Embedding.Model = "sentence-transformers/all-mpnet-base-v2"
		}
	}
	if cfg.Embedding.Dimensions == 0 {
		switch cfg.Embedding.Provider {
		case "openai":
			cfg.Embedding.Dimensions = 1536
		case "onnx":
			cfg.Embedding.Dimensions = 768
		default:
			cfg.Embedding.Dimensions = 384
		}
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 384
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = 1000
	}
	if cfg.RAG.ChunkOverlap == 0 {
		cfg.RAG.ChunkOverlap = 200
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = 3
	}
	if cfg.Session.MaxConversationHistory == 0 {
		cfg.Session.MaxConversationHistory = 5
	}
	if cfg.Session.MaxSessions == 0 {
		cfg.Session.MaxSessions = 100
	}
	if cfg.Session.Shards == 0 {
		cfg.Session.Shards = 16
	}
	if cfg.Session.EvictionPolicy == "" {
		cfg.Session.EvictionPolicy = EvictFewestTurns
	}
	if cfg.Corpus.CandidateDirs == nil {
		cfg.Corpus.CandidateDirs = []string{"./data", "./data/pdfs"}
	}
	if cfg.Corpus.Extensions == nil {
		cfg.Corpus.Extensions = []string{".pdf", ".docx", ".txt", ".pptx", ".md", ".rst", ".xlsx", ".odp", ".ods"}
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "deepseek-chat"
	}
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = "https://api.deepseek.com/v1"
	}
	if cfg.Generation.APIKeyEnv == "" {
		cfg.Generation.APIKeyEnv = "DEEPSEEK_API_KEY"
	}
	if cfg.Generation.Temperature == 0 {
		cfg.Generation.Temperature = 0.6
	}
	if cfg.Generation.MaxTokens == 0 {
		cfg.Generation.MaxTokens = 1024
	}
}

// Validate reports the first inconsistent value in cfg.
func Validate(cfg *Config) error {
	if cfg.RAG.ChunkSize <= 0 {
		return fmt.Errorf("rag.chunk_size must be positive, got %d", cfg.RAG.ChunkSize)
	}
	if cfg.RAG.ChunkOverlap < 0 || cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap must be in [0, chunk_size), got %d", cfg.RAG.ChunkOverlap)
	}
	if cfg.RAG.TopK <= 0 {
		return fmt.Errorf("rag.top_k must be positive, got %d", cfg.RAG.TopK)
	}
	if cfg.Session.MaxConversationHistory <= 0 || cfg.Session.MaxSessions <= 0 || cfg.Session.Shards <= 0 {
		return fmt.Errorf("session limits must be positive")
	}
	switch cfg.Session.EvictionPolicy {
	case EvictFewestTurns, EvictLeastRecent:
	default:
		return fmt.Errorf("unknown session.eviction_policy %q", cfg.Session.EvictionPolicy)
	}
	switch cfg.Embedding.Provider {
	case "hash", "onnx", "openai":
	default:
		return fmt.Errorf("unknown embedding.provider %q", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Provider == "onnx" && cfg.Embedding.ModelPath == "" {
		return fmt.Errorf("embedding.model_path is required for the onnx provider")
	}
	if cfg.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive")
	}
	return nil
}
