// Package config provides configuration loading and structs for the tutor server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	RAG        RAGConfig        `yaml:"rag"`
	Session    SessionConfig    `yaml:"session"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	Generation GenerationConfig `yaml:"generation"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the index snapshot and the ingestion catalog.
type StorageConfig struct {
	SnapshotPath string `yaml:"snapshot_path"`
	CatalogPath  string `yaml:"catalog_path"`
}

// EmbeddingConfig selects and configures the embedding model.
// Provider is one of "hash", "onnx", "openai".
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
	BaseURL    string `yaml:"base_url"`
	APIKeyEnv  string `yaml:"api_key_env"`
}

// RAGConfig holds chunking and retrieval settings. Sizes are in characters.
type RAGConfig struct {
	ChunkSize    int  `yaml:"chunk_size"`
	ChunkOverlap int  `yaml:"chunk_overlap"`
	TopK         int  `yaml:"top_k"`
	Hybrid       bool `yaml:"hybrid"`
}

// SessionConfig bounds conversation memory.
type SessionConfig struct {
	MaxConversationHistory int    `yaml:"max_conversation_history"`
	MaxSessions            int    `yaml:"max_sessions"`
	Shards                 int    `yaml:"shards"`
	EvictionPolicy         string `yaml:"eviction_policy"`
}

// CorpusConfig lists where auto-rebuild looks for documents, in order.
type CorpusConfig struct {
	CandidateDirs []string `yaml:"candidate_dirs"`
	Extensions    []string `yaml:"extensions"`
	Watch         bool     `yaml:"watch"`
}

// GenerationConfig configures the OpenAI-compatible chat model used for answers.
type GenerationConfig struct {
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Load reads and parses the config file at path, applies defaults, expands paths, and validates.
// Returns an error if the file cannot be read or parsed, or the values are inconsistent.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	ExpandPaths(&cfg, filepath.Dir(path))
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with all defaults applied, paths relative to dir.
func Default(dir string) *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	ExpandPaths(&cfg, dir)
	return &cfg
}

// ExpandPaths makes every path in cfg absolute; "./x" is resolved against configDir.
func ExpandPaths(cfg *Config, configDir string) {
	cfg.Storage.SnapshotPath = expandPath(cfg.Storage.SnapshotPath, configDir)
	cfg.Storage.CatalogPath = expandPath(cfg.Storage.CatalogPath, configDir)
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}
	for i := range cfg.Corpus.CandidateDirs {
		cfg.Corpus.CandidateDirs[i] = expandPath(cfg.Corpus.CandidateDirs[i], configDir)
	}
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
