package cmd

import (
	"context"
	"fmt"

	"github.com/hyperjump/tutor/internal/answer"
	"github.com/hyperjump/tutor/internal/config"
	"github.com/hyperjump/tutor/internal/embedding"
	"github.com/hyperjump/tutor/internal/extract"
	"github.com/hyperjump/tutor/internal/ingest"
	"github.com/hyperjump/tutor/internal/llm"
	"github.com/hyperjump/tutor/internal/manager"
	"github.com/hyperjump/tutor/internal/retriever"
	"github.com/hyperjump/tutor/internal/session"
	"github.com/hyperjump/tutor/internal/storage"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Catalog   *storage.SQLiteCatalog
	Manager   *manager.Manager
	Ingestor  *ingest.Ingestor
	Retriever *retriever.Retriever
	Sessions  *session.Store
	Answers   *answer.Orchestrator
	Assistant *answer.Assistant
}

// Close releases the catalog database and the embedding model.
func (c *Components) Close() {
	if c.Manager != nil {
		_ = c.Manager.Close()
	}
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
}

// initializeComponents wires every service from cfg. Nothing heavy is loaded here: the
// embedder and index are built by the manager on first use.
func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	catalog, err := storage.NewSQLiteCatalog(cfg.Storage.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}

	chunker, err := ingest.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		_ = catalog.Close()
		return nil, fmt.Errorf("failed to initialize chunker: %w", err)
	}

	embeddingCfg := cfg.Embedding
	newEmbedder := func() (embedding.Embedder, error) {
		return embedding.New(&embeddingCfg)
	}

	var mgr *manager.Manager
	ingestor := ingest.NewIngestor(
		chunker,
		extract.NewExtractor(),
		cfg.Storage.SnapshotPath,
		ingest.EmbedderSourceFunc(func(ctx context.Context) (embedding.Embedder, error) {
			return mgr.LoadEmbedder(ctx)
		}),
		ingest.WithLogger(logger),
		ingest.WithCatalog(catalog),
		ingest.WithCandidateDirs(cfg.Corpus.CandidateDirs),
		ingest.WithExtensions(cfg.Corpus.Extensions),
	)
	mgr = manager.New(cfg.Storage.SnapshotPath, newEmbedder,
		manager.WithRebuilder(ingestor),
		manager.WithKeywordIndex(cfg.RAG.Hybrid),
		manager.WithLogger(logger),
	)

	ret := retriever.New(mgr, cfg.RAG.TopK,
		retriever.WithHybrid(cfg.RAG.Hybrid),
		retriever.WithLogger(logger),
	)
	sessions := session.FromConfig(&cfg.Session, session.WithLogger(logger))

	var generator llm.Generator
	var assistant *answer.Assistant
	chat, err := llm.NewChatGenerator(&cfg.Generation)
	if err != nil {
		logger.Warn("answer generation disabled", zap.Error(err))
		generator = llm.Disabled(err)
		assistant = answer.NewAssistant(generator, answer.WithAssistantLogger(logger))
	} else {
		generator = chat
		assistant = answer.NewAssistant(chat.With(answer.DocsSampling),
			answer.WithTestGenerator(chat.With(answer.TestSampling)),
			answer.WithCommitGenerator(chat.With(answer.CommitSampling)),
			answer.WithAssistantLogger(logger),
		)
	}

	return &Components{
		Catalog:   catalog,
		Manager:   mgr,
		Ingestor:  ingestor,
		Retriever: ret,
		Sessions:  sessions,
		Answers:   answer.New(ret, sessions, generator, answer.WithLogger(logger)),
		Assistant: assistant,
	}, nil
}
