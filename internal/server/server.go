// Package server provides the HTTP API for the tutor.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/tutor/internal/config"
	"github.com/hyperjump/tutor/internal/ingest"
	"github.com/hyperjump/tutor/internal/manager"
	"github.com/hyperjump/tutor/internal/metrics"
	"github.com/hyperjump/tutor/internal/models"
	"github.com/hyperjump/tutor/internal/storage"
	"go.uber.org/zap"
)

// maxUploadBytes bounds a multipart document upload.
const maxUploadBytes = 64 << 20

// Asker answers questions.
type Asker interface {
	Ask(ctx context.Context, req models.AskRequest) (*models.AskResponse, error)
}

// Assistant generates project docs, unit tests and commit messages.
type Assistant interface {
	GenerateDocs(ctx context.Context, req models.DocsRequest) (*models.DocsResponse, error)
	GenerateTest(ctx context.Context, req models.TestRequest) (*models.TestResponse, error)
	CommitMessage(ctx context.Context, req models.CommitMessageRequest) (*models.CommitMessageResponse, error)
}

// Retriever returns chunks relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]models.RetrievedChunk, error)
}

// Ingester ingests documents into the index snapshot.
type Ingester interface {
	Ingest(ctx context.Context, src ingest.Source) (models.IngestResult, error)
}

// IndexManager is the part of manager.Manager the API needs.
type IndexManager interface {
	IsReady() bool
	State() manager.State
	Current() *manager.Snapshot
	Reload(ctx context.Context) error
}

// Sessions is the conversation store.
type Sessions interface {
	Get(id string) []models.Turn
	FormatHistory(id string) string
	Exists(id string) bool
	Clear(id string) bool
	Len() int
}

// Server is the HTTP server for the tutor API.
type Server struct {
	asker     Asker
	assistant Assistant // optional
	retriever Retriever
	ingester  Ingester
	index     IndexManager
	sessions  Sessions
	catalog   storage.Catalog // optional
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies. assistant and catalog may be nil.
func NewServer(
	asker Asker,
	assistant Assistant,
	retriever Retriever,
	ingester Ingester,
	index IndexManager,
	sessions Sessions,
	catalog storage.Catalog,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		asker:     asker,
		assistant: assistant,
		retriever: retriever,
		ingester:  ingester,
		index:     index,
		sessions:  sessions,
		catalog:   catalog,
		config:    cfg,
		logger:    logger,
	}
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(120 * time.Second))
		r.Post("/ask", s.handleAsk)
		r.Post("/retrieve", s.handleRetrieve)
		r.Post("/generate/docs", s.handleGenerateDocs)
		r.Post("/generate/test", s.handleGenerateTest)
		r.Post("/generate/commit-message", s.handleCommitMessage)
		r.Post("/documents", s.handleIngest)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Delete("/sessions/{id}", s.handleClearSession)
		r.Get("/status", s.handleStatus)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
