// Package retriever answers "which chunks are most relevant to this query" against the
// manager's ready index, semantically or fused with keyword scores.
package retriever

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/tutor/internal/errs"
	"github.com/hyperjump/tutor/internal/keyword"
	"github.com/hyperjump/tutor/internal/manager"
	"github.com/hyperjump/tutor/internal/metrics"
	"github.com/hyperjump/tutor/internal/models"
	"github.com/hyperjump/tutor/internal/vector"
	"github.com/hyperjump/tutor/pkg/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("github.com/hyperjump/tutor/internal/retriever")

const (
	// DefaultTopK is used when neither the call nor the config sets k.
	DefaultTopK = 3

	// Hybrid fusion weights.
	KeywordWeight  = 0.3
	SemanticWeight = 0.7

	// candidateFactor widens each side of a hybrid search before fusion.
	candidateFactor = 5
)

// Snapshots yields the manager's ready state, initializing it on first use.
type Snapshots interface {
	EnsureReady(ctx context.Context) (*manager.Snapshot, error)
}

// Retriever is safe for concurrent use.
type Retriever struct {
	snapshots Snapshots
	topK      int
	hybrid    bool
	logger    *zap.Logger // optional
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets a logger for query events.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// WithHybrid fuses keyword and semantic scores when the snapshot carries a keyword index.
func WithHybrid(enabled bool) Option {
	return func(r *Retriever) { r.hybrid = enabled }
}

// New creates a Retriever returning topK chunks by default.
func New(snapshots Snapshots, topK int, opts ...Option) *Retriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	r := &Retriever{snapshots: snapshots, topK: topK}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve returns up to k chunks most similar to query, best first. k <= 0 uses the
// configured default. An empty index yields an empty result; an index that cannot be
// made ready yields an IndexUnavailable error.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]models.RetrievedChunk, error) {
	q := models.RetrieveQuery{Query: query, K: k}
	if err := q.Validate(); err != nil {
		return nil, errs.E(errs.InvalidInput, "retrieve", err)
	}
	if q.K <= 0 {
		q.K = r.topK
	}

	start := time.Now()
	ctx, span := tracer.Start(ctx, "retrieve")
	defer span.End()
	span.SetAttributes(attribute.Int("tutor.retrieve.k", q.K))

	out, mode, err := r.retrieve(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.Retrieved("error", time.Since(start))
		return nil, err
	}
	span.SetAttributes(attribute.String("tutor.retrieve.mode", mode), attribute.Int("tutor.retrieve.results", len(out)))
	metrics.Retrieved(mode, time.Since(start))
	if r.logger != nil {
		r.logger.Debug("retrieved chunks",
			zap.String("query", utils.Truncate(q.Query, 80)),
			zap.String("mode", mode),
			zap.Int("results", len(out)))
	}
	return out, nil
}

func (r *Retriever) retrieve(ctx context.Context, q models.RetrieveQuery) ([]models.RetrievedChunk, string, error) {
	snap, err := r.snapshots.EnsureReady(ctx)
	if err != nil {
		return nil, "", err
	}
	if snap.Index.Size() == 0 {
		return []models.RetrievedChunk{}, "empty", nil
	}
	if r.hybrid && snap.Keywords != nil {
		out, err := retrieveHybrid(ctx, snap, q.Query, q.K)
		return out, "hybrid", err
	}
	out, err := retrieveSemantic(ctx, snap, q.Query, q.K)
	return out, "semantic", err
}

func retrieveSemantic(ctx context.Context, snap *manager.Snapshot, query string, k int) ([]models.RetrievedChunk, error) {
	vec, err := snap.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, errs.E(errs.IndexUnavailable, "retrieve.embed", err)
	}
	results, err := snap.Index.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	out := make([]models.RetrievedChunk, len(results))
	for i, res := range results {
		out[i] = models.RetrievedChunk{Chunk: res.Chunk, Score: res.Score}
	}
	return out, nil
}

// retrieveHybrid runs keyword and semantic search concurrently over a widened candidate
// set and fuses them at chunk level.
func retrieveHybrid(ctx context.Context, snap *manager.Snapshot, query string, k int) ([]models.RetrievedChunk, error) {
	candidates := k * candidateFactor
	var (
		hits     []keyword.Hit
		semantic []vector.Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := snap.Keywords.Search(gctx, query, candidates)
		if errors.Is(err, keyword.ErrClosed) {
			// The snapshot was replaced by a reload mid-query; rank semantically.
			return nil
		}
		if err != nil {
			return errs.E(errs.IndexUnavailable, "retrieve.keyword", err)
		}
		hits = res
		return nil
	})
	g.Go(func() error {
		vec, err := snap.Embedder.Embed(gctx, query)
		if err != nil {
			return errs.E(errs.IndexUnavailable, "retrieve.embed", err)
		}
		semantic, err = snap.Index.Search(gctx, vec, candidates)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := Fuse(NormalizeKeywordScores(hits), NormalizeSemanticScores(semantic), KeywordWeight, SemanticWeight)
	if len(fused) > k {
		fused = fused[:k]
	}
	out := make([]models.RetrievedChunk, 0, len(fused))
	for _, f := range fused {
		c, ok := snap.Index.ChunkAt(f.Position)
		if !ok {
			continue
		}
		out = append(out, models.RetrievedChunk{Chunk: c, Score: f.Score})
	}
	return out, nil
}
