package watcher

import (
	"context"
	"path/filepath"

	"github.com/hyperjump/tutor/internal/ingest"
	"github.com/hyperjump/tutor/internal/models"
	"go.uber.org/zap"
)

// Ingester ingests a batch of documents.
type Ingester interface {
	Ingest(ctx context.Context, src ingest.Source) (models.IngestResult, error)
}

// Reloader swaps the freshly persisted snapshot into service.
type Reloader interface {
	Reload(ctx context.Context) error
}

// IngestBatch returns an onBatch callback that ingests the changed files as one
// DocumentList and reloads the index when anything was added. Failures are logged.
func IngestBatch(ctx context.Context, ing Ingester, idx Reloader, logger *zap.Logger) func(paths []string) {
	return func(paths []string) {
		if ctx.Err() != nil {
			return
		}
		res, err := ing.Ingest(ctx, ingest.DocumentList{Paths: paths})
		if err != nil {
			if logger != nil {
				logger.Warn("watched documents not ingested", zap.Strings("paths", baseNames(paths)), zap.Error(err))
			}
			return
		}
		if err := idx.Reload(ctx); err != nil && logger != nil {
			logger.Warn("reload after watched ingest failed", zap.Error(err))
			return
		}
		if logger != nil {
			logger.Info("ingested watched documents", zap.Strings("documents", res.Documents), zap.Int("chunks", res.AddedChunks))
		}
	}
}

func baseNames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}
