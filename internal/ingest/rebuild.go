package ingest

import (
	"context"
	"strings"

	"github.com/hyperjump/tutor/internal/embedding"
	"github.com/hyperjump/tutor/internal/errs"
	"go.uber.org/zap"
)

// Rebuild ingests every document in the first candidate directory that holds at least one
// supported file. Directories are tried in configured order; missing ones are skipped.
// It returns the number of chunks in the written snapshot.
func (i *Ingestor) Rebuild(ctx context.Context, emb embedding.Embedder) (int, error) {
	for _, dir := range i.candidateDirs {
		paths, err := i.listDir(dir)
		if err != nil || len(paths) == 0 {
			continue
		}
		if i.logger != nil {
			i.logger.Info("rebuilding index from corpus", zap.String("dir", dir), zap.Int("documents", len(paths)))
		}
		res, err := i.ingest(ctx, DocumentList{Paths: paths}, emb)
		if err != nil {
			return 0, err
		}
		return res.AddedChunks, nil
	}
	return 0, errs.Errorf(errs.NoCorpus, "ingest.rebuild", "no ingestible documents in [%s]", strings.Join(i.candidateDirs, ", "))
}
