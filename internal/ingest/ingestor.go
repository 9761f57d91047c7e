// Package ingest turns documents into embedded chunks and merges them into the persisted
// vector index snapshot.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/tutor/internal/embedding"
	"github.com/hyperjump/tutor/internal/errs"
	"github.com/hyperjump/tutor/internal/extract"
	"github.com/hyperjump/tutor/internal/metrics"
	"github.com/hyperjump/tutor/internal/models"
	"github.com/hyperjump/tutor/internal/vector"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/hyperjump/tutor/internal/ingest")

// EmbedderSource supplies the embedder without requiring a ready index
// (manager.Manager.LoadEmbedder).
type EmbedderSource interface {
	LoadEmbedder(ctx context.Context) (embedding.Embedder, error)
}

// EmbedderSourceFunc adapts a function to EmbedderSource.
type EmbedderSourceFunc func(ctx context.Context) (embedding.Embedder, error)

// LoadEmbedder calls f(ctx).
func (f EmbedderSourceFunc) LoadEmbedder(ctx context.Context) (embedding.Embedder, error) {
	return f(ctx)
}

// Catalog records what was ingested. Failures are logged, never fatal.
type Catalog interface {
	RecordDocuments(ctx context.Context, records []models.DocumentRecord) error
}

// Ingestor extracts, chunks and embeds documents and merges them into the snapshot.
// The live index is not touched; callers reload the manager afterwards.
type Ingestor struct {
	chunker       *Chunker
	extractor     *extract.Extractor
	snapshotPath  string
	embedders     EmbedderSource
	catalog       Catalog
	candidateDirs []string
	extensions    []string
	logger        *zap.Logger // optional

	// persistMu serializes load-merge-save so concurrent batches never drop each other's chunks.
	persistMu sync.Mutex
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithLogger sets a logger for per-document and per-batch events.
func WithLogger(l *zap.Logger) Option {
	return func(i *Ingestor) { i.logger = l }
}

// WithCatalog records ingested documents in c.
func WithCatalog(c Catalog) Option {
	return func(i *Ingestor) { i.catalog = c }
}

// WithCandidateDirs sets the ordered directories Rebuild searches for a corpus.
func WithCandidateDirs(dirs []string) Option {
	return func(i *Ingestor) { i.candidateDirs = dirs }
}

// WithExtensions limits directory and rebuild scans to these extensions. Each must also be
// supported by the extractor.
func WithExtensions(exts []string) Option {
	return func(i *Ingestor) { i.extensions = exts }
}

// NewIngestor creates an ingestor that persists to snapshotPath.
func NewIngestor(chunker *Chunker, extractor *extract.Extractor, snapshotPath string, embedders EmbedderSource, opts ...Option) *Ingestor {
	i := &Ingestor{
		chunker:      chunker,
		extractor:    extractor,
		snapshotPath: snapshotPath,
		embedders:    embedders,
		extensions:   extract.DefaultExtensions,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// document is one unit of a batch: either in memory or a path on disk.
type document struct {
	name    string
	path    string
	content []byte
}

// Ingest runs src through extraction, chunking and embedding and merges the result into the
// snapshot. One failed document aborts the whole batch and the snapshot is left unchanged.
// Cancellation is honoured between documents.
func (i *Ingestor) Ingest(ctx context.Context, src Source) (models.IngestResult, error) {
	emb, err := i.embedders.LoadEmbedder(ctx)
	if err != nil {
		return failed(err), err
	}
	return i.ingest(ctx, src, emb)
}

func (i *Ingestor) ingest(ctx context.Context, src Source, emb embedding.Embedder) (models.IngestResult, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "ingest")
	defer span.End()

	res, err := i.run(ctx, src, emb)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.IngestFinished(errs.KindOf(err).String(), 0, elapsed)
		if i.logger != nil {
			i.logger.Warn("ingestion failed", zap.Error(err), zap.String("document", errs.DocumentOf(err)))
		}
		return failed(err), err
	}
	span.SetAttributes(
		attribute.Int("tutor.ingest.documents", len(res.Documents)),
		attribute.Int("tutor.ingest.chunks", res.AddedChunks),
	)
	metrics.IngestFinished("success", res.AddedChunks, elapsed)
	if i.logger != nil {
		i.logger.Info("ingestion finished",
			zap.Int("documents", len(res.Documents)),
			zap.Int("chunks", res.AddedChunks),
			zap.Duration("elapsed", elapsed))
	}
	return res, nil
}

func failed(err error) models.IngestResult {
	return models.IngestResult{Status: models.IngestError, Message: err.Error()}
}

func (i *Ingestor) run(ctx context.Context, src Source, emb embedding.Embedder) (models.IngestResult, error) {
	docs, err := i.collect(src)
	if err != nil {
		return models.IngestResult{}, err
	}
	if len(docs) == 0 {
		return models.IngestResult{}, errs.Errorf(errs.EmptyBatch, "ingest", "no ingestible documents")
	}

	var (
		chunks  []models.Chunk
		records []models.DocumentRecord
	)
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return models.IngestResult{}, err
		}
		pages, err := i.extract(d)
		if err != nil {
			return models.IngestResult{}, errs.E(errs.Extraction, "ingest.extract", err).WithDocument(d.name)
		}
		dc := i.chunker.ChunkPages(d.name, pages)
		if len(dc) == 0 {
			if i.logger != nil {
				i.logger.Warn("no text extracted", zap.String("document", d.name))
			}
			continue
		}
		chunks = append(chunks, dc...)
		records = append(records, models.DocumentRecord{
			SourceID: d.name,
			Path:     d.path,
			Pages:    len(pages),
			Chunks:   len(dc),
			ModelID:  emb.ModelID(),
		})
		if i.logger != nil {
			i.logger.Debug("document chunked", zap.String("document", d.name), zap.Int("pages", len(pages)), zap.Int("chunks", len(dc)))
		}
	}
	if len(chunks) == 0 {
		return models.IngestResult{}, errs.Errorf(errs.EmptyBatch, "ingest", "no text extracted from %d document(s)", len(docs))
	}

	batch, err := i.embed(ctx, chunks, emb)
	if err != nil {
		return models.IngestResult{}, err
	}
	sources := make([]string, len(records))
	for j, r := range records {
		sources[j] = r.SourceID
	}
	total, err := i.persist(batch, sources)
	if err != nil {
		return models.IngestResult{}, err
	}
	i.record(ctx, records)

	return models.IngestResult{
		Status:      models.IngestSuccess,
		Message:     fmt.Sprintf("ingested %d document(s), %d chunk(s); index now holds %d chunk(s)", len(records), len(chunks), total),
		AddedChunks: len(chunks),
		Documents:   sources,
	}, nil
}

// collect resolves src into an ordered list of documents.
func (i *Ingestor) collect(src Source) ([]document, error) {
	switch s := src.(type) {
	case SingleDocument:
		if s.Name == "" {
			return nil, errs.Errorf(errs.InvalidInput, "ingest", "document name is required")
		}
		if !i.allowed(filepath.Ext(s.Name)) {
			return nil, errs.Errorf(errs.InvalidInput, "ingest", "unsupported document type %q", filepath.Ext(s.Name)).WithDocument(s.Name)
		}
		return []document{{name: filepath.Base(s.Name), content: s.Content}}, nil
	case Directory:
		paths, err := i.listDir(s.Path)
		if err != nil {
			return nil, errs.E(errs.InvalidInput, "ingest", err).WithDocument(s.Path)
		}
		return i.fromPaths(paths)
	case DocumentList:
		return i.fromPaths(s.Paths)
	default:
		return nil, errs.Errorf(errs.InvalidInput, "ingest", "unknown source %T", src)
	}
}

func (i *Ingestor) fromPaths(paths []string) ([]document, error) {
	docs := make([]document, 0, len(paths))
	for _, p := range paths {
		if !i.allowed(filepath.Ext(p)) {
			if i.logger != nil {
				i.logger.Warn("skipping unsupported file", zap.String("path", p))
			}
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, errs.E(errs.Extraction, "ingest", err).WithDocument(p)
		}
		docs = append(docs, document{name: filepath.Base(abs), path: abs})
	}
	return docs, nil
}

// listDir returns the supported regular files directly inside dir, sorted by name.
func (i *Ingestor) listDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !i.allowed(filepath.Ext(e.Name())) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		// Resolve symlinks so only regular files are ingested.
		if info, err := os.Stat(p); err != nil || !info.Mode().IsRegular() {
			continue
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func (i *Ingestor) extract(d document) ([]models.Page, error) {
	if d.content != nil || d.path == "" {
		return i.extractor.ExtractBytes(d.content, filepath.Ext(d.name))
	}
	return i.extractor.Extract(d.path)
}

func (i *Ingestor) allowed(ext string) bool {
	return extract.Supported(ext) && extensionAllowed(ext, i.extensions)
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	if extNorm == "" {
		return false
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

// embed embeds all chunks of the batch in one call.
func (i *Ingestor) embed(ctx context.Context, chunks []models.Chunk, emb embedding.Embedder) (*vector.FlatIndex, error) {
	texts := make([]string, len(chunks))
	for j, c := range chunks {
		texts[j] = c.Content
	}
	vecs, err := emb.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vecs) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(chunks))
	}
	batch, err := vector.New(emb.ModelID(), emb.Dimensions())
	if err != nil {
		return nil, err
	}
	embedded := make([]models.EmbeddedChunk, len(chunks))
	for j := range chunks {
		embedded[j] = models.EmbeddedChunk{Chunk: chunks[j], Vector: vecs[j]}
	}
	if err := batch.Add(ctx, embedded); err != nil {
		return nil, err
	}
	return batch, nil
}

// persist merges batch into the snapshot, replacing earlier chunks of the same sources, and
// saves atomically. It returns the size of the saved index. On any error the snapshot on
// disk is unchanged.
func (i *Ingestor) persist(batch *vector.FlatIndex, sources []string) (int, error) {
	i.persistMu.Lock()
	defer i.persistMu.Unlock()

	target := batch
	existing, err := vector.Load(i.snapshotPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return 0, err
	default:
		if err := vector.Compatible(existing, batch); err != nil {
			return 0, err
		}
		if n := existing.RemoveSources(sources); n > 0 && i.logger != nil {
			i.logger.Info("replacing previously ingested chunks", zap.Int("removed", n), zap.Strings("documents", sources))
		}
		if err := existing.Merge(batch); err != nil {
			return 0, err
		}
		target = existing
	}
	if err := target.Save(i.snapshotPath); err != nil {
		return 0, err
	}
	return target.Size(), nil
}

func (i *Ingestor) record(ctx context.Context, records []models.DocumentRecord) {
	if i.catalog == nil {
		return
	}
	now := time.Now().UTC()
	for j := range records {
		records[j].IngestedAt = now
	}
	if err := i.catalog.RecordDocuments(ctx, records); err != nil && i.logger != nil {
		i.logger.Warn("failed to record ingested documents", zap.Error(err))
	}
}
