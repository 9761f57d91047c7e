// Package manager owns the process-wide embedder and vector index. It loads them lazily
// behind an explicit state machine, rebuilds the index from the corpus when no snapshot
// exists, and swaps in a fresh snapshot on Reload.
package manager

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyperjump/tutor/internal/embedding"
	"github.com/hyperjump/tutor/internal/errs"
	"github.com/hyperjump/tutor/internal/keyword"
	"github.com/hyperjump/tutor/internal/metrics"
	"github.com/hyperjump/tutor/internal/vector"
	"go.uber.org/zap"
)

// State is the lifecycle state of a Manager.
type State int

const (
	Uninitialized State = iota
	Initializing
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Rebuilder recreates the snapshot from source documents when none exists.
// It returns the number of chunks written.
type Rebuilder interface {
	Rebuild(ctx context.Context, emb embedding.Embedder) (int, error)
}

// EmbedderFactory constructs the embedder. It is called at most once per Manager.
type EmbedderFactory func() (embedding.Embedder, error)

// IndexLoader reads the snapshot at path. A missing snapshot must match fs.ErrNotExist.
type IndexLoader func(path string) (vector.VectorIndex, error)

// Snapshot is the immutable ready state handed to readers. Index is never mutated after
// it is published; Keywords is nil unless keyword indexing is enabled.
type Snapshot struct {
	Embedder embedding.Embedder
	Index    vector.VectorIndex
	Keywords *keyword.Index
}

// attempt is one run of the exclusive initialization section. Callers that arrive while it
// runs wait on done and all receive the same snapshot or error.
type attempt struct {
	done    chan struct{}
	snap    *Snapshot
	err     error
	retired *Snapshot // snapshot this attempt replaces, closed when it finishes
}

// Manager is safe for concurrent use.
type Manager struct {
	snapshotPath string
	newEmbedder  EmbedderFactory
	loadIndex    IndexLoader
	rebuilder    Rebuilder
	keywords     bool
	logger       *zap.Logger

	embedMu  sync.Mutex
	embedder embedding.Embedder

	mu      sync.Mutex
	state   State
	attempt *attempt
	current atomic.Pointer[Snapshot]
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets a logger for lifecycle events.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithRebuilder enables auto-rebuild when the snapshot is missing.
func WithRebuilder(r Rebuilder) Option {
	return func(m *Manager) { m.rebuilder = r }
}

// WithIndexLoader replaces vector.Load, mainly for tests.
func WithIndexLoader(l IndexLoader) Option {
	return func(m *Manager) { m.loadIndex = l }
}

// WithKeywordIndex builds a BM25 index over the chunks each time an index is loaded.
func WithKeywordIndex(enabled bool) Option {
	return func(m *Manager) { m.keywords = enabled }
}

// New creates a Manager in the Uninitialized state. Nothing is loaded until first use.
func New(snapshotPath string, newEmbedder EmbedderFactory, opts ...Option) *Manager {
	m := &Manager{
		snapshotPath: snapshotPath,
		newEmbedder:  newEmbedder,
		loadIndex: func(path string) (vector.VectorIndex, error) {
			return vector.Load(path)
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SnapshotPath returns where the index snapshot lives.
func (m *Manager) SnapshotPath() string {
	return m.snapshotPath
}

// LoadEmbedder returns the embedder, constructing it on first call. It does not need a
// ready index, so ingestion can embed documents before any snapshot exists.
func (m *Manager) LoadEmbedder(ctx context.Context) (embedding.Embedder, error) {
	m.embedMu.Lock()
	defer m.embedMu.Unlock()
	if m.embedder != nil {
		return m.embedder, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb, err := m.newEmbedder()
	if err != nil {
		return nil, errs.E(errs.IndexUnavailable, "manager.embedder", err)
	}
	m.embedder = emb
	if m.logger != nil {
		m.logger.Info("embedder loaded", zap.String("model", emb.ModelID()), zap.Int("dimensions", emb.Dimensions()))
	}
	return emb, nil
}

// EnsureReady returns the ready snapshot, initializing it if needed. Concurrent callers
// share one initialization. On failure the manager stays Uninitialized and the next call
// retries. ctx bounds only this caller's wait; an initialization already running is not
// abandoned when one waiter gives up.
func (m *Manager) EnsureReady(ctx context.Context) (*Snapshot, error) {
	m.mu.Lock()
	switch m.state {
	case Ready:
		snap := m.current.Load()
		m.mu.Unlock()
		return snap, nil
	case Initializing:
		a := m.attempt
		m.mu.Unlock()
		return a.wait(ctx)
	default:
		a := m.begin()
		m.mu.Unlock()
		go m.run(context.WithoutCancel(ctx), a)
		return a.wait(ctx)
	}
}

// Index returns the ready vector index.
func (m *Manager) Index(ctx context.Context) (vector.VectorIndex, error) {
	snap, err := m.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Index, nil
}

// Embedder returns the embedder of the ready snapshot.
func (m *Manager) Embedder(ctx context.Context) (embedding.Embedder, error) {
	snap, err := m.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Embedder, nil
}

// Reload drops the current index and loads the snapshot again, rebuilding if it is gone.
// It waits for any initialization in flight and then runs in the same exclusive section,
// so it never interleaves with first-time initialization. Readers arriving during the
// reload block until it finishes; on failure the manager is left Uninitialized rather
// than serving the dropped index.
func (m *Manager) Reload(ctx context.Context) error {
	for {
		m.mu.Lock()
		if m.state == Initializing {
			a := m.attempt
			m.mu.Unlock()
			select {
			case <-a.done:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		a := m.begin()
		m.mu.Unlock()
		go m.run(context.WithoutCancel(ctx), a)
		_, err := a.wait(ctx)
		return err
	}
}

// IsReady reports, without blocking, whether both embedder and index are loaded.
func (m *Manager) IsReady() bool {
	return m.current.Load() != nil
}

// Current returns the published snapshot without blocking, or nil when not ready.
func (m *Manager) Current() *Snapshot {
	return m.current.Load()
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Close releases the embedder and keyword index.
func (m *Manager) Close() error {
	if snap := m.current.Load(); snap != nil && snap.Keywords != nil {
		_ = snap.Keywords.Close()
	}
	m.embedMu.Lock()
	defer m.embedMu.Unlock()
	if m.embedder != nil {
		return m.embedder.Close()
	}
	return nil
}

// begin starts a new attempt. Must be called with m.mu held.
func (m *Manager) begin() *attempt {
	a := &attempt{done: make(chan struct{}), retired: m.current.Load()}
	m.attempt = a
	m.state = Initializing
	m.current.Store(nil)
	return a
}

func (m *Manager) run(ctx context.Context, a *attempt) {
	start := time.Now()
	snap, result, err := m.initialize(ctx)

	m.mu.Lock()
	if err != nil {
		m.state = Uninitialized
	} else {
		m.state = Ready
		m.current.Store(snap)
	}
	a.snap, a.err = snap, err
	m.attempt = nil
	m.mu.Unlock()
	close(a.done)
	m.retire(a.retired)

	if err != nil {
		metrics.IndexLoaded("failed", 0)
		if m.logger != nil {
			m.logger.Warn("index initialization failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		}
		return
	}
	metrics.IndexLoaded(result, snap.Index.Size())
	if m.logger != nil {
		m.logger.Info("index ready",
			zap.String("source", result),
			zap.Int("chunks", snap.Index.Size()),
			zap.String("model", snap.Index.ModelID()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

// initialize builds a Snapshot. result is "loaded" or "rebuilt".
func (m *Manager) initialize(ctx context.Context) (*Snapshot, string, error) {
	emb, err := m.LoadEmbedder(ctx)
	if err != nil {
		return nil, "", err
	}
	result := "loaded"
	idx, err := m.loadIndex(m.snapshotPath)
	if errors.Is(err, fs.ErrNotExist) {
		result = "rebuilt"
		idx, err = m.rebuild(ctx, emb)
	}
	if err != nil {
		return nil, "", err
	}
	if idx.ModelID() != emb.ModelID() || idx.Dimensions() != emb.Dimensions() {
		return nil, "", errs.Errorf(errs.DimensionMismatch, "manager.load",
			"snapshot %s was built with %s/%d but the embedder is %s/%d; re-ingest the corpus",
			m.snapshotPath, idx.ModelID(), idx.Dimensions(), emb.ModelID(), emb.Dimensions())
	}
	snap := &Snapshot{Embedder: emb, Index: idx}
	if m.keywords {
		kw, err := keyword.Build(ctx, idx.Chunks())
		if err != nil {
			return nil, "", errs.E(errs.IndexLoad, "manager.keywords", err)
		}
		snap.Keywords = kw
	}
	return snap, result, nil
}

func (m *Manager) rebuild(ctx context.Context, emb embedding.Embedder) (vector.VectorIndex, error) {
	if m.rebuilder == nil {
		return nil, errs.Errorf(errs.IndexUnavailable, "manager.rebuild", "no snapshot at %s and auto-rebuild is disabled", m.snapshotPath)
	}
	if m.logger != nil {
		m.logger.Info("no index snapshot, rebuilding from corpus", zap.String("snapshot", m.snapshotPath))
	}
	n, err := m.rebuilder.Rebuild(ctx, emb)
	if err != nil {
		return nil, errs.E(errs.IndexUnavailable, "manager.rebuild", err)
	}
	if n == 0 {
		return nil, errs.Errorf(errs.IndexUnavailable, "manager.rebuild", "rebuild produced no chunks")
	}
	idx, err := m.loadIndex(m.snapshotPath)
	if err != nil {
		return nil, errs.E(errs.IndexUnavailable, "manager.rebuild", err)
	}
	return idx, nil
}

// retire closes the keyword index of a snapshot that is no longer published. Searches
// still running on it finish first.
func (m *Manager) retire(snap *Snapshot) {
	if snap == nil || snap.Keywords == nil {
		return
	}
	if err := snap.Keywords.Close(); err != nil && m.logger != nil {
		m.logger.Warn("closing retired keyword index failed", zap.Error(err))
	}
}

func (a *attempt) wait(ctx context.Context) (*Snapshot, error) {
	select {
	case <-a.done:
		return a.snap, a.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
