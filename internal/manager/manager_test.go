package manager

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/tutor/internal/embedding"
	"github.com/hyperjump/tutor/internal/errs"
	"github.com/hyperjump/tutor/internal/keyword"
	"github.com/hyperjump/tutor/internal/models"
	"github.com/hyperjump/tutor/internal/vector"
	"go.uber.org/zap"
)

const dims = 16

// fakeRebuilder writes a snapshot with n chunks, or fails when n is 0 and err is set.
type fakeRebuilder struct {
	path  string
	n     int
	err   error
	calls atomic.Int32
}

func (r *fakeRebuilder) Rebuild(ctx context.Context, emb embedding.Embedder) (int, error) {
	r.calls.Add(1)
	if r.err != nil {
		return 0, r.err
	}
	if err := saveSnapshot(r.path, emb, r.n); err != nil {
		return 0, err
	}
	return r.n, nil
}

func saveSnapshot(path string, emb embedding.Embedder, n int) error {
	idx, err := vector.New(emb.ModelID(), emb.Dimensions())
	if err != nil {
		return err
	}
	batch := make([]models.EmbeddedChunk, n)
	for i := range batch {
		text := "chunk about topic " + string(rune('a'+i))
		vec, err := emb.Embed(context.Background(), text)
		if err != nil {
			return err
		}
		batch[i] = models.EmbeddedChunk{
			Chunk:  models.Chunk{SourceID: "notes.txt", Page: 1, ChunkIndex: i, Content: text},
			Vector: vec,
		}
	}
	if err := idx.Add(context.Background(), batch); err != nil {
		return err
	}
	return idx.Save(path)
}

func writeSnapshot(t *testing.T, path string, emb embedding.Embedder, n int) {
	t.Helper()
	if err := saveSnapshot(path, emb, n); err != nil {
		t.Fatal(err)
	}
}

func countingFactory(calls *atomic.Int32) EmbedderFactory {
	return func() (embedding.Embedder, error) {
		calls.Add(1)
		// Slow enough that concurrent callers pile up behind the first.
		time.Sleep(20 * time.Millisecond)
		return embedding.NewHashEmbedder(dims), nil
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		Uninitialized: "uninitialized",
		Initializing:  "initializing",
		Ready:         "ready",
		State(9):      "State(9)",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}

func TestEnsureReady_loadsExistingSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tutor.idx")
	writeSnapshot(t, path, embedding.NewHashEmbedder(dims), 3)

	var calls atomic.Int32
	m := New(path, countingFactory(&calls), WithLogger(zap.NewNop()))
	if m.IsReady() || m.State() != Uninitialized {
		t.Fatal("new manager should be uninitialized")
	}
	snap, err := m.EnsureReady(context.Background())
	if err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if snap.Index.Size() != 3 {
		t.Errorf("Size = %d, want 3", snap.Index.Size())
	}
	if !m.IsReady() || m.State() != Ready {
		t.Errorf("IsReady = %v, State = %v", m.IsReady(), m.State())
	}
	if snap.Keywords != nil {
		t.Error("keyword index built without WithKeywordIndex")
	}
}

func TestEnsureReady_concurrentCallersShareOneInit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tutor.idx")
	reb := &fakeRebuilder{path: path, n: 4}
	var embedCalls, loadCalls atomic.Int32
	m := New(path, countingFactory(&embedCalls),
		WithRebuilder(reb),
		WithIndexLoader(func(p string) (vector.VectorIndex, error) {
			loadCalls.Add(1)
			return vector.Load(p)
		}))

	const n = 16
	var wg sync.WaitGroup
	snaps := make([]*Snapshot, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := m.EnsureReady(context.Background())
			if err != nil {
				t.Errorf("EnsureReady: %v", err)
				return
			}
			snaps[i] = snap
		}(i)
	}
	wg.Wait()

	if got := embedCalls.Load(); got != 1 {
		t.Errorf("embedder constructed %d times, want 1", got)
	}
	if got := reb.calls.Load(); got != 1 {
		t.Errorf("rebuild ran %d times, want 1", got)
	}
	// One failed load (missing) plus one after rebuild.
	if got := loadCalls.Load(); got != 2 {
		t.Errorf("index loaded %d times, want 2", got)
	}
	for i := 1; i < n; i++ {
		if snaps[i] != snaps[0] {
			t.Fatalf("caller %d got a different snapshot", i)
		}
	}
}

func TestEnsureReady_noCorpusStaysUninitialized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tutor.idx")
	reb := &fakeRebuilder{path: path, err: errs.Errorf(errs.NoCorpus, "test", "no documents")}
	var calls atomic.Int32
	m := New(path, countingFactory(&calls), WithRebuilder(reb))

	_, err := m.EnsureReady(context.Background())
	if !errors.Is(err, errs.ErrIndexUnavailable) {
		t.Fatalf("err = %v, want index unavailable", err)
	}
	if !errors.Is(err, errs.ErrNoCorpus) {
		t.Errorf("err = %v, should wrap no corpus", err)
	}
	if m.IsReady() || m.State() != Uninitialized {
		t.Errorf("IsReady = %v, State = %v", m.IsReady(), m.State())
	}

	// The next call retries and succeeds once a corpus exists.
	reb.err, reb.n = nil, 2
	snap, err := m.EnsureReady(context.Background())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if snap.Index.Size() != 2 || reb.calls.Load() != 2 {
		t.Errorf("size = %d, rebuild calls = %d", snap.Index.Size(), reb.calls.Load())
	}
	if calls.Load() != 1 {
		t.Errorf("embedder constructed %d times, want 1", calls.Load())
	}
}

func TestEnsureReady_noRebuilder(t *testing.T) {
	m := New(filepath.Join(t.TempDir(), "missing.idx"), func() (embedding.Embedder, error) {
		return embedding.NewHashEmbedder(dims), nil
	})
	if _, err := m.EnsureReady(context.Background()); !errors.Is(err, errs.ErrIndexUnavailable) {
		t.Fatalf("err = %v, want index unavailable", err)
	}
}

func TestEnsureReady_emptyRebuild(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tutor.idx")
	m := New(path, countingFactory(new(atomic.Int32)), WithRebuilder(&fakeRebuilder{path: path, n: 0}))
	if _, err := m.EnsureReady(context.Background()); !errors.Is(err, errs.ErrIndexUnavailable) {
		t.Fatalf("err = %v, want index unavailable", err)
	}
}

func TestEnsureReady_waitersShareError(t *testing.T) {
	gate := make(chan struct{})
	boom := errors.New("model file missing")
	m := New(filepath.Join(t.TempDir(), "tutor.idx"), func() (embedding.Embedder, error) {
		<-gate
		return nil, boom
	})

	const n = 5
	errc := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := m.EnsureReady(context.Background())
			errc <- err
		}()
	}
	// Let the callers queue up behind the blocked factory.
	for m.State() != Initializing {
		time.Sleep(time.Millisecond)
	}
	close(gate)
	for i := 0; i < n; i++ {
		err := <-errc
		if !errors.Is(err, boom) || !errors.Is(err, errs.ErrIndexUnavailable) {
			t.Errorf("err = %v", err)
		}
	}
}

func TestEnsureReady_dimensionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tutor.idx")
	writeSnapshot(t, path, embedding.NewHashEmbedder(8), 1)
	m := New(path, func() (embedding.Embedder, error) { return embedding.NewHashEmbedder(dims), nil })
	if _, err := m.EnsureReady(context.Background()); !errors.Is(err, errs.ErrDimensionMismatch) {
		t.Fatalf("err = %v, want dimension mismatch", err)
	}
}

func TestEnsureReady_callerCancelDoesNotAbortInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tutor.idx")
	writeSnapshot(t, path, embedding.NewHashEmbedder(dims), 2)
	gate := make(chan struct{})
	m := New(path, func() (embedding.Embedder, error) {
		<-gate
		return embedding.NewHashEmbedder(dims), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := m.EnsureReady(ctx)
		errc <- err
	}()
	for m.State() != Initializing {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	close(gate)

	snap, err := m.EnsureReady(context.Background())
	if err != nil {
		t.Fatalf("EnsureReady after cancel: %v", err)
	}
	if snap.Index.Size() != 2 {
		t.Errorf("Size = %d", snap.Index.Size())
	}
}

func TestReload_picksUpNewChunks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tutor.idx")
	emb := embedding.NewHashEmbedder(dims)
	writeSnapshot(t, path, emb, 2)
	m := New(path, func() (embedding.Embedder, error) { return emb, nil }, WithKeywordIndex(true))
	t.Cleanup(func() { _ = m.Close() })

	idx, err := m.Index(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 2 {
		t.Fatalf("Size = %d", idx.Size())
	}
	got, err := m.Embedder(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got.ModelID() != emb.ModelID() {
		t.Errorf("Embedder ModelID = %q, want %q", got.ModelID(), emb.ModelID())
	}

	writeSnapshot(t, path, emb, 5)
	if err := m.Reload(context.Background()); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	snap, err := m.EnsureReady(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if snap.Index.Size() != 5 {
		t.Errorf("Size after reload = %d, want 5", snap.Index.Size())
	}
	if snap.Keywords == nil {
		t.Fatal("keyword index missing")
	}
	if n, err := snap.Keywords.DocCount(); err != nil || n != 5 {
		t.Errorf("keyword DocCount = %d, %v; want 5", n, err)
	}
	// The index handed out before the reload is unchanged.
	if idx.Size() != 2 {
		t.Errorf("old index mutated: size %d", idx.Size())
	}
}

func TestReload_failureLeavesUninitialized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tutor.idx")
	emb := embedding.NewHashEmbedder(dims)
	writeSnapshot(t, path, emb, 1)
	m := New(path, func() (embedding.Embedder, error) { return emb, nil })
	if _, err := m.EnsureReady(context.Background()); err != nil {
		t.Fatal(err)
	}

	writeSnapshot(t, path, embedding.NewHashEmbedder(8), 1)
	if err := m.Reload(context.Background()); !errors.Is(err, errs.ErrDimensionMismatch) {
		t.Fatalf("err = %v", err)
	}
	if m.IsReady() {
		t.Error("manager should not serve the dropped index")
	}
}

func TestLoadEmbedder_withoutIndex(t *testing.T) {
	var calls atomic.Int32
	m := New(filepath.Join(t.TempDir(), "none.idx"), countingFactory(&calls))
	for i := 0; i < 3; i++ {
		emb, err := m.LoadEmbedder(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if emb.Dimensions() != dims {
			t.Errorf("Dimensions = %d", emb.Dimensions())
		}
	}
	if calls.Load() != 1 {
		t.Errorf("factory called %d times", calls.Load())
	}
	if m.IsReady() {
		t.Error("LoadEmbedder must not make the index ready")
	}
}

func TestReload_closesRetiredKeywordIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tutor.idx")
	emb := embedding.NewHashEmbedder(dims)
	writeSnapshot(t, path, emb, 2)
	m := New(path, func() (embedding.Embedder, error) { return emb, nil }, WithKeywordIndex(true))
	t.Cleanup(func() { _ = m.Close() })
	ctx := context.Background()

	before, err := m.EnsureReady(ctx)
	if err != nil {
		t.Fatal(err)
	}
	writeSnapshot(t, path, emb, 3)
	if err := m.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	after := m.Current()
	if after == nil || after == before {
		t.Fatal("reload did not publish a new snapshot")
	}

	if _, err := before.Keywords.Search(ctx, "chunk", 5); !errors.Is(err, keyword.ErrClosed) {
		t.Errorf("search on retired keyword index: err = %v, want ErrClosed", err)
	}
	if n, err := after.Keywords.DocCount(); err != nil || n != 3 {
		t.Errorf("current keyword DocCount = %d, %v; want 3", n, err)
	}
}
