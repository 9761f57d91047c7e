package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/tutor/internal/embedding"
	"github.com/hyperjump/tutor/internal/errs"
	"github.com/hyperjump/tutor/internal/keyword"
	"github.com/hyperjump/tutor/internal/manager"
	"github.com/hyperjump/tutor/internal/models"
	"github.com/hyperjump/tutor/internal/vector"
	"go.uber.org/zap"
)

type fixedSnapshots struct {
	snap *manager.Snapshot
	err  error
}

func (f fixedSnapshots) EnsureReady(context.Context) (*manager.Snapshot, error) {
	return f.snap, f.err
}

var corpus = []models.Chunk{
	{SourceID: "lecture1.pdf", Page: 1, ChunkIndex: 0, Content: "Gradient descent updates the weights along the negative gradient of the loss."},
	{SourceID: "lecture1.pdf", Page: 2, ChunkIndex: 1, Content: "The learning rate controls the step size of gradient descent."},
	{SourceID: "lecture2.pdf", Page: 1, ChunkIndex: 0, Content: "Decision trees split the data on the feature with the highest information gain."},
	{SourceID: "lecture3.pdf", Page: 4, ChunkIndex: 0, Content: "Bayes rule relates the posterior to the likelihood and the prior."},
}

func newSnapshot(t *testing.T, chunks []models.Chunk, withKeywords bool) *manager.Snapshot {
	t.Helper()
	ctx := context.Background()
	emb := embedding.NewHashEmbedder(128)
	idx, err := vector.New(emb.ModelID(), emb.Dimensions())
	if err != nil {
		t.Fatal(err)
	}
	batch := make([]models.EmbeddedChunk, len(chunks))
	for i, c := range chunks {
		vec, err := emb.Embed(ctx, c.Content)
		if err != nil {
			t.Fatal(err)
		}
		batch[i] = models.EmbeddedChunk{Chunk: c, Vector: vec}
	}
	if err := idx.Add(ctx, batch); err != nil {
		t.Fatal(err)
	}
	snap := &manager.Snapshot{Embedder: emb, Index: idx}
	if withKeywords {
		kw, err := keyword.Build(ctx, idx.Chunks())
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = kw.Close() })
		snap.Keywords = kw
	}
	return snap
}

func TestRetrieve_ranksBySimilarity(t *testing.T) {
	r := New(fixedSnapshots{snap: newSnapshot(t, corpus, false)}, 3, WithLogger(zap.NewNop()))
	got, err := r.Retrieve(context.Background(), "what does bayes rule relate", 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want default top k 3", len(got))
	}
	if got[0].SourceID != "lecture3.pdf" || got[0].Page != 4 {
		t.Errorf("top result = %s p.%d, want lecture3.pdf p.4", got[0].SourceID, got[0].Page)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("results not sorted: %f > %f", got[i].Score, got[i-1].Score)
		}
	}
}

func TestRetrieve_k(t *testing.T) {
	r := New(fixedSnapshots{snap: newSnapshot(t, corpus, false)}, 2)
	tests := []struct {
		k, want int
	}{
		{0, 2},
		{-1, 2},
		{1, 1},
		{4, 4},
		{10, 4},
		{models.MaxTopK + 100, 4},
	}
	for _, tt := range tests {
		got, err := r.Retrieve(context.Background(), "gradient descent", tt.k)
		if err != nil {
			t.Fatalf("k=%d: %v", tt.k, err)
		}
		if len(got) != tt.want {
			t.Errorf("k=%d: len = %d, want %d", tt.k, len(got), tt.want)
		}
	}
}

func TestRetrieve_emptyQuery(t *testing.T) {
	r := New(fixedSnapshots{snap: newSnapshot(t, corpus, false)}, 3)
	if _, err := r.Retrieve(context.Background(), "   ", 3); !errors.Is(err, errs.ErrInvalidInput) {
		t.Fatalf("err = %v, want invalid input", err)
	}
}

func TestRetrieve_emptyIndex(t *testing.T) {
	r := New(fixedSnapshots{snap: newSnapshot(t, nil, false)}, 3)
	got, err := r.Retrieve(context.Background(), "anything", 3)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty non-nil slice", got)
	}
}

func TestRetrieve_unavailable(t *testing.T) {
	boom := errs.Errorf(errs.IndexUnavailable, "manager.rebuild", "no corpus")
	r := New(fixedSnapshots{err: boom}, 3)
	if _, err := r.Retrieve(context.Background(), "gradient", 3); !errors.Is(err, errs.ErrIndexUnavailable) {
		t.Fatalf("err = %v, want index unavailable", err)
	}
}

func TestRetrieve_hybrid(t *testing.T) {
	r := New(fixedSnapshots{snap: newSnapshot(t, corpus, true)}, 2, WithHybrid(true))
	got, err := r.Retrieve(context.Background(), "learning rate", 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].SourceID != "lecture1.pdf" || got[0].Page != 2 {
		t.Errorf("top result = %s p.%d, want lecture1.pdf p.2", got[0].SourceID, got[0].Page)
	}
	if got[0].Score <= 0 || got[0].Score > 1 {
		t.Errorf("fused score %f out of range", got[0].Score)
	}
}

func TestRetrieve_hybridWithoutKeywordsFallsBack(t *testing.T) {
	r := New(fixedSnapshots{snap: newSnapshot(t, corpus, false)}, 1, WithHybrid(true))
	got, err := r.Retrieve(context.Background(), "decision trees information gain", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].SourceID != "lecture2.pdf" {
		t.Errorf("got %+v", got)
	}
}

// positionalIndex fails the test if the full chunk list is copied during retrieval.
type positionalIndex struct {
	vector.VectorIndex
	t *testing.T
}

func (p positionalIndex) Chunks() []models.EmbeddedChunk {
	p.t.Error("hybrid retrieval copied the whole index")
	return p.VectorIndex.Chunks()
}

func TestRetrieve_hybridLooksUpChunksByPosition(t *testing.T) {
	snap := newSnapshot(t, corpus, true)
	snap.Index = positionalIndex{VectorIndex: snap.Index, t: t}
	r := New(fixedSnapshots{snap: snap}, 2, WithHybrid(true))
	got, err := r.Retrieve(context.Background(), "learning rate", 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 2 || got[0].SourceID != "lecture1.pdf" {
		t.Errorf("got %+v", got)
	}
}

func TestRetrieve_hybridAfterKeywordIndexRetired(t *testing.T) {
	snap := newSnapshot(t, corpus, true)
	if err := snap.Keywords.Close(); err != nil {
		t.Fatal(err)
	}
	r := New(fixedSnapshots{snap: snap}, 1, WithHybrid(true))
	got, err := r.Retrieve(context.Background(), "decision trees information gain", 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 1 || got[0].SourceID != "lecture2.pdf" {
		t.Errorf("got %+v, want semantic ranking", got)
	}
}
