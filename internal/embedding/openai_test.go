package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// fakeEmbeddingsServer answers /embeddings with vectors whose first component is the
// input's length, returned in reverse order to check index handling.
func fakeEmbeddingsServer(t *testing.T, dims int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type item struct {
			Object    string    `json:"object"`
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			v := make([]float32, dims)
			v[0] = float32(len(req.Input[i]))
			v[1] = 1
			data = append(data, item{Object: "embedding", Embedding: v, Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": "m"})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIEmbedder_EmbedBatch(t *testing.T) {
	var calls atomic.Int32
	srv := fakeEmbeddingsServer(t, 4, &calls)
	e, err := NewOpenAIEmbedder("sk-test", srv.URL+"/v1", "text-embedding-3-small", 4)
	if err != nil {
		t.Fatal(err)
	}
	texts := make([]string, openAIBatchSize+6)
	for i := range texts {
		texts[i] = string(make([]byte, i+1))
	}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 requests, got %d", calls.Load())
	}
	if len(vecs) != len(texts) {
		t.Fatalf("got %d vectors", len(vecs))
	}
	// v = (n, 1, 0, 0) normalized; larger n means larger first component.
	for i := 1; i < len(vecs); i++ {
		if vecs[i][0] <= vecs[i-1][0] {
			t.Fatalf("vector %d out of order", i)
		}
	}
}

func TestOpenAIEmbedder_DimensionMismatch(t *testing.T) {
	var calls atomic.Int32
	srv := fakeEmbeddingsServer(t, 8, &calls)
	e, err := NewOpenAIEmbedder("sk-test", srv.URL+"/v1", "m", 4)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(context.Background(), "hello"); err == nil {
		t.Error("expected error when the API returns a different dimension")
	}
}

func TestNewOpenAIEmbedder_requiresKey(t *testing.T) {
	if _, err := NewOpenAIEmbedder("", "", "", 0); err == nil {
		t.Error("expected error without API key")
	}
}
