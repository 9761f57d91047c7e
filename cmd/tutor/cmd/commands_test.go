package cmd

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/tutor/internal/answer"
	"github.com/hyperjump/tutor/internal/config"
	"github.com/hyperjump/tutor/internal/ingest"
	"github.com/hyperjump/tutor/internal/models"
	"github.com/hyperjump/tutor/internal/server"
	"go.uber.org/zap"
)

const bayesNotes = `Bayes rule relates the posterior probability to the prior and the likelihood.
The posterior is proportional to the likelihood times the prior.`

const gradientNotes = `Gradient descent updates parameters against the gradient of the loss.
The learning rate controls the step size of each update.`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default(dir)
	cfg.Corpus.CandidateDirs = []string{filepath.Join(dir, "corpus")}
	cfg.Embedding.Dimensions = 64
	cfg.Generation.APIKeyEnv = "TUTOR_TEST_UNSET_KEY"
	t.Setenv("TUTOR_TEST_UNSET_KEY", "")
	return cfg
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestAPI(t *testing.T, cfg *config.Config) (*apiClient, *Components) {
	t.Helper()
	components, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(components.Close)
	srv := server.NewServer(components.Answers, components.Assistant, components.Retriever, components.Ingestor,
		components.Manager, components.Sessions, components.Catalog, cfg, zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return newAPIClient(ts.URL), components
}

func TestAPIClient_ingestAndRetrieve(t *testing.T) {
	cfg := testConfig(t)
	client, components := newTestAPI(t, cfg)
	ctx := context.Background()

	upload := writeFile(t, filepath.Join(t.TempDir(), "bayes.md"), bayesNotes)
	res, err := client.ingestFile(ctx, upload)
	if err != nil {
		t.Fatalf("ingestFile: %v", err)
	}
	if res.Status != models.IngestSuccess || res.AddedChunks == 0 {
		t.Fatalf("ingest result = %+v", res)
	}

	dir := filepath.Join(t.TempDir(), "week2")
	writeFile(t, filepath.Join(dir, "gradient.txt"), gradientNotes)
	if _, err := client.ingestDirectory(ctx, dir); err != nil {
		t.Fatalf("ingestDirectory: %v", err)
	}
	if !components.Manager.IsReady() {
		t.Fatal("manager should be ready after ingest reload")
	}

	chunks, err := client.retrieve(ctx, "posterior prior likelihood", 1)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(chunks) != 1 || chunks[0].SourceID != "bayes.md" {
		t.Fatalf("chunks = %+v", chunks)
	}

	status, err := client.status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.State != "ready" || status.IndexChunks == nil || *status.IndexChunks < 2 || status.Documents != 2 {
		t.Errorf("status = %+v", status)
	}
}

func TestAPIClient_errors(t *testing.T) {
	cfg := testConfig(t)
	client, _ := newTestAPI(t, cfg)
	ctx := context.Background()

	_, err := client.ingestFile(ctx, writeFile(t, filepath.Join(t.TempDir(), "image.png"), "png"))
	var apiErr *apiError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || apiErr.Kind != "invalid_input" {
		t.Fatalf("unsupported upload err = %v", err)
	}

	// No snapshot and an empty corpus dir: the index cannot be built.
	_, err = client.retrieve(ctx, "anything", 0)
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("retrieve without corpus err = %v", err)
	}

	err = client.clearSession(ctx, "nobody")
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound {
		t.Fatalf("clear unknown session err = %v", err)
	}
}

func TestAPIClient_askWithoutGenerator(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.Corpus.CandidateDirs[0], "bayes.md"), bayesNotes)
	client, components := newTestAPI(t, cfg)

	_, err := client.ask(context.Background(), models.AskRequest{Question: "what is a posterior?", SessionID: "s1"})
	var apiErr *apiError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusInternalServerError {
		t.Fatalf("ask err = %v", err)
	}
	if !strings.Contains(apiErr.Message, "TUTOR_TEST_UNSET_KEY") {
		t.Errorf("message = %q", apiErr.Message)
	}
	// Retrieval ran, so the corpus was rebuilt; the failed turn was not remembered.
	if !components.Manager.IsReady() {
		t.Error("index should have been rebuilt from the corpus")
	}
	if components.Sessions.Exists("s1") {
		t.Error("failed answer must not be recorded")
	}
	view, err := client.session(context.Background(), "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Turns) != 0 {
		t.Errorf("turns = %+v", view.Turns)
	}
}

func TestAPIClient_generateWithoutGenerator(t *testing.T) {
	cfg := testConfig(t)
	client, _ := newTestAPI(t, cfg)
	ctx := context.Background()

	resp, err := client.commitMessage(ctx, "  \n")
	if err != nil {
		t.Fatalf("blank diff: %v", err)
	}
	if resp.Message != answer.FallbackCommitMessage {
		t.Errorf("message = %q", resp.Message)
	}

	_, err = client.commitMessage(ctx, "+int overdraft;")
	var apiErr *apiError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusInternalServerError {
		t.Fatalf("commit message err = %v", err)
	}
	if !strings.Contains(apiErr.Message, "TUTOR_TEST_UNSET_KEY") {
		t.Errorf("message = %q", apiErr.Message)
	}

	_, err = client.generateTest(ctx, models.TestRequest{Requirement: "rejects negatives"})
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || apiErr.Kind != "invalid_input" {
		t.Fatalf("generate test err = %v", err)
	}
}

func TestReadDiff(t *testing.T) {
	got, err := readDiff(strings.NewReader("+stdin"), "")
	if err != nil || got != "+stdin" {
		t.Errorf("stdin: %q, %v", got, err)
	}
	path := writeFile(t, filepath.Join(t.TempDir(), "change.patch"), "+file")
	got, err = readDiff(strings.NewReader("+stdin"), path)
	if err != nil || got != "+file" {
		t.Errorf("file: %q, %v", got, err)
	}
	if _, err := readDiff(nil, filepath.Join(t.TempDir(), "none.patch")); err == nil {
		t.Error("expected error for a missing diff file")
	}
}

func TestIngestSources(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, filepath.Join(dir, "a.md"), "a")
	b := writeFile(t, filepath.Join(dir, "b.txt"), "b")
	sub := filepath.Join(dir, "week1")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}

	sources, err := ingestSources([]string{a, sub, b})
	if err != nil {
		t.Fatal(err)
	}
	if len(sources) != 2 {
		t.Fatalf("sources = %#v", sources)
	}
	if d, ok := sources[0].(ingest.Directory); !ok || d.Path != sub {
		t.Errorf("sources[0] = %#v", sources[0])
	}
	if l, ok := sources[1].(ingest.DocumentList); !ok || len(l.Paths) != 2 || l.Paths[0] != a || l.Paths[1] != b {
		t.Errorf("sources[1] = %#v", sources[1])
	}

	if _, err := ingestSources([]string{filepath.Join(dir, "missing.pdf")}); err == nil {
		t.Error("expected error for a missing path")
	}
}

func TestBuildAskRequest(t *testing.T) {
	code := writeFile(t, filepath.Join(t.TempDir(), "loop.py"), "while True:\n    pass\n")
	req, err := buildAskRequest([]string{"why", "no", "stop?"}, "s9", code, 500)
	if err != nil {
		t.Fatal(err)
	}
	if req.Question != "why no stop?" || req.SessionID != "s9" || req.K != models.MaxTopK {
		t.Errorf("req = %+v", req)
	}
	if !strings.Contains(req.CodeContext, "while True") {
		t.Errorf("code context = %q", req.CodeContext)
	}

	if _, err := buildAskRequest([]string{"  "}, "", "", 0); err == nil {
		t.Error("expected error for blank question")
	}
	if _, err := buildAskRequest([]string{"q"}, "", filepath.Join(t.TempDir(), "none.py"), 0); err == nil {
		t.Error("expected error for missing code file")
	}
}

func TestLocalStatus(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	status, err := localStatus(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if status.IndexChunks != nil || status.Documents != 0 {
		t.Errorf("empty status = %+v", status)
	}

	components, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := components.Ingestor.Ingest(ctx, ingest.SingleDocument{Name: "bayes.md", Content: []byte(bayesNotes)}); err != nil {
		t.Fatal(err)
	}
	components.Close()

	status, err = localStatus(ctx, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if status.IndexChunks == nil || *status.IndexChunks == 0 || status.Dimensions != 64 || status.Documents != 1 {
		t.Errorf("status = %+v", status)
	}

	var buf bytes.Buffer
	writeStatusText(&buf, status)
	for _, want := range []string{"state:              offline", "documents:          1", "dimensions:         64", "embedding_provider: hash"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("status text missing %q:\n%s", want, buf.String())
		}
	}
}
