package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/tutor/internal/models"
)

// apiClient talks to a running tutor server so the CLI never opens the snapshot or the
// catalog while the server holds them.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// apiError is the error body the server writes.
type apiError struct {
	Status   int    `json:"-"`
	Message  string `json:"error"`
	Kind     string `json:"kind,omitempty"`
	Document string `json:"document,omitempty"`
}

func (e *apiError) Error() string {
	msg := fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	if e.Document != "" {
		msg += " (document " + e.Document + ")"
	}
	return msg
}

// sessionView is the GET /api/v1/sessions/{id} body.
type sessionView struct {
	SessionID string        `json:"session_id"`
	Turns     []models.Turn `json:"turns"`
	History   string        `json:"history"`
}

func (c *apiClient) retrieve(ctx context.Context, query string, k int) ([]models.RetrievedChunk, error) {
	var out struct {
		Results []models.RetrievedChunk `json:"results"`
	}
	if err := c.postJSON(ctx, "/api/v1/retrieve", models.RetrieveQuery{Query: query, K: k}, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *apiClient) ask(ctx context.Context, req models.AskRequest) (*models.AskResponse, error) {
	var out models.AskResponse
	if err := c.postJSON(ctx, "/api/v1/ask", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) commitMessage(ctx context.Context, diff string) (*models.CommitMessageResponse, error) {
	var out models.CommitMessageResponse
	if err := c.postJSON(ctx, "/api/v1/generate/commit-message", models.CommitMessageRequest{Diff: diff}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) generateTest(ctx context.Context, req models.TestRequest) (*models.TestResponse, error) {
	var out models.TestResponse
	if err := c.postJSON(ctx, "/api/v1/generate/test", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ingestFile uploads one document as multipart field "file".
func (c *apiClient) ingestFile(ctx context.Context, path string) (models.IngestResult, error) {
	var res models.IngestResult
	f, err := os.Open(path)
	if err != nil {
		return res, err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return res, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return res, fmt.Errorf("read %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return res, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/documents", &body)
	if err != nil {
		return res, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	err = c.do(req, &res)
	return res, err
}

// ingestDirectory asks the server to ingest a directory on its own filesystem.
func (c *apiClient) ingestDirectory(ctx context.Context, dir string) (models.IngestResult, error) {
	var res models.IngestResult
	form := url.Values{"directory": {dir}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/documents", strings.NewReader(form.Encode()))
	if err != nil {
		return res, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	err = c.do(req, &res)
	return res, err
}

func (c *apiClient) status(ctx context.Context) (*statusResponse, error) {
	var out statusResponse
	if err := c.get(ctx, "/api/v1/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) session(ctx context.Context, id string) (*sessionView, error) {
	var out sessionView
	if err := c.get(ctx, "/api/v1/sessions/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) clearSession(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/v1/sessions/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

func (c *apiClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *apiClient) postJSON(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *apiClient) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &apiError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(b, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(b))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
