package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/tutor/internal/errs"
	"github.com/hyperjump/tutor/internal/ingest"
	"github.com/hyperjump/tutor/internal/models"
	"github.com/hyperjump/tutor/internal/storage"
	"github.com/hyperjump/tutor/pkg/utils"
	"go.uber.org/zap"
)

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("ask request", zap.String("question", utils.Truncate(req.Question, 80)), zap.String("session", req.SessionID))
	resp, err := s.asker.Ask(r.Context(), req)
	if err != nil {
		s.respondErr(w, "ask", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var q models.RetrieveQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	chunks, err := s.retriever.Retrieve(r.Context(), q.Query, q.K)
	if err != nil {
		s.respondErr(w, "retrieve", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"query": q.Query, "results": chunks})
}

func (s *Server) handleGenerateDocs(w http.ResponseWriter, r *http.Request) {
	var req models.DocsRequest
	if !s.decodeGenerate(w, r, &req) {
		return
	}
	resp, err := s.assistant.GenerateDocs(r.Context(), req)
	if err != nil {
		s.respondErr(w, "generate docs", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGenerateTest(w http.ResponseWriter, r *http.Request) {
	var req models.TestRequest
	if !s.decodeGenerate(w, r, &req) {
		return
	}
	resp, err := s.assistant.GenerateTest(r.Context(), req)
	if err != nil {
		s.respondErr(w, "generate test", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCommitMessage(w http.ResponseWriter, r *http.Request) {
	var req models.CommitMessageRequest
	if !s.decodeGenerate(w, r, &req) {
		return
	}
	resp, err := s.assistant.CommitMessage(r.Context(), req)
	if err != nil {
		s.respondErr(w, "commit message", err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// decodeGenerate reads a generation request body, answering 501 when no assistant is
// configured. It reports whether the handler should continue.
func (s *Server) decodeGenerate(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if s.assistant == nil {
		s.respondError(w, http.StatusNotImplemented, "assistant not enabled")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// handleIngest accepts a multipart "file" upload or a "directory" form value, ingests it,
// then reloads the index so the new chunks are searchable.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	src, err := sourceFromRequest(r)
	if err != nil {
		s.respondErr(w, "ingest", err)
		return
	}
	res, err := s.ingester.Ingest(r.Context(), src)
	if err != nil {
		s.respondErrWith(w, "ingest", err, res)
		return
	}
	if err := s.index.Reload(r.Context()); err != nil {
		s.logger.Warn("reload after ingest failed", zap.Error(err))
	}
	s.respondJSON(w, http.StatusCreated, struct {
		models.IngestResult
		IndexReady bool `json:"index_ready"`
	}{res, s.index.IsReady()})
}

func sourceFromRequest(r *http.Request) (ingest.Source, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, errs.E(errs.InvalidInput, "ingest.upload", err)
	}
	if r.MultipartForm != nil {
		if files := r.MultipartForm.File["file"]; len(files) > 0 {
			f, err := files[0].Open()
			if err != nil {
				return nil, errs.E(errs.InvalidInput, "ingest.upload", err)
			}
			defer f.Close()
			content, err := io.ReadAll(f)
			if err != nil {
				return nil, errs.E(errs.InvalidInput, "ingest.upload", err)
			}
			return ingest.SingleDocument{Name: files[0].Filename, Content: content}, nil
		}
	}
	if dir := strings.TrimSpace(r.FormValue("directory")); dir != "" {
		return ingest.Directory{Path: dir}, nil
	}
	return nil, errs.Errorf(errs.InvalidInput, "ingest", "a file upload or a directory is required")
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		s.respondError(w, http.StatusNotImplemented, "catalog not enabled")
		return
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	docs, err := s.catalog.ListDocuments(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []*models.DocumentRecord{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "offset": offset, "limit": limit})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": id,
		"turns":      s.sessions.Get(id),
		"history":    s.sessions.FormatHistory(id),
	})
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.sessions.Clear(id) {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"session_id": id, "status": "cleared"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "initializing"
	if s.index.IsReady() {
		status = "healthy"
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      status,
		"state":       s.index.State().String(),
		"model_ready": s.index.IsReady(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := map[string]interface{}{
		"state":    s.index.State().String(),
		"sessions": s.sessions.Len(),
	}
	if snap := s.index.Current(); snap != nil {
		resp["index_chunks"] = snap.Index.Size()
		resp["model_id"] = snap.Index.ModelID()
		resp["dimensions"] = snap.Index.Dimensions()
	}
	if s.catalog != nil {
		docCount, err := s.catalog.CountDocuments(ctx)
		if err != nil {
			s.logger.Error("status: count documents failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		chunkCount, err := s.catalog.CountChunks(ctx)
		if err != nil {
			s.logger.Error("status: count chunks failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		resp["documents"] = docCount
		resp["chunks"] = chunkCount
	}

	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"embedding_provider": s.config.Embedding.Provider,
			"chunk_size":         s.config.RAG.ChunkSize,
			"chunk_overlap":      s.config.RAG.ChunkOverlap,
			"top_k":              s.config.RAG.TopK,
			"hybrid":             s.config.RAG.Hybrid,
			"snapshot_path":      s.config.Storage.SnapshotPath,
			"catalog_path":       s.config.Storage.CatalogPath,
		}
		if fp, err := storage.MeasureFootprint(s.config.Storage.SnapshotPath, s.config.Storage.CatalogPath); err == nil {
			resp["disk_usage_bytes"] = fp.Total()
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// statusFor maps an error to the HTTP status its kind implies.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499
	}
	switch errs.KindOf(err) {
	case errs.InvalidInput:
		return http.StatusBadRequest
	case errs.Extraction, errs.EmptyBatch:
		return http.StatusUnprocessableEntity
	case errs.IndexUnavailable, errs.NoCorpus:
		return http.StatusServiceUnavailable
	case errs.DimensionMismatch:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondErr(w http.ResponseWriter, op string, err error) {
	s.respondErrWith(w, op, err, nil)
}

// respondErrWith writes err with its kind and, when body is non-nil, body's fields.
func (s *Server) respondErrWith(w http.ResponseWriter, op string, err error, body interface{}) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Error(err))
	} else {
		s.logger.Debug(op+" rejected", zap.Error(err))
	}
	out := map[string]interface{}{
		"error": err.Error(),
		"kind":  errs.KindOf(err).String(),
	}
	if doc := errs.DocumentOf(err); doc != "" {
		out["document"] = doc
	}
	if body != nil {
		out["result"] = body
	}
	s.respondJSON(w, status, out)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
