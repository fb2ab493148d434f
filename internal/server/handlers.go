package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hyperjump/bunko/internal/config"
	"github.com/hyperjump/bunko/internal/ingest"
	"github.com/hyperjump/bunko/internal/models"
	"github.com/hyperjump/bunko/internal/storage"
	"github.com/hyperjump/bunko/internal/store"
	"github.com/hyperjump/bunko/internal/vector"
	"go.uber.org/zap"
)

const maxUploadBytes = 64 << 20

// statusFor maps store and ingest errors caused by the request to 400.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidDocID),
		errors.Is(err, store.ErrChunkCountMismatch),
		errors.Is(err, vector.ErrDimensionMismatch),
		errors.Is(err, ingest.ErrUnsupportedExtension):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req models.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.ValidateLimits(s.cfg.Search.DefaultK, s.cfg.Search.MaxK); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.Int("dimensions", len(req.Vector)), zap.Int("k", req.K), zap.Strings("doc_ids", req.DocIDs))
	start := time.Now()
	hits, err := s.store.Search(r.Context(), req.Vector, req.K, req.DocIDs)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, &models.SearchResponse{
		Hits:      hits,
		Total:     len(hits),
		QueryTime: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.ValidateLimits(s.cfg.Search.DefaultK, s.cfg.Search.MaxK); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("query request", zap.String("query", req.Query), zap.Int("k", req.K))
	res, err := s.retriever.Retrieve(r.Context(), req.Query, req.K, req.DocIDs)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, res.Response)
}

func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	var input models.DocumentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("add document request", zap.String("id", input.ID), zap.Int("chunks", len(input.Chunks)))
	chunks, vectors := input.Split()
	if err := s.store.AddDocument(r.Context(), input.ID, chunks, vectors); err != nil {
		s.logger.Error("add document failed", zap.String("id", input.ID), zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"id":     input.ID,
		"chunks": len(chunks),
		"status": "indexed",
	})
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) {
		s.respondError(w, http.StatusBadRequest, "file name is required")
		return
	}
	tmpDir, err := os.MkdirTemp("", "bunko-upload-")
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer os.RemoveAll(tmpDir)
	tmpPath := filepath.Join(tmpDir, name)
	out, err := os.Create(tmpPath)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := out.Close(); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	opts := ingest.Options{
		DocID:  r.FormValue("id"),
		Title:  r.FormValue("title"),
		Source: name,
	}
	if opts.Title == "" {
		opts.Title = name
	}
	s.logger.Debug("upload request", zap.String("file", name), zap.Int64("size", header.Size))
	res, err := s.ingestor.IngestFile(r.Context(), tmpPath, opts)
	if err != nil {
		s.logger.Error("upload ingest failed", zap.String("file", name), zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	ids := s.store.ListDocuments()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": ids,
		"total":     len(ids),
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	chunks, ok := s.store.Chunks(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":         id,
		"chunks":     chunks,
		"searchable": s.store.Searchable(id),
	})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	if err := s.store.RemoveDocument(r.Context(), id); err != nil {
		s.logger.Error("deletion failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.store.Stats()
	resp := map[string]interface{}{
		"documents":  stats.Documents,
		"searchable": stats.Searchable,
		"chunks":     stats.Chunks,
		"rows":       stats.Rows,
	}
	usage, err := storage.StoreUsage(s.store.Dir(), s.cfg.Store.LedgerPath(), store.IndexExt)
	if err != nil {
		s.logger.Warn("status: disk usage failed", zap.Error(err))
	} else {
		resp["disk_usage_bytes"] = usage.Total
		resp["disk_usage"] = usage
	}
	resp["config"] = map[string]interface{}{
		"store_dir":            s.cfg.Store.Dir,
		"ledger_backend":       s.cfg.Store.LedgerBackend,
		"index_type":           stats.IndexType,
		"embedding_provider":   s.cfg.Embedding.Provider,
		"embedding_model":      s.cfg.Embedding.Model,
		"embedding_dimensions": s.cfg.Embedding.Dimensions,
		"chunk_size":           s.cfg.Ingest.ChunkSize,
		"chunk_overlap":        s.cfg.Ingest.ChunkOverlap,
		"default_k":            s.cfg.Search.DefaultK,
		"max_k":                s.cfg.Search.MaxK,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

// persistWatchDirectories writes the current watch roots back to the config file.
func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.cfg.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.cfg); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
