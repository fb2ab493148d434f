// Package server provides the HTTP API for bunko.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/bunko/internal/config"
	"github.com/hyperjump/bunko/internal/ingest"
	"github.com/hyperjump/bunko/internal/query"
	"github.com/hyperjump/bunko/internal/store"
	"go.uber.org/zap"
)

// WatchService manages the watched inbox directories. *watcher.Watcher satisfies it.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the bunko API.
type Server struct {
	store     *store.Store
	ingestor  *ingest.Ingestor
	retriever *query.Retriever
	cfg       *config.Config
	logger    *zap.Logger
	server    *http.Server

	watch      WatchService
	configPath string
	cfgMu      sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithWatch enables the watch directory endpoints.
func WithWatch(w WatchService) Option {
	return func(s *Server) { s.watch = w }
}

// WithConfigPath makes watch directory changes persist to the config file at path.
func WithConfigPath(path string) Option {
	return func(s *Server) { s.configPath = path }
}

// NewServer creates a server with the given dependencies.
func NewServer(
	st *store.Store,
	in *ingest.Ingestor,
	retriever *query.Retriever,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:     st,
		ingestor:  in,
		retriever: retriever,
		cfg:       cfg,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Post("/query", s.handleQuery)

		r.Get("/documents", s.handleListDocuments)
		r.Post("/documents", s.handleAddDocument)
		r.Post("/documents/upload", s.handleUploadDocument)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Delete("/documents/{id}", s.handleDeleteDocument)

		r.Get("/status", s.handleStatus)

		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// requestLogger logs each request through zap at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
