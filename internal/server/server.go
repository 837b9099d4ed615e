// Package server provides the HTTP API for Emendo.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/emendo/emendo/internal/config"
	"github.com/emendo/emendo/internal/enhance"
	"github.com/emendo/emendo/internal/keyword"
	"github.com/emendo/emendo/internal/knowledge"
	"github.com/emendo/emendo/internal/progress"
	"github.com/emendo/emendo/internal/storage"
)

// Server is the HTTP server for the Emendo API.
type Server struct {
	enhancer  *enhance.Enhancer
	extractor *knowledge.Extractor
	storage   storage.Storage
	tasks     *progress.Store
	index     keyword.SnippetIndex
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	enhancer *enhance.Enhancer,
	extractor *knowledge.Extractor,
	store storage.Storage,
	tasks *progress.Store,
	index keyword.SnippetIndex,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		enhancer:  enhancer,
		extractor: extractor,
		storage:   store,
		tasks:     tasks,
		index:     index,
		config:    cfg,
		logger:    logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/models", s.handleModels)

	r.Post("/api/v1/correct", s.handleCorrect)
	r.Post("/api/v1/correct/async", s.handleCorrectAsync)
	r.Post("/api/v1/extract", s.handleExtract)

	r.Get("/api/v1/progress/{taskID}", s.handleGetProgress)
	r.Delete("/api/v1/progress/{taskID}", s.handleDeleteProgress)

	r.Post("/api/v1/documents", s.handleCreateDocument)
	r.Get("/api/v1/documents", s.handleListDocuments)
	r.Get("/api/v1/documents/{id}", s.handleGetDocument)
	r.Delete("/api/v1/documents/{id}", s.handleDeleteDocument)

	r.Post("/api/v1/snippets", s.handleSaveSnippets)
	r.Get("/api/v1/snippets", s.handleListSnippets)
	r.Get("/api/v1/snippets/search", s.handleSearchSnippets)
	r.Delete("/api/v1/snippets/{id}", s.handleDeleteSnippet)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
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
