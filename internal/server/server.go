// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes chat sessions, direct PMC search and the article
// cache over HTTP. Assistant answers are streamed as server-sent events.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pdiddy/pubmed-assistant/internal/chat"
	"github.com/pdiddy/pubmed-assistant/internal/metrics"
	"github.com/pdiddy/pubmed-assistant/pkg/types"
)

// Searcher runs a direct PubMed Central search.
type Searcher interface {
	FetchRecords(ctx context.Context, query string, retmax int) ([]types.Article, error)
}

// ArticleStore reads the local article cache.
type ArticleStore interface {
	SearchArticles(ctx context.Context, query string, limit int) ([]types.Article, error)
	GetArticle(ctx context.Context, pmcid string) (types.Article, error)
	Ping(ctx context.Context) error
}

// Pinger checks that a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves the HTTP API.
type Server struct {
	chat     *chat.Service
	search   Searcher
	articles ArticleStore
	model    Pinger
	limits   types.AgentConfig
	cfg      types.ServerConfig
	logger   *zap.Logger

	httpServer *http.Server
}

// New creates a Server. model may be nil, in which case /health only
// checks the store.
func New(
	sessions *chat.Service,
	search Searcher,
	articles ArticleStore,
	model Pinger,
	limits types.AgentConfig,
	cfg types.ServerConfig,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		chat:     sessions,
		search:   search,
		articles: articles,
		model:    model,
		limits:   limits,
		cfg:      cfg,
		logger:   logger,
	}
	s.httpServer = &http.Server{
		Addr:         s.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler builds the router with the middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeBadRequest, "method not allowed")
	})

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Get("/", s.handleListSessions)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)
				r.Get("/messages", s.handleHistory)
				r.Post("/messages", s.handleSendMessage)
				r.Get("/documents", s.handleDocuments)
			})
		})
		r.Get("/search", s.handleSearch)
		r.Get("/articles", s.handleSearchArticles)
		r.Get("/articles/{id}", s.handleGetArticle)
	})

	return r
}

// Addr returns the listen address from the configuration.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Start listens and serves until Stop is called. It returns nil after a
// graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving HTTP: %w", err)
	}
	return nil
}

// Stop shuts the server down, waiting for in-flight requests until ctx
// expires.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
