// Package server provides the HTTP API for ad-hoc ranked retrieval.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hyperjump/reteval/internal/config"
	"github.com/hyperjump/reteval/internal/querystream"
	"github.com/hyperjump/reteval/internal/search"
	"github.com/hyperjump/reteval/internal/suggest"
)

// Server is the HTTP server for the search API.
type Server struct {
	pool     *search.Pool
	config   *config.ServerConfig
	logger   *zap.Logger
	analyzer *querystream.Analyzer
	suggest  *suggest.Suggester
	disk     []string

	suggestDistance int

	cache   *responseCache
	group   singleflight.Group
	metrics *Metrics
	server  *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithAnalyzer normalizes request query text before lookup.
func WithAnalyzer(a *querystream.Analyzer) Option {
	return func(s *Server) { s.analyzer = a }
}

// WithDiskPaths lists the index files whose size is reported by the stats endpoint.
func WithDiskPaths(paths ...string) Option {
	return func(s *Server) { s.disk = paths }
}

// WithSuggestDistance sets the largest edit distance of suggestions for dropped
// terms. Zero keeps the default; negative disables suggestions.
func WithSuggestDistance(d int) Option {
	return func(s *Server) { s.suggestDistance = d }
}

// NewServer creates a server searching through pool.
func NewServer(pool *search.Pool, cfg *config.ServerConfig, opts ...Option) *Server {
	s := &Server{
		pool:   pool,
		config: cfg,
		logger: zap.NewNop(),
		cache:  newResponseCache(cfg.CacheSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	if vocab, ok := pool.Index().(suggest.Vocabulary); ok && s.suggestDistance >= 0 {
		s.suggest = suggest.New(vocab, suggest.WithMaxDistance(s.suggestDistance))
	}
	s.metrics = NewMetrics(s.cache.Len)
	return s
}

// Handler returns the router with every route and middleware installed.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/api/v1/stats", s.handleStats)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
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
