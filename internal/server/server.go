// Package server provides the HTTP front end for Stargaze: the HTML gallery page
// and a JSON API over the same pipeline.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hyperjump/stargaze/internal/config"
	"github.com/hyperjump/stargaze/internal/metrics"
	"github.com/hyperjump/stargaze/internal/modal"
	"github.com/hyperjump/stargaze/internal/page"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Archive is the image source the server searches. SetAPIKey and SetBaseURL let a
// config reload reach a running client.
type Archive interface {
	page.Fetcher
	SetAPIKey(key string)
	SetBaseURL(base string)
}

// Server is the HTTP server for the Stargaze gallery.
type Server struct {
	archive Archive
	loader  modal.Loader
	logger  *zap.Logger
	metrics *metrics.Metrics
	gather  prometheus.Gatherer
	now     func() time.Time
	server  *http.Server

	mu  sync.RWMutex
	cfg config.Config
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records request metrics on m and serves g on /metrics.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gather = g
	}
}

// WithClock overrides time.Now for default dates and range bounds.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer creates a server. loader measures images for the detail modal and may
// be nil, in which case the modal is never sized.
func NewServer(archive Archive, loader modal.Loader, cfg *config.Config, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		archive: archive,
		loader:  loader,
		logger:  logger,
		now:     time.Now,
	}
	if cfg != nil {
		s.cfg = *cfg
	}
	config.ApplyDefaults(&s.cfg)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the configuration currently in effect.
func (s *Server) Config() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// ApplyConfig swaps in a reloaded configuration. Archive settings are pushed to the
// running client; gallery and modal settings apply from the next request. Server
// address changes need a restart.
func (s *Server) ApplyConfig(cfg *config.Config) {
	next := *cfg
	config.ApplyDefaults(&next)
	s.mu.Lock()
	prev := s.cfg
	next.Server = prev.Server
	s.cfg = next
	s.mu.Unlock()

	if next.Archive.APIKey != prev.Archive.APIKey {
		s.archive.SetAPIKey(next.Archive.APIKey)
	}
	if next.Archive.BaseURL != prev.Archive.BaseURL {
		s.archive.SetBaseURL(next.Archive.BaseURL)
	}
	s.logger.Info("configuration applied",
		zap.String("base_url", next.Archive.BaseURL),
		zap.Duration("min_reveal_delay", next.Gallery.MinRevealDelay),
		zap.Duration("max_reveal_delay", next.Gallery.MaxRevealDelay))
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(s.metrics.Middleware)

	r.Get("/", s.handleIndex)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		r.Get("/images", s.handleImages)
		r.Get("/gallery", s.handleGallery)
		r.Get("/modal/layout", s.handleModalLayout)
	})
	r.Get("/health", s.handleHealth)
	if s.gather != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{}))
	}
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.Config().Server.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
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
