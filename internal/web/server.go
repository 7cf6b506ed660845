// Package web serves the alert and import HTTP API.
package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/regionalert/internal/config"
	"github.com/JonMunkholm/regionalert/internal/core"
	"github.com/JonMunkholm/regionalert/internal/metrics"
	mw "github.com/JonMunkholm/regionalert/internal/web/middleware"
)

// AlertDispatcher fans an alert out to a region's recipients.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, req core.AlertRequest) (core.DispatchResult, error)
}

// Importer imports an uploaded CSV stream.
type Importer interface {
	ImportReader(ctx context.Context, name string, r io.Reader) (core.ImportReport, error)
}

// ImportHistory lists recent imports, newest first.
type ImportHistory interface {
	ListImports(ctx context.Context, limit int) ([]core.ImportRun, error)
}

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Deps are the server's collaborators. History, Health and Limiter are
// optional; without History the listing route is not mounted.
type Deps struct {
	Dispatcher AlertDispatcher
	Importer   Importer
	History    ImportHistory
	Health     HealthChecker
	Limiter    *core.ImportLimiter
}

// Server is the HTTP server for the alert API.
type Server struct {
	cfg    *config.Config
	deps   Deps
	router *chi.Mux
	server *http.Server
	logger *slog.Logger

	requestLimiter *ipLimiter
	importLimiter  *ipLimiter
	stopCleanup    context.CancelFunc
}

// NewServer creates a Server with its routes mounted.
func NewServer(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		deps:   deps,
		router: chi.NewRouter(),
		logger: logger,
	}
	if cfg.Rate.Enabled {
		s.requestLimiter = newIPLimiter("requests", cfg.Rate.RequestsPerMinute, cfg.Rate.Burst)
		s.importLimiter = newIPLimiter("imports", cfg.Rate.ImportsPerMinute, 1)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5, "application/json"))
	s.router.Use(securityHeaders)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", metrics.Handler())

	s.router.Group(func(r chi.Router) {
		if s.requestLimiter != nil {
			r.Use(s.requestLimiter.middleware)
		}
		r.Use(mw.APIKeyAuth(s.cfg.Security))

		r.With(timeout(s.cfg.Server.RequestTimeout)).Post("/alerter", s.handleAlert)

		r.Route("/api", func(r chi.Router) {
			r.With(timeout(s.cfg.Server.RequestTimeout)).Post("/alerts", s.handleAlert)

			if s.deps.History != nil {
				r.With(timeout(s.cfg.Server.RequestTimeout)).Get("/imports", s.handleListImports)
			}

			upload := r.With(timeout(s.cfg.Import.Timeout))
			if s.importLimiter != nil {
				upload = upload.With(s.importLimiter.middleware)
			}
			upload.Post("/imports", s.handleImport)
		})
	})
}

// Start listens on the configured address until Shutdown is called.
// It returns nil after a clean shutdown.
func (s *Server) Start() error {
	// Uploads may run for the whole import timeout.
	writeTimeout := s.cfg.Server.WriteTimeout
	if t := s.cfg.Import.Timeout + 10*time.Second; t > writeTimeout {
		writeTimeout = t
	}

	s.server = &http.Server{
		Addr:              s.cfg.Server.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       s.cfg.Server.IdleTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopCleanup = cancel
	for _, l := range []*ipLimiter{s.requestLimiter, s.importLimiter} {
		if l != nil {
			go l.runCleanup(ctx)
		}
	}

	s.logger.Info("http server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for active requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stopCleanup != nil {
		s.stopCleanup()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// timeout is middleware.Timeout, or a no-op when d is not positive.
func timeout(d time.Duration) func(http.Handler) http.Handler {
	if d <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.Timeout(d)
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
