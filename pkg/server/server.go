// Package server exposes interactive views over stored snapshots as an HTTP
// API.
//
// A view is an [interact.Controller] held in memory under a uuid. Clients
// create one from a stored snapshot, then drive it with pointer and key
// events, filter deltas and selection updates; every mutating call answers
// with the resulting frame. Views idle for longer than the configured ttl are
// swept in the background.
//
// # Routes
//
//	GET    /health
//	GET    /api/snapshots
//	GET    /api/views
//	POST   /api/views
//	GET    /api/views/{id}
//	DELETE /api/views/{id}
//	POST   /api/views/{id}/events
//	PATCH  /api/views/{id}/filters
//	DELETE /api/views/{id}/filters
//	PUT    /api/views/{id}/selection
//	GET    /api/views/{id}/hit?x=&y=
//	GET    /api/views/{id}/svg
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/orbit/pkg/observability"
	"github.com/matzehuels/orbit/pkg/pipeline"
)

// Config controls the server.
type Config struct {
	Addr      string
	MaxViews  int
	ViewTTL   time.Duration
	HitRadius float64

	// Defaults seeds every new view; request fields override it.
	Defaults pipeline.Options
}

// Server serves the views API.
type Server struct {
	runner *pipeline.Runner
	views  *Registry
	cfg    Config
	logger *log.Logger
}

// New creates a server. The runner must have a snapshot store.
func New(runner *pipeline.Runner, cfg Config, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		runner: runner,
		views:  NewRegistry(cfg.MaxViews, cfg.ViewTTL),
		cfg:    cfg,
		logger: logger,
	}
}

// Views returns the view registry.
func (s *Server) Views() *Registry { return s.views }

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/snapshots", s.listSnapshots)

		r.Route("/views", func(r chi.Router) {
			r.Get("/", s.listViews)
			r.Post("/", s.createView)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getView)
				r.Delete("/", s.deleteView)
				r.Post("/events", s.postEvents)
				r.Patch("/filters", s.patchFilters)
				r.Delete("/filters", s.clearFilters)
				r.Put("/selection", s.putSelection)
				r.Get("/hit", s.hitTest)
				r.Get("/svg", s.renderSVG)
			})
		})
	})
	return r
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.sweep(ctx)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down", "views", s.views.Len())
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) sweep(ctx context.Context) {
	if s.cfg.ViewTTL <= 0 {
		return
	}
	ticker := time.NewTicker(max(s.cfg.ViewTTL/4, time.Second))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.views.Sweep(ctx); n > 0 {
				s.logger.Debug("expired views", "count", n, "remaining", s.views.Len())
			}
		}
	}
}

// logRequests logs each request and reports it to the API hooks under its
// route pattern.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		d := time.Since(start)
		observability.API().OnRequest(r.Context(), r.Method, route, status, d)
		s.logger.Debug("http request",
			"method", r.Method,
			"route", route,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", d,
			"request_id", chimiddleware.GetReqID(r.Context()))
	})
}
