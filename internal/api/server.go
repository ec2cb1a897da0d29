package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/star/trajevent/internal/auth"
	"github.com/star/trajevent/internal/health"
	"github.com/star/trajevent/internal/httputil"
	"github.com/star/trajevent/internal/metrics"
	"github.com/star/trajevent/internal/propagation"
	"github.com/star/trajevent/internal/stream"
	"github.com/star/trajevent/internal/tle"
)

// Deps are the collaborators behind the routes. Store, Catalog and Stream
// may be nil; the stop routes are then left unregistered and the server
// only merges eclipse events.
type Deps struct {
	Auth       auth.Config
	TrustProxy bool
	Store      *tle.Store
	Catalog    *propagation.Catalog
	Stream     *stream.Handler
	// SecondsPerUnit is the report duration scale used when a request
	// does not set one.
	SecondsPerUnit float64
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, logger *slog.Logger, deps Deps) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(logger, deps),
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// NewRouter builds the route table behind the middleware stack
// recover -> request id -> client ip -> metrics -> logging -> auth.
func NewRouter(logger *slog.Logger, deps Deps) http.Handler {
	h := &handlers{
		logger:         logger,
		store:          deps.Store,
		catalog:        deps.Catalog,
		secondsPerUnit: deps.SecondsPerUnit,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(httputil.ClientIPMiddleware(deps.TrustProxy))
	r.Use(metrics.Middleware)
	r.Use(loggingMiddleware(logger))
	r.Use(auth.Middleware(deps.Auth))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusNotFound, "not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz(deps.Store))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/eclipse/merge", h.merge)
		r.Post("/eclipse/report", h.report)
		r.Get("/stop/params", h.params)

		if deps.Store != nil {
			r.Get("/tle/metadata", h.tleMetadata)
		}
		if deps.Catalog != nil {
			r.Post("/stop/search", h.searchBatch)
			r.Post("/stop/search/{norad_id}", h.searchSingle)
			if deps.Catalog.Observer() != nil {
				r.Get("/passes/{norad_id}", h.passes)
			}
		}
		if deps.Stream != nil {
			r.Get("/stop/stream/{norad_id}", func(w http.ResponseWriter, r *http.Request) {
				deps.Stream.HandleCrossings(w, r, chi.URLParam(r, "norad_id"))
			})
		}
	})

	return r
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}
