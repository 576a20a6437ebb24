package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/me/ksched/internal/config"
	"github.com/me/ksched/internal/sim"
	"github.com/me/ksched/internal/store"
)

// maxScenarioBytes bounds the size of a submitted scenario body.
const maxScenarioBytes = 1 << 20

// Server is the ksched REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	store     store.Store
	sim       *sim.Simulator
}

// New creates a new Server with all routes registered. Submitted scenarios
// are played on simulator and persisted to st.
func New(cfg config.ServerConfig, st store.Store, simulator *sim.Simulator, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		store:     st,
		sim:       simulator,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, RequestIDFromContext(r.Context()), http.StatusNotFound,
			routeNotFound(r.URL.Path))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Post("/", s.handleCreateRun)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRun)
				r.Delete("/", s.handleDeleteRun)
				r.Get("/events", s.handleListEvents)
				r.Get("/threads", s.handleListThreads)
			})
		})
	})
}
