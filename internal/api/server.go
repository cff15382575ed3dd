package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/alexandria/internal/config"
	"github.com/dgallion1/alexandria/internal/eventstore"
	"github.com/dgallion1/alexandria/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for alexandria.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	store        eventstore.Store
	stats        *eventstore.Stats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. stats may be nil when
// the event store does not record latencies.
func NewServer(orch *pipeline.Orchestrator, stats *eventstore.Stats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		store:        orch.Store(),
		stats:        stats,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.AlexandriaAPIKey, s.log))

		r.Post("/api/publications", s.handleImport)
		r.Get("/api/publications", s.handleListPublications)
		r.Get("/api/publications/jobs/{jobID}", s.handleJobStatus)

		r.Route("/api/publications/{address}", func(r chi.Router) {
			r.Get("/leaves", s.handleLeaves)
			r.Get("/hierarchy", s.handleHierarchy)
			r.Get("/branches", s.handleBranches)
			r.Get("/outline", s.handleOutline)
			r.Delete("/", s.handleDeletePublication)
		})

		r.Get("/api/events/{address}", s.handleGetEvent)
		r.Get("/api/stats/store", s.handleStoreStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
