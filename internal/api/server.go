// Package api exposes the listing workflow over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/core"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/observability"
	"github.com/donywcopywrite-cyber/FINDINGAGENT/internal/store"
)

// maxBodyBytes bounds a workflow request body.
const maxBodyBytes = 64 << 10

type Runner interface {
	Execute(ctx context.Context, input string) (*core.RunResult, error)
}

// RunHistory is the read side of the run store. It may be nil.
type RunHistory interface {
	ListRuns(ctx context.Context, limit, offset int) ([]store.Run, error)
	GetRun(ctx context.Context, id string) (store.Run, error)
}

type Server struct {
	router  *chi.Mux
	runner  Runner
	history RunHistory
	stats   *observability.Stats
	logger  *slog.Logger
}

func NewServer(runner Runner, history RunHistory, stats *observability.Stats, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:  chi.NewRouter(),
		runner:  runner,
		history: history,
		stats:   stats,
		logger:  logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Accept-Language", "Content-Type"},
		MaxAge:         300,
	}))

	s.router.Get("/", s.handleRoot)
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/stats", s.handleStats)
	s.router.Post("/runWorkflow", s.handleRunWorkflow)
	s.router.Get("/runs", s.handleListRuns)
	s.router.Get("/runs/{id}", s.handleGetRun)
}

func (s *Server) Router() http.Handler {
	return s.router
}

// HTTPServer wraps the router with the timeouts the service runs under.
// The write timeout leaves room for a full run.
func (s *Server) HTTPServer(addr string, runTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      runTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.stats.Snapshot())
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		response = []byte(`{"error":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
