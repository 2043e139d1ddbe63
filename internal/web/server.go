// Package web serves the pipeline's persisted state over a small read-only
// HTTP API: run status, the workflow log, and stage snapshots.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/ormsift/ormsift/internal/core"
	"github.com/ormsift/ormsift/internal/logging"
)

// Config holds the report server configuration.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// DefaultConfig returns the default report server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:            "127.0.0.1:8414",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		CORSOrigins:     []string{"*"},
	}
}

// Server exposes a snapshot store and workflow log over HTTP.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	config     Config
	logger     *logging.Logger
	snapshots  core.SnapshotStore
	log        core.LogStore
}

// New creates a report server over the given stores.
func New(cfg Config, snapshots core.SnapshotStore, log core.LogStore, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		config:    cfg,
		logger:    logger,
		snapshots: snapshots,
		log:       log,
	}
	s.router = s.setupRouter()
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: s.config.CORSOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	})
	r.Use(corsMiddleware.Handler)

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/log", s.handleLog)
		r.Get("/stages", s.handleStages)
		r.Get("/stages/{stage}", s.handleStage)
	})
	return r
}

// Handler returns the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("report server listening", "addr", s.config.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// statusResponse summarizes the run for the status endpoint.
type statusResponse struct {
	RunID      string            `json:"run_id,omitempty"`
	Stages     []stageStatus     `json:"stages"`
	LastStage  *core.StageRecord `json:"last_stage,omitempty"`
	UpdatedAt  *time.Time        `json:"updated_at,omitempty"`
	InProgress bool              `json:"in_progress"`
}

type stageStatus struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{}
	for _, name := range core.StageOrder() {
		resp.Stages = append(resp.Stages, stageStatus{
			Name:      name,
			Completed: s.snapshots.HasStage(name),
		})
	}

	wl, err := s.log.Load()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	if wl != nil {
		resp.RunID = wl.RunID
		resp.LastStage = wl.Last()
		resp.UpdatedAt = &wl.Updated
		if last := wl.Last(); last != nil {
			resp.InProgress = core.StageIndex(last.Name) < len(core.StageOrder())-1
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLog(w http.ResponseWriter, _ *http.Request) {
	wl, err := s.log.Load()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	if wl == nil {
		s.respondError(w, http.StatusNotFound, errors.New("no workflow log"))
		return
	}
	s.respondJSON(w, http.StatusOK, wl)
}

func (s *Server) handleStages(w http.ResponseWriter, _ *http.Request) {
	completed := make([]string, 0)
	for _, name := range core.StageOrder() {
		if s.snapshots.HasStage(name) {
			completed = append(completed, name)
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"order":     core.StageOrder(),
		"completed": completed,
	})
}

func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	stage := chi.URLParam(r, "stage")
	if core.StageIndex(stage) < 0 {
		s.respondError(w, http.StatusNotFound, errors.New("unknown stage"))
		return
	}
	records, err := s.snapshots.LoadStage(stage)
	if err != nil {
		var domErr *core.DomainError
		if errors.As(err, &domErr) && domErr.Code == core.CodeSnapshotNotFound {
			s.respondError(w, http.StatusNotFound, err)
			return
		}
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"stage":   stage,
		"count":   len(records),
		"records": records,
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("writing response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, err error) {
	s.respondJSON(w, status, map[string]string{"error": err.Error()})
}
