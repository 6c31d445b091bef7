package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/cwarner/backhaul/internal/api/handler"
	mw "github.com/cwarner/backhaul/internal/api/middleware"
	"github.com/cwarner/backhaul/internal/api/response"
	"github.com/cwarner/backhaul/internal/appkey"
	"github.com/cwarner/backhaul/internal/artifact"
	"github.com/cwarner/backhaul/internal/config"
	"github.com/cwarner/backhaul/internal/dockerstat"
	"github.com/cwarner/backhaul/internal/executor"
	"github.com/cwarner/backhaul/internal/orchestrator"
	"github.com/cwarner/backhaul/internal/registry"
)

// Deps are the services the HTTP surface is built from.
type Deps struct {
	Registry     *registry.Registry
	Store        *artifact.Store
	Orchestrator *orchestrator.Orchestrator
	Runner       *executor.Runner
	Docker       *dockerstat.Service
	AppKeys      *appkey.Manager
}

type Server struct {
	router chi.Router
	logger zerolog.Logger
	cfg    *config.Config
	deps   Deps
}

func NewServer(logger zerolog.Logger, cfg *config.Config, deps Deps) *Server {
	s := &Server{
		router: chi.NewRouter(),
		logger: logger,
		cfg:    cfg,
		deps:   deps,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Host registry
		hosts := handler.NewHost(s.deps.Registry, s.deps.Orchestrator)
		r.Route("/hosts", func(r chi.Router) {
			r.Get("/", hosts.List)
			r.Post("/", hosts.Create)
			r.Get("/{hostID}", hosts.Get)
			r.Put("/{hostID}", hosts.Update)
			r.Delete("/{hostID}", hosts.Delete)
			r.Post("/{hostID}/test", hosts.Test)
			r.Get("/{hostID}/instances", hosts.Instances)
			r.Post("/{hostID}/command", hosts.Command)
		})

		// Backup store and backup/restore runs
		backups := handler.NewBackup(s.deps.Store, s.deps.Runner, s.deps.Orchestrator)
		r.Route("/backups", func(r chi.Router) {
			r.Get("/", backups.List)
			r.Post("/", backups.Create)
			r.Post("/restore", backups.Restore)
			r.Post("/remote", backups.CreateRemote)
			r.Post("/remote/restore", backups.RestoreRemote)
			r.Get("/storage", backups.Storage)
			r.Get("/{backupName}", backups.Details)
			r.Delete("/{backupName}", backups.Delete)
			r.Get("/{backupName}/download", backups.Download)
		})

		// Application encryption key management
		keys := handler.NewAppKey(s.deps.AppKeys)
		r.Route("/config/encryption-key", func(r chi.Router) {
			r.Get("/", keys.Get)
			r.Post("/generate", keys.Generate)
			r.Post("/save", keys.Save)
			r.Post("/validate", keys.Validate)
		})

		// Local Docker status
		status := handler.NewStatus(s.deps.Docker)
		r.Route("/status", func(r chi.Router) {
			r.Get("/docker", status.Docker)
			r.Get("/container/{containerName}", status.Container)
			r.Post("/container/{containerName}/start", status.Start)
			r.Post("/container/{containerName}/stop", status.Stop)
			r.Post("/container/{containerName}/restart", status.Restart)
		})
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz verifies the backing stores are reachable before reporting
// ready.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deps.Registry.List(); err != nil {
		response.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
