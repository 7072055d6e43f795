// Package ipc serves the stream websocket and the operator HTTP endpoints.
package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odvcencio/pagestream/pkg/engine"
	"github.com/odvcencio/pagestream/pkg/observability"
	"github.com/odvcencio/pagestream/pkg/pool"
	"github.com/odvcencio/pagestream/pkg/session"
	"github.com/odvcencio/pagestream/pkg/telemetry"
)

// Config controls the HTTP listener.
type Config struct {
	BindAddress     string
	AllowedOrigins  []string
	PingInterval    time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Version         string
}

// Server wires the session registry and engine pool to HTTP.
type Server struct {
	cfg      Config
	registry *session.Registry
	engines  *engine.Pool
	hub      *telemetry.Hub
	logger   *observability.Logger

	streams *connLimiter
	events  *connLimiter
	buffers *pool.BufferPool

	httpServer *http.Server
	startedAt  time.Time
}

// NewServer creates a server. engines and hub may be nil.
func NewServer(cfg Config, registry *session.Registry, engines *engine.Pool, hub *telemetry.Hub, logger *observability.Logger) *Server {
	if logger == nil {
		logger = observability.Discard()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &Server{
		cfg:       cfg,
		registry:  registry,
		engines:   engines,
		hub:       hub,
		logger:    logger.WithComponent("ipc"),
		streams:   newConnLimiter(maxStreamClients),
		events:    newConnLimiter(maxEventStreamClients),
		buffers:   pool.NewBufferPool(),
		startedAt: time.Now(),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(s.corsMiddleware)
	router.Use(s.securityHeadersMiddleware)

	router.Get("/healthz", s.handleHealthz)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/ws", s.handleStream)

	router.Route("/api", func(r chi.Router) {
		r.Get("/sessions", s.handleListSessions)
		r.Delete("/sessions/{userID}/{sessionID}", s.handleRemoveSession)
		r.Get("/engines", s.handleListEngines)
		r.Get("/events", s.handleEvents)
	})
	return router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s.registry == nil {
		return errors.New("ipc: session registry is required")
	}

	s.httpServer = &http.Server{
		Addr:              s.cfg.BindAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
		// Hijacked websocket requests outlive Shutdown; deriving them from ctx
		// ends their read loops.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("serving", "bind", s.cfg.BindAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err, ok := <-serverErr:
		if ok && err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"status":   "ok",
		"time":     time.Now().UTC().Format(time.RFC3339),
		"uptime":   time.Since(s.startedAt).Round(time.Second).String(),
		"sessions": s.registry.Len(),
		"streams":  s.streams.Active(),
	}
	if s.cfg.Version != "" {
		payload["version"] = s.cfg.Version
	}
	if s.engines != nil {
		payload["engines"] = s.engines.Len()
	}
	respondJSON(w, payload)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]any{"sessions": s.registry.List()})
}

func (s *Server) handleRemoveSession(w http.ResponseWriter, r *http.Request) {
	key := session.Key{
		UserID:    chi.URLParam(r, "userID"),
		SessionID: chi.URLParam(r, "sessionID"),
	}
	if _, ok := s.registry.Get(key); !ok {
		respondError(w, http.StatusNotFound, errors.New("session not found"))
		return
	}
	s.registry.ForceRemove(key)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListEngines(w http.ResponseWriter, r *http.Request) {
	engines := []engine.EngineInfo{}
	if s.engines != nil {
		engines = s.engines.List()
	}
	respondJSON(w, map[string]any{"engines": engines})
}
