// Package admin serves the daemon's operational endpoints: liveness,
// readiness against the backing stores, and Prometheus metrics.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/treedex/treedex/internal/metrics"
	"github.com/treedex/treedex/internal/version"
)

// Pinger checks one backing store's connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes the admin endpoints.
type Server struct {
	pingers map[string]Pinger
	logger  *zap.Logger
}

// NewServer creates an admin server. pingers maps dependency names to their
// connectivity checks; every one must pass for /readyz to report ready.
func NewServer(pingers map[string]Pinger, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{pingers: pingers, logger: logger}
}

// Router builds the chi router with the standard middleware stack.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(metrics.Middleware())

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
		"commit":  version.Commit,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(s.pingers))
	for name, pinger := range s.pingers {
		if err := pinger.Ping(ctx); err != nil {
			s.logger.Warn("Readiness check failed",
				zap.String("dependency", name),
				zap.Error(err),
			)
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	writeJSON(w, status, deps)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
