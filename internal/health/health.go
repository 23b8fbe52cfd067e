// Package health serves the collector's liveness, readiness, and metrics
// endpoints.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/meridianlive/meridian-go/internal/collector"
)

// StatusFunc reports the collector's most recent run.
type StatusFunc func() collector.Status

// Server exposes GET /healthz, /readyz, and /metrics. Liveness always
// answers 200 while the process runs; readiness requires a completed,
// error-free collection run.
type Server struct {
	http   *http.Server
	logger *logrus.Logger
}

type healthResponse struct {
	Status    string `json:"status"`
	LastRun   string `json:"last_run,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// New builds the server. gatherer feeds the /metrics endpoint.
func New(addr string, status StatusFunc, gatherer prometheus.Gatherer, logger *logrus.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		s := status()
		resp := healthResponse{Status: "ok"}
		if s.Ran {
			resp.LastRun = s.LastRun.UTC().Format(time.RFC3339)
		}
		if s.LastErr != nil {
			resp.Status = "degraded"
			resp.LastError = s.LastErr.Error()
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		s := status()
		switch {
		case !s.Ran:
			http.Error(w, "no collection run has completed", http.StatusServiceUnavailable)
		case s.LastErr != nil:
			http.Error(w, s.LastErr.Error(), http.StatusServiceUnavailable)
		default:
			w.Write([]byte("ready"))
		}
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the underlying router.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Start serves in the background until Stop is called.
func (s *Server) Start() {
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("health server failed")
		}
	}()
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
