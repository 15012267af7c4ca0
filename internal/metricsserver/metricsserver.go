// Package metricsserver exposes the object manager's Prometheus
// collectors and health/readiness probes over HTTP.
package metricsserver

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/devrev/pairdb/objectmanager/internal/diskguard"
	"github.com/devrev/pairdb/objectmanager/internal/metrics"
)

// Config configures the HTTP listener.
type Config struct {
	Port int
	Path string
}

// Server serves /metrics, /health, and /ready.
type Server struct {
	httpServer *http.Server
	metrics    *metrics.Metrics
	diskGuard  *diskguard.Guard
	logger     *zap.Logger
	stop       chan struct{}
}

// New builds a metrics server. diskGuard may be nil, in which case
// /ready always reports healthy disk state.
func New(cfg Config, m *metrics.Metrics, diskGuard *diskguard.Guard, logger *zap.Logger) *Server {
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		metrics:   m,
		diskGuard: diskGuard,
		logger:    logger,
		stop:      make(chan struct{}),
	}

	mux.Handle(path, promhttp.Handler())
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/ready", s.readyHandler)

	return s
}

// Start launches the HTTP listener and the system metrics collector
// in background goroutines.
func (s *Server) Start() {
	s.logger.Info("starting metrics server", zap.String("addr", s.httpServer.Addr))

	go s.collectSystemMetrics()
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts the HTTP listener down.
func (s *Server) Stop() error {
	s.logger.Info("stopping metrics server")
	close(s.stop)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics server shutdown failed: %w", err)
	}
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.diskGuard == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ready","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
		return
	}

	usage := s.diskGuard.GetDiskUsage()
	if usage.IsCircuitBroken {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, `{"status":"not_ready","reason":"disk_full","disk_usage_percent":%.2f}`, usage.UsagePercent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ready","timestamp":"%s","disk_usage_percent":%.2f}`,
		time.Now().Format(time.RFC3339), usage.UsagePercent)
}

func (s *Server) collectSystemMetrics() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.updateSystemMetrics()
		case <-s.stop:
			return
		}
	}
}

func (s *Server) updateSystemMetrics() {
	if s.diskGuard != nil {
		usage := s.diskGuard.GetDiskUsage()
		s.metrics.UpdateDiskStats(usage.UsagePercent, usage.AvailableBytes)
	}
	s.metrics.UpdateGoroutines(runtime.NumGoroutine())
}
