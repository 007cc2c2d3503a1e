// Package httpapi exposes the orchestrator's ask_multi operation and
// Prometheus metrics over HTTP, grounded on the gateway server the example
// pack's nexus repo uses for the same pair of concerns.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pattabhia/rlvr-pdf-chat/internal/orchestrator"
	"github.com/pattabhia/rlvr-pdf-chat/internal/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server hosts /ask, /healthz and /metrics.
type Server struct {
	orch     *orchestrator.Orchestrator
	registry *prometheus.Registry
	log      logger.ILogger

	httpServer *http.Server
}

func New(orch *orchestrator.Orchestrator, registry *prometheus.Registry, log logger.ILogger) *Server {
	return &Server{orch: orch, registry: registry, log: log}
}

// Start binds addr and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/ask", s.handleAsk)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("httpapi", "shutdown error", logger.Fields{Details: map[string]interface{}{"error": err.Error()}})
		}
	}()

	s.log.Info("httpapi", "listening", logger.Fields{Details: map[string]interface{}{"addr": addr}})
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http serve: %w", err)
	}
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

type askRequest struct {
	Question string `json:"question"`
	N        int    `json:"num_candidates"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	resp, err := s.orch.AskMulti(r.Context(), req.Question, req.N)
	if err != nil {
		var invalid *orchestrator.ErrInvalidRequest
		if errors.As(err, &invalid) {
			writeError(w, http.StatusBadRequest, invalid.Reason)
			return
		}
		s.log.Error("httpapi", "ask_multi failed", logger.Fields{Details: map[string]interface{}{"error": err.Error()}})
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
