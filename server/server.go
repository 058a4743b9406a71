// Copyright 2025 iskng
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iskng/embed-star/db"
)

// HealthChecker is the slice of the database client the endpoint
// probes.
type HealthChecker interface {
	Health(ctx context.Context) error
	Stats() db.PoolStats
}

// healthResponse is the /health body.
type healthResponse struct {
	Status   string       `json:"status"`
	Database dbHealth     `json:"database"`
	Pool     db.PoolStats `json:"pool"`
}

type dbHealth struct {
	Connected bool  `json:"connected"`
	LatencyMS int64 `json:"latency_ms"`
}

// Server is the monitoring endpoint consumed by scrapers and
// orchestrators. It observes the core; nothing in the core depends on
// it.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// New builds the monitoring server on the given port.
func New(port int, registry *prometheus.Registry, checker HealthChecker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "monitoring-server")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		handleHealth(w, r, checker)
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":    "alive",
			"timestamp": time.Now().UTC(),
		})
	})

	return &Server{
		srv: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request, checker HealthChecker) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	start := time.Now()
	err := checker.Health(ctx)
	latency := time.Since(start).Milliseconds()

	resp := healthResponse{
		Status:   "healthy",
		Database: dbHealth{Connected: err == nil, LatencyMS: latency},
		Pool:     checker.Stats(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		resp.Status = "unhealthy"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// Start serves until Stop is called. It returns when the listener
// closes.
func (s *Server) Start() error {
	s.logger.Info("monitoring server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
