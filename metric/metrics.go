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

package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "embed_star"

// Metrics is the process-wide metric set published on the scrape
// endpoint. It is strictly observable: no control flow depends on it.
type Metrics struct {
	registry *prometheus.Registry

	EmbeddingsTotal   *prometheus.CounterVec
	EmbeddingsErrors  *prometheus.CounterVec
	EmbeddingDuration *prometheus.HistogramVec

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	RateLimits          *prometheus.CounterVec
	Retries             *prometheus.CounterVec
	CircuitBreakerState *prometheus.GaugeVec

	ReposPending prometheus.Gauge

	PoolConnectionsActive   prometheus.Gauge
	PoolConnectionsIdle     prometheus.Gauge
	PoolConnectionsWaiting  prometheus.Gauge
	PoolConnectionsCreated  prometheus.Counter
	PoolConnectionErrors    prometheus.Counter
	PoolHealthCheckFailures prometheus.Counter

	EmbeddingValidations *prometheus.CounterVec
}

// New creates the metric set on a fresh registry together with the Go
// runtime collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		EmbeddingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embeddings_total",
			Help:      "Total number of embeddings generated",
		}, []string{"provider", "model"}),

		EmbeddingsErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embeddings_errors_total",
			Help:      "Total number of embedding failures by kind",
		}, []string{"provider", "kind"}),

		EmbeddingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_duration_seconds",
			Help:      "Time taken to generate one embedding",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"provider"}),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of embedding cache hits",
		}),

		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of embedding cache misses",
		}),

		RateLimits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limits_total",
			Help:      "Total number of rate limit hits",
		}, []string{"provider"}),

		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Total retry attempts by provider and error kind",
		}, []string{"provider", "kind"}),

		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"provider"}),

		ReposPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "repos_pending",
			Help:      "Number of repositories pending embedding generation",
		}),

		PoolConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_connections_active",
			Help:      "Number of checked-out pool connections",
		}),

		PoolConnectionsIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_connections_idle",
			Help:      "Number of idle pool connections",
		}),

		PoolConnectionsWaiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_connections_waiting",
			Help:      "Number of callers waiting for a pool connection",
		}),

		PoolConnectionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_connections_created_total",
			Help:      "Total pool connections created",
		}),

		PoolConnectionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_connection_errors_total",
			Help:      "Total pool connection failures",
		}),

		PoolHealthCheckFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_health_check_failures_total",
			Help:      "Total pool connection health check failures",
		}),

		EmbeddingValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_validations_total",
			Help:      "Total embedding validation outcomes",
		}, []string{"model", "status"}),
	}

	m.registry.MustRegister(
		m.EmbeddingsTotal,
		m.EmbeddingsErrors,
		m.EmbeddingDuration,
		m.CacheHits,
		m.CacheMisses,
		m.RateLimits,
		m.Retries,
		m.CircuitBreakerState,
		m.ReposPending,
		m.PoolConnectionsActive,
		m.PoolConnectionsIdle,
		m.PoolConnectionsWaiting,
		m.PoolConnectionsCreated,
		m.PoolConnectionErrors,
		m.PoolHealthCheckFailures,
		m.EmbeddingValidations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry exposes the underlying prometheus registry for the scrape
// handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordValidation counts one validation outcome for a model.
func (m *Metrics) RecordValidation(model string, ok bool) {
	status := "pass"
	if !ok {
		status = "fail"
	}
	m.EmbeddingValidations.WithLabelValues(model, status).Inc()
}
