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

package breaker

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"

	"github.com/iskng/embed-star/core"
)

// Gauge values for the circuit_breaker_state metric.
const (
	stateClosed   = 0
	stateOpen     = 1
	stateHalfOpen = 2
)

// Config tunes one provider's breaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures that
	// trips the breaker open.
	FailureThreshold uint32

	// Cooldown is how long the breaker stays open before allowing a
	// half-open probe.
	Cooldown time.Duration
}

// DefaultConfig returns a conservative breaker: open after 5
// consecutive failures, probe after 60 seconds.
func DefaultConfig() Config {
	return Config{FailureThreshold: 5, Cooldown: 60 * time.Second}
}

// Manager holds one circuit breaker per provider. Calls through an
// open breaker fail fast with a circuit-open error; after the cooldown
// a single probe is allowed, closing the breaker on success and
// re-opening it on failure.
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker
	gauge    *prometheus.GaugeVec
	logger   *slog.Logger
}

// NewManager creates an empty breaker manager. The state gauge may be
// nil (tests).
func NewManager(gauge *prometheus.GaugeVec, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		gauge:    gauge,
		logger:   logger.With("component", "circuit-breaker"),
	}
}

// Configure installs a breaker for a provider.
func (m *Manager) Configure(provider string, cfg Config) {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultConfig().Cooldown
	}

	settings := gobreaker.Settings{
		Name:        provider,
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.logger.Info("state transition", "provider", name, "from", from.String(), "to", to.String())
			m.setGauge(name, to)
		},
		IsSuccessful: func(err error) bool {
			// Cancellation says nothing about provider health.
			return err == nil || core.KindOf(err) == core.KindCancelled
		},
	}

	m.mu.Lock()
	m.breakers[provider] = gobreaker.NewCircuitBreaker(settings)
	m.mu.Unlock()
	m.setGauge(provider, gobreaker.StateClosed)
}

// Execute runs fn through the provider's breaker. When the breaker is
// open the call fails fast with a circuit-open error; the batch engine
// treats that as a skip rather than a retry. Providers without a
// configured breaker run unguarded.
func (m *Manager) Execute(provider string, fn func() ([]float32, error)) ([]float32, error) {
	m.mu.RLock()
	cb, ok := m.breakers[provider]
	m.mu.RUnlock()
	if !ok {
		return fn()
	}

	result, err := cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, core.E(core.KindCircuitOpen, "circuit_breaker", err)
		}
		return nil, err
	}
	return result.([]float32), nil
}

// State returns the provider's current breaker state as the gauge
// encoding (0 closed, 1 open, 2 half-open). Unconfigured providers
// report closed.
func (m *Manager) State(provider string) int {
	m.mu.RLock()
	cb, ok := m.breakers[provider]
	m.mu.RUnlock()
	if !ok {
		return stateClosed
	}
	return stateValue(cb.State())
}

func (m *Manager) setGauge(provider string, state gobreaker.State) {
	if m.gauge == nil {
		return
	}
	m.gauge.WithLabelValues(provider).Set(float64(stateValue(state)))
}

func stateValue(state gobreaker.State) int {
	switch state {
	case gobreaker.StateOpen:
		return stateOpen
	case gobreaker.StateHalfOpen:
		return stateHalfOpen
	default:
		return stateClosed
	}
}
