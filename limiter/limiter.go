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

package limiter

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/iskng/embed-star/core"
)

// DefaultWaitCeiling bounds how long Acquire may block for a token
// before failing with a locally-rate-limited error.
const DefaultWaitCeiling = 30 * time.Second

// Manager holds one token bucket per provider. Providers without a
// configured quota pass through unlimited.
type Manager struct {
	mu          sync.RWMutex
	limiters    map[string]*rate.Limiter
	waitCeiling time.Duration
	rateLimits  *prometheus.CounterVec
}

// NewManager creates an empty limiter manager. The counter vec may be
// nil (tests).
func NewManager(rateLimits *prometheus.CounterVec) *Manager {
	return &Manager{
		limiters:    make(map[string]*rate.Limiter),
		waitCeiling: DefaultWaitCeiling,
		rateLimits:  rateLimits,
	}
}

// Configure installs a token bucket for a provider with the given
// requests-per-minute quota. Capacity is the full quota and tokens
// refill continuously at quota/60 per second. A quota of zero removes
// any limit for the provider.
func (m *Manager) Configure(provider string, requestsPerMinute int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if requestsPerMinute <= 0 {
		delete(m.limiters, provider)
		return
	}
	m.limiters[provider] = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), requestsPerMinute)
}

// SetWaitCeiling overrides the maximum blocking time for Acquire.
func (m *Manager) SetWaitCeiling(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waitCeiling = d
}

// Acquire blocks until a token is available, the wait ceiling is
// exceeded, or ctx is cancelled. Exceeding the ceiling fails with a
// retryable rate-limited error and increments the rate-limit counter.
func (m *Manager) Acquire(ctx context.Context, provider string) error {
	m.mu.RLock()
	l, ok := m.limiters[provider]
	ceiling := m.waitCeiling
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, ceiling)
	defer cancel()

	if err := l.Wait(waitCtx); err != nil {
		if ctx.Err() != nil {
			return core.E(core.KindCancelled, "rate_limit_acquire", ctx.Err())
		}
		if m.rateLimits != nil {
			m.rateLimits.WithLabelValues(provider).Inc()
		}
		return core.Ef(core.KindRateLimitedLocally, "rate_limit_acquire",
			"no token for provider %s within %s", provider, ceiling)
	}
	return nil
}

// Allow takes a token if one is immediately available and reports
// whether it did. Providers without a quota always allow.
func (m *Manager) Allow(provider string) bool {
	m.mu.RLock()
	l, ok := m.limiters[provider]
	m.mu.RUnlock()
	if !ok {
		return true
	}
	return l.Allow()
}
