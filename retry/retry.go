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

package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iskng/embed-star/core"
)

// Config parameterizes the bounded exponential backoff executor.
type Config struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int

	// BaseDelay is the delay before the first retry; each further
	// retry doubles it, jittered by ±20%.
	BaseDelay time.Duration

	// MaxDelay caps a single sleep. Zero means no cap.
	MaxDelay time.Duration
}

// DefaultConfig returns 3 attempts starting at one second.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// Executor retries operations whose failures are classified as
// retryable, counting retries into a metric labeled by provider (or
// operation) and error kind.
type Executor struct {
	cfg     Config
	retries *prometheus.CounterVec
	logger  *slog.Logger
}

// NewExecutor creates a retry executor. The counter vec may be nil
// (tests).
func NewExecutor(cfg Config, retries *prometheus.CounterVec, logger *slog.Logger) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultConfig().BaseDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{cfg: cfg, retries: retries, logger: logger}
}

// Do runs op until it succeeds, fails terminally, exhausts the attempt
// budget, or ctx is cancelled. The label names the provider or
// operation for logging and the retry counter.
func (e *Executor) Do(ctx context.Context, label string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.BaseDelay
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0
	if e.cfg.MaxDelay > 0 {
		b.MaxInterval = e.cfg.MaxDelay
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(b, uint64(e.cfg.MaxAttempts-1)), ctx)

	attempt := 0
	wrapped := func() error {
		// Cancellation wins over another attempt.
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(core.E(core.KindCancelled, label, err))
		}
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !core.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		if e.retries != nil {
			e.retries.WithLabelValues(label, string(core.KindOf(err))).Inc()
		}
		e.logger.Warn("retrying operation",
			"operation", label, "attempt", attempt, "next_delay", next, "err", err)
	}

	if err := backoff.RetryNotify(wrapped, policy, notify); err != nil {
		if ctx.Err() != nil && core.KindOf(err) != core.KindCancelled {
			return core.E(core.KindCancelled, label, ctx.Err())
		}
		return err
	}
	return nil
}
