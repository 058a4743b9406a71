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

package service

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/iskng/embed-star/breaker"
	"github.com/iskng/embed-star/cache"
	"github.com/iskng/embed-star/config"
	"github.com/iskng/embed-star/core"
	"github.com/iskng/embed-star/db"
	"github.com/iskng/embed-star/engine"
	"github.com/iskng/embed-star/limiter"
	"github.com/iskng/embed-star/metric"
	"github.com/iskng/embed-star/provider"
	"github.com/iskng/embed-star/retry"
	"github.com/iskng/embed-star/server"
)

// providerDefaults carries per-provider resilience settings applied
// unless overridden by configuration.
type providerDefaults struct {
	rateLimitPerMin  int
	failureThreshold uint32
	cooldown         time.Duration
}

var resilienceDefaults = map[string]providerDefaults{
	config.ProviderOpenAI:   {rateLimitPerMin: 3000, failureThreshold: 5, cooldown: 120 * time.Second},
	config.ProviderTogether: {rateLimitPerMin: 1000, failureThreshold: 10, cooldown: 60 * time.Second},
	config.ProviderOllama:   {rateLimitPerMin: 0, failureThreshold: 3, cooldown: 30 * time.Second},
}

// samplerIntervals for the pending-count and pool gauges.
const (
	statsInterval = 60 * time.Second
	poolInterval  = 30 * time.Second
)

// Run assembles the service from configuration and blocks until a
// termination signal arrives and the engine drains, or startup fails.
func Run(ctx context.Context, cfg *config.Config) error {
	sessionID := uuid.NewString()
	logger := slog.Default().With("session_id", sessionID)
	logger.Info("starting embed-star", "config", cfg.String())

	if err := cfg.Validate(); err != nil {
		return core.E(core.KindConfiguration, "service_run", err)
	}

	metrics := metric.New()

	pool := db.NewPool(cfg, db.PoolMetrics{
		Waiting:             metrics.PoolConnectionsWaiting,
		Created:             metrics.PoolConnectionsCreated,
		ConnectionErrors:    metrics.PoolConnectionErrors,
		HealthCheckFailures: metrics.PoolHealthCheckFailures,
	}, logger)
	defer pool.Close()

	client := db.NewClient(pool, cfg.EmbeddingModel, logger)

	// The initial probe is fatal: a service that cannot reach its
	// database should fail fast at startup.
	startupCtx, cancel := context.WithTimeout(ctx, cfg.PoolCreateTimeout)
	err := client.Health(startupCtx)
	cancel()
	if err != nil {
		return core.E(core.KindDatabaseConnectivity, "service_startup", err)
	}

	if err := db.Migrate(ctx, pool, logger); err != nil {
		return err
	}

	prov, err := provider.New(cfg)
	if err != nil {
		return err
	}
	logger.Info("provider selected", "provider", cfg.EmbeddingProvider, "model", prov.ModelName())

	limiters := limiter.NewManager(metrics.RateLimits)
	breakers := breaker.NewManager(metrics.CircuitBreakerState, logger)
	configureResilience(cfg, limiters, breakers)

	retrier := retry.NewExecutor(retry.Config{
		MaxAttempts: cfg.RetryAttempts,
		BaseDelay:   cfg.RetryDelay,
		MaxDelay:    30 * time.Second,
	}, metrics.Retries, logger)

	embCache := cache.New(cfg.CacheSize, cfg.CacheTTL, metrics.CacheHits, metrics.CacheMisses)

	eng, err := engine.New(cfg, engine.Deps{
		Store:    client,
		Provider: prov,
		Cache:    embCache,
		Limiter:  limiters,
		Breaker:  breakers,
		Retry:    retrier,
		Metrics:  metrics,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	logStartupStats(ctx, client, metrics, logger)

	// Everything below runs until a signal arrives.
	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mon := server.New(cfg.MonitoringPort, metrics.Registry(), client, logger)
	go func() {
		if err := mon.Start(); err != nil {
			logger.Error("monitoring server failed", "err", err)
		}
	}()

	go sampleStats(runCtx, client, metrics, logger)
	go samplePool(runCtx, client, metrics)

	engineDone := make(chan error, 1)
	go func() {
		engineDone <- eng.Run(runCtx)
	}()

	<-runCtx.Done()
	logger.Info("shutdown signal received, draining workers",
		"timeout", cfg.ShutdownTimeout)

	drainTimer := time.NewTimer(cfg.ShutdownTimeout)
	defer drainTimer.Stop()
	select {
	case <-engineDone:
		logger.Info("all workers drained")
	case <-drainTimer.C:
		logger.Warn("shutdown timeout exceeded, abandoning in-flight work")
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelStop()
	_ = mon.Stop(stopCtx)

	logger.Info("embed-star shut down")
	return nil
}

// configureResilience installs rate limits and breakers for the active
// provider, overlaying config overrides on the per-provider defaults.
func configureResilience(cfg *config.Config, limiters *limiter.Manager, breakers *breaker.Manager) {
	defaults := resilienceDefaults[cfg.EmbeddingProvider]

	quota := defaults.rateLimitPerMin
	if cfg.RateLimitPerMin > 0 {
		quota = cfg.RateLimitPerMin
	}
	limiters.Configure(cfg.EmbeddingProvider, quota)

	bcfg := breaker.Config{
		FailureThreshold: defaults.failureThreshold,
		Cooldown:         defaults.cooldown,
	}
	if cfg.BreakerFailureThreshold > 0 {
		bcfg.FailureThreshold = uint32(cfg.BreakerFailureThreshold)
	}
	if cfg.BreakerCooldown > 0 {
		bcfg.Cooldown = cfg.BreakerCooldown
	}
	breakers.Configure(cfg.EmbeddingProvider, bcfg)
}

func logStartupStats(ctx context.Context, client *db.Client, metrics *metric.Metrics, logger *slog.Logger) {
	total, err := client.TotalCount(ctx)
	if err != nil {
		logger.Warn("failed to read repo counts", "err", err)
		return
	}
	embedded, _ := client.EmbeddedCount(ctx)
	pending, _ := client.PendingCount(ctx)
	metrics.ReposPending.Set(float64(pending))
	logger.Info("database statistics",
		"total_repos", total, "embedded_repos", embedded, "pending_repos", pending)
}

// sampleStats refreshes the pending gauge on a slow tick.
func sampleStats(ctx context.Context, client *db.Client, metrics *metric.Metrics, logger *slog.Logger) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pending, err := client.PendingCount(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Error("failed to count pending repos", "err", err)
				}
				continue
			}
			metrics.ReposPending.Set(float64(pending))
		}
	}
}

// samplePool mirrors the pool snapshot into gauges so scrapes see
// occupancy even between checkouts.
func samplePool(ctx context.Context, client *db.Client, metrics *metric.Metrics) {
	ticker := time.NewTicker(poolInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := client.Stats()
			metrics.PoolConnectionsActive.Set(float64(stats.Active))
			metrics.PoolConnectionsIdle.Set(float64(stats.Idle))
		}
	}
}
