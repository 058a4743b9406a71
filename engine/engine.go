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

package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/iskng/embed-star/breaker"
	"github.com/iskng/embed-star/cache"
	"github.com/iskng/embed-star/config"
	"github.com/iskng/embed-star/core"
	"github.com/iskng/embed-star/limiter"
	"github.com/iskng/embed-star/metric"
	"github.com/iskng/embed-star/provider"
	"github.com/iskng/embed-star/retry"
)

// Store is the database surface the engine needs. *db.Client
// implements it.
type Store interface {
	FetchPending(ctx context.Context, limit int, skip []models.RecordID) ([]core.Repo, error)
	BatchUpdateEmbeddings(ctx context.Context, updates []core.EmbeddingUpdate) (core.BatchUpdateResult, error)
	PendingCount(ctx context.Context) (int, error)
}

// Deps are the shared components the engine coordinates. Workers
// contend only on these; each worker otherwise owns its state.
type Deps struct {
	Store    Store
	Provider provider.Provider
	Cache    *cache.EmbeddingCache
	Limiter  *limiter.Manager
	Breaker  *breaker.Manager
	Retry    *retry.Executor
	Metrics  *metric.Metrics
	Logger   *slog.Logger
}

// Engine runs the discovery loop and the parallel batch workers.
type Engine struct {
	cfg       *config.Config
	deps      Deps
	inflight  *InFlightSet
	queue     chan core.WorkItem
	validator core.ValidatorConfig
	logger    *slog.Logger
}

// New builds an engine. The work queue is bounded so discovery
// backpressures instead of buffering the whole table.
func New(cfg *config.Config, deps Deps) (*Engine, error) {
	if deps.Store == nil || deps.Provider == nil {
		return nil, core.Ef(core.KindConfiguration, "engine_new", "store and provider are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Cache == nil {
		deps.Cache = cache.New(cfg.CacheSize, cfg.CacheTTL, nil, nil)
	}
	if deps.Limiter == nil {
		deps.Limiter = limiter.NewManager(nil)
	}
	if deps.Breaker == nil {
		deps.Breaker = breaker.NewManager(nil, deps.Logger)
	}
	if deps.Retry == nil {
		deps.Retry = retry.NewExecutor(retry.Config{
			MaxAttempts: cfg.RetryAttempts,
			BaseDelay:   cfg.RetryDelay,
		}, nil, deps.Logger)
	}

	queueSize := cfg.BatchSize * (cfg.ParallelWorkers + 1) * 2

	return &Engine{
		cfg:       cfg,
		deps:      deps,
		inflight:  NewInFlightSet(DefaultCooldownWindow),
		queue:     make(chan core.WorkItem, queueSize),
		validator: core.DefaultValidatorConfig(),
		logger:    deps.Logger.With("component", "engine"),
	}, nil
}

// InFlight exposes the claim set for tests and the discovery loop.
func (e *Engine) InFlight() *InFlightSet {
	return e.inflight
}

// Run starts the discovery loop and ParallelWorkers workers and
// blocks until ctx is cancelled and every task has returned. On
// cancellation a worker lets its in-progress provider call finish,
// then abandons the rest of its current batch without writing it. With
// zero workers the engine discovers but makes no progress.
func (e *Engine) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		e.runDiscovery(ctx)
	}()

	if e.cfg.ParallelWorkers > 0 {
		pool, err := ants.NewPool(e.cfg.ParallelWorkers)
		if err != nil {
			return core.E(core.KindConfiguration, "engine_run", err)
		}
		defer pool.Release()

		for i := 0; i < e.cfg.ParallelWorkers; i++ {
			workerID := i
			wg.Add(1)
			if err := pool.Submit(func() {
				defer wg.Done()
				e.runWorker(ctx, workerID)
			}); err != nil {
				wg.Done()
				return core.E(core.KindConfiguration, "engine_run", err)
			}
		}
	}

	wg.Wait()
	return ctx.Err()
}
