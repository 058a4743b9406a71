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
	"time"

	"github.com/iskng/embed-star/core"
)

// discoveryInterval is the steady-state polling tick. The test suite
// only guarantees pickup within one interval.
const discoveryInterval = 5 * time.Second

// sweepPause separates pages of the startup sweep so it does not
// monopolize the database.
const sweepPause = 100 * time.Millisecond

// runDiscovery feeds the work queue. On startup it sweeps every
// pending row page by page until exhausted, then polls on the tick
// with a skip set of in-flight and recently finished identifiers.
func (e *Engine) runDiscovery(ctx context.Context) {
	logger := e.logger.With("task", "discovery")
	logger.Info("starting discovery")

	e.initialSweep(ctx, logger)

	ticker := time.NewTicker(discoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("discovery stopped")
			return
		case <-ticker.C:
			if _, err := e.pollOnce(ctx); err != nil && ctx.Err() == nil {
				logger.Error("discovery poll failed", "err", err)
			}
		}
	}
}

// initialSweep paginates through all pending rows before entering
// steady-state polling. Claimed identifiers enter the skip set, so
// each fetch naturally returns the next page.
func (e *Engine) initialSweep(ctx context.Context, logger *slog.Logger) {
	total := 0
	for ctx.Err() == nil {
		n, err := e.pollOnce(ctx)
		if err != nil || n == 0 {
			break
		}
		total += n
		if !sleepCtx(ctx, sweepPause) {
			break
		}
	}
	logger.Info("initial sweep complete", "enqueued", total)
}

// pollOnce fetches one page of pending repositories, claims each, and
// pushes work items into the bounded queue. It returns how many items
// it enqueued.
func (e *Engine) pollOnce(ctx context.Context) (int, error) {
	limit := e.fetchLimit()
	repos, err := e.deps.Store.FetchPending(ctx, limit, e.inflight.Skip())
	if err != nil {
		return 0, err
	}

	model := e.deps.Provider.ModelName()
	enqueued := 0
	for _, repo := range repos {
		// The query already filters, but the transform stays
		// authoritative when server- and client-side views drift.
		if !repo.NeedsEmbedding(model) {
			continue
		}
		if !e.inflight.TryClaim(repo.ID) {
			continue
		}
		item := core.NewWorkItem(repo, e.cfg.TokenLimit)
		select {
		case e.queue <- item:
			enqueued++
		case <-ctx.Done():
			e.inflight.Release(repo.ID)
			return enqueued, ctx.Err()
		}
	}
	return enqueued, nil
}

func (e *Engine) fetchLimit() int {
	workers := e.cfg.ParallelWorkers
	if workers < 1 {
		workers = 1
	}
	return e.cfg.BatchSize * workers * 2
}

// sleepCtx sleeps unless ctx ends first, reporting whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
