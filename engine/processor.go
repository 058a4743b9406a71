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

	"github.com/google/uuid"

	"github.com/iskng/embed-star/core"
)

// runWorker drains batches from the queue until shutdown. Each cycle
// collects up to BatchSize items, runs them through the provider
// pipeline, flushes the successes in one writeback, and sleeps
// BatchDelay.
func (e *Engine) runWorker(ctx context.Context, workerID int) {
	logger := e.logger.With("worker", workerID)
	logger.Info("worker started")

	for {
		batch, ok := e.nextBatch(ctx)
		if !ok {
			logger.Info("worker stopped")
			return
		}
		e.processBatch(ctx, logger, batch)
		sleepCtx(ctx, e.cfg.BatchDelay)
	}
}

// nextBatch blocks for the first item, then drains whatever else is
// immediately queued up to BatchSize. It returns false on shutdown;
// items still queued are abandoned and re-detected on the next start.
func (e *Engine) nextBatch(ctx context.Context) ([]core.WorkItem, bool) {
	var first core.WorkItem
	select {
	case <-ctx.Done():
		return nil, false
	case first = <-e.queue:
	}

	batch := make([]core.WorkItem, 0, e.cfg.BatchSize)
	batch = append(batch, first)
	for len(batch) < e.cfg.BatchSize {
		select {
		case item := <-e.queue:
			batch = append(batch, item)
		default:
			return batch, true
		}
	}
	return batch, true
}

// processBatch runs one worker cycle over a claimed batch.
func (e *Engine) processBatch(ctx context.Context, logger *slog.Logger, batch []core.WorkItem) {
	batchID := uuid.NewString()
	logger = logger.With("batch_id", batchID)
	logger.Debug("processing batch", "size", len(batch))

	providerName := e.cfg.EmbeddingProvider
	model := e.deps.Provider.ModelName()

	updates := make([]core.EmbeddingUpdate, 0, len(batch))

	for i, item := range batch {
		if ctx.Err() != nil {
			// Abandon the rest of the batch; claims are released so a
			// restart re-detects the rows.
			for _, left := range batch[i:] {
				e.inflight.Release(left.Repo.ID)
			}
			e.releaseCollected(updates)
			logger.Info("batch abandoned on shutdown", "processed", i)
			return
		}

		vec, err := e.embedOne(ctx, item)
		if err != nil {
			kind := core.KindOf(err)
			if e.deps.Metrics != nil {
				e.deps.Metrics.EmbeddingsErrors.WithLabelValues(providerName, string(kind)).Inc()
			}
			switch kind {
			case core.KindCircuitOpen:
				// Deferred, not failed: eligible again next cycle.
				e.inflight.Release(item.Repo.ID)
				logger.Debug("skipping item, circuit open", "repo", item.Repo.FullName)
			case core.KindCancelled:
				e.inflight.Release(item.Repo.ID)
			default:
				e.inflight.Finish(item.Repo.ID)
				logger.Error("embedding failed", "repo", item.Repo.FullName, "kind", string(kind), "err", err)
			}
			continue
		}

		updates = append(updates, core.EmbeddingUpdate{
			RepoID:      item.Repo.ID,
			Embedding:   vec,
			Model:       model,
			GeneratedAt: time.Now().UTC(),
		})
	}

	e.flush(ctx, logger, updates)
}

// flush writes the collected updates in one batched writeback through
// the retry executor, then finishes every claim in the batch whether
// or not the write succeeded.
func (e *Engine) flush(ctx context.Context, logger *slog.Logger, updates []core.EmbeddingUpdate) {
	if len(updates) == 0 {
		return
	}
	if ctx.Err() != nil {
		e.releaseCollected(updates)
		return
	}

	var result core.BatchUpdateResult
	err := e.deps.Retry.Do(ctx, "batch_update", func() error {
		var opErr error
		result, opErr = e.deps.Store.BatchUpdateEmbeddings(ctx, updates)
		return opErr
	})
	if err != nil {
		logger.Error("batch writeback failed", "rows", len(updates), "err", err)
		for _, u := range updates {
			e.inflight.Finish(u.RepoID)
		}
		return
	}

	logger.Info("batch writeback complete",
		"rows", result.Total, "successful", result.Successful,
		"failed", result.Failed, "duration", result.Duration)
	for _, u := range updates {
		e.inflight.Finish(u.RepoID)
	}
}

func (e *Engine) releaseCollected(updates []core.EmbeddingUpdate) {
	for _, u := range updates {
		e.inflight.Release(u.RepoID)
	}
}

// embedOne resolves one work item's vector through the pipeline:
// cache, then rate limiter, then the provider call behind the circuit
// breaker with bounded retries, then validation.
func (e *Engine) embedOne(ctx context.Context, item core.WorkItem) ([]float32, error) {
	providerName := e.cfg.EmbeddingProvider
	model := e.deps.Provider.ModelName()

	if vec, ok := e.deps.Cache.Get(model, item.Fingerprint); ok {
		return vec, nil
	}

	if err := e.deps.Limiter.Acquire(ctx, providerName); err != nil {
		return nil, err
	}

	start := time.Now()
	vec, err := e.deps.Breaker.Execute(providerName, func() ([]float32, error) {
		var out []float32
		err := e.deps.Retry.Do(ctx, providerName, func() error {
			v, embedErr := e.deps.Provider.Embed(ctx, item.Text)
			if embedErr != nil {
				return embedErr
			}
			out = v
			return nil
		})
		return out, err
	})
	if err != nil {
		return nil, err
	}

	if e.deps.Metrics != nil {
		e.deps.Metrics.EmbeddingDuration.WithLabelValues(providerName).Observe(time.Since(start).Seconds())
	}

	cfg := e.validator
	cfg.ExpectedDimension = e.deps.Provider.Dimension()
	if err := core.NewEmbeddingValidator(cfg).Validate(vec, item.Repo.FullName); err != nil {
		if e.deps.Metrics != nil {
			e.deps.Metrics.RecordValidation(model, false)
		}
		return nil, err
	}
	if e.deps.Metrics != nil {
		e.deps.Metrics.RecordValidation(model, true)
		e.deps.Metrics.EmbeddingsTotal.WithLabelValues(providerName, model).Inc()
	}

	e.deps.Cache.Put(model, item.Fingerprint, vec)
	return vec, nil
}
