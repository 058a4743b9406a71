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

package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	surrealdb "github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/iskng/embed-star/core"
)

// pendingFilter selects repositories the transform considers in need
// of embedding: vector absent, produced by a different model, or
// stale relative to the record's update time.
const pendingFilter = `(embedding IS NONE
    OR embedding_model IS NONE
    OR embedding_model != $model
    OR embedding_generated_at IS NONE
    OR updated_at > embedding_generated_at)`

// Client wraps the connection pool with the repo-table operations the
// engine needs. Each operation holds one pooled connection for its
// duration.
type Client struct {
	pool   *Pool
	model  string
	logger *slog.Logger
}

// NewClient creates a client bound to the active embedding model.
func NewClient(pool *Pool, model string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{pool: pool, model: model, logger: logger.With("component", "db-client")}
}

func (c *Client) withConn(ctx context.Context, fn func(conn *surrealdb.DB) error) error {
	conn, err := c.pool.Get(ctx)
	if err != nil {
		return err
	}
	defer c.pool.Put(conn)
	return fn(conn)
}

// FetchPending returns up to limit repositories needing embeddings,
// ordered by updated_at ascending, excluding identifiers in skip.
func (c *Client) FetchPending(ctx context.Context, limit int, skip []models.RecordID) ([]core.Repo, error) {
	const op = "fetch_pending"

	query := `SELECT * FROM repo WHERE ` + pendingFilter + `
        AND id NOTINSIDE $skip
        ORDER BY updated_at ASC
        LIMIT $limit`

	if skip == nil {
		skip = []models.RecordID{}
	}

	var repos []core.Repo
	err := c.withConn(ctx, func(conn *surrealdb.DB) error {
		res, err := surrealdb.Query[[]core.Repo](ctx, conn, query, map[string]any{
			"model": c.model,
			"skip":  skip,
			"limit": limit,
		})
		if err != nil {
			return core.E(core.KindDatabaseQuery, op, err)
		}
		if len(*res) > 0 {
			repos = (*res)[0].Result
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return repos, nil
}

// UpdateEmbedding sets the three embedding fields on a single row.
func (c *Client) UpdateEmbedding(ctx context.Context, id models.RecordID, embedding []float32, model string, generatedAt time.Time) error {
	const op = "update_embedding"

	query := `UPDATE $repo_id SET
        embedding = $embedding,
        embedding_model = $embedding_model,
        embedding_generated_at = $generated_at`

	return c.withConn(ctx, func(conn *surrealdb.DB) error {
		_, err := surrealdb.Query[[]core.Repo](ctx, conn, query, map[string]any{
			"repo_id":         id,
			"embedding":       embedding,
			"embedding_model": model,
			"generated_at":    models.CustomDateTime{Time: generatedAt},
		})
		if err != nil {
			return core.E(core.KindDatabaseQuery, op, err)
		}
		return nil
	})
}

// BatchUpdateEmbeddings writes every update in a single transaction.
// If the transaction fails it falls back to individual updates so
// partial success is preserved.
func (c *Client) BatchUpdateEmbeddings(ctx context.Context, updates []core.EmbeddingUpdate) (core.BatchUpdateResult, error) {
	const op = "batch_update_embeddings"

	if len(updates) == 0 {
		return core.BatchUpdateResult{}, nil
	}

	start := time.Now()

	var b strings.Builder
	b.WriteString("BEGIN TRANSACTION;\n")
	vars := make(map[string]any, len(updates)*4)
	for i, u := range updates {
		fmt.Fprintf(&b, `UPDATE $repo_id_%d SET
            embedding = $embedding_%d,
            embedding_model = $model_%d,
            embedding_generated_at = $generated_at_%d;
`, i, i, i, i)
		vars[fmt.Sprintf("repo_id_%d", i)] = u.RepoID
		vars[fmt.Sprintf("embedding_%d", i)] = u.Embedding
		vars[fmt.Sprintf("model_%d", i)] = u.Model
		vars[fmt.Sprintf("generated_at_%d", i)] = models.CustomDateTime{Time: u.GeneratedAt}
	}
	b.WriteString("COMMIT TRANSACTION;")

	err := c.withConn(ctx, func(conn *surrealdb.DB) error {
		_, err := surrealdb.Query[any](ctx, conn, b.String(), vars)
		return err
	})
	if err == nil {
		duration := time.Since(start)
		c.logger.Debug("batch update complete",
			"rows", len(updates), "duration", duration)
		return core.BatchUpdateResult{
			Total:      len(updates),
			Successful: len(updates),
			Duration:   duration,
		}, nil
	}

	c.logger.Warn("batch update failed, falling back to individual updates",
		"rows", len(updates), "err", err)
	return c.fallbackIndividual(ctx, updates, start)
}

// fallbackIndividual retries the batch row by row, accumulating
// per-row outcomes.
func (c *Client) fallbackIndividual(ctx context.Context, updates []core.EmbeddingUpdate, start time.Time) (core.BatchUpdateResult, error) {
	result := core.BatchUpdateResult{Total: len(updates)}
	for _, u := range updates {
		if err := c.UpdateEmbedding(ctx, u.RepoID, u.Embedding, u.Model, u.GeneratedAt); err != nil {
			c.logger.Error("individual update failed", "repo_id", u.RepoID.String(), "err", err)
			result.Failed++
			continue
		}
		result.Successful++
	}
	result.Duration = time.Since(start)
	if result.Successful == 0 {
		return result, core.Ef(core.KindDatabaseQuery, "batch_update_embeddings",
			"all %d updates failed", result.Total)
	}
	return result, nil
}

// Health runs the cheap probe used by the scraper and pool recycler.
func (c *Client) Health(ctx context.Context) error {
	return c.withConn(ctx, func(conn *surrealdb.DB) error {
		return health(ctx, conn)
	})
}

// PendingCount counts repositories still needing embeddings.
func (c *Client) PendingCount(ctx context.Context) (int, error) {
	return c.count(ctx, `SELECT VALUE count() FROM repo WHERE `+pendingFilter+` GROUP ALL`, map[string]any{
		"model": c.model,
	})
}

// TotalCount counts every repository row.
func (c *Client) TotalCount(ctx context.Context) (int, error) {
	return c.count(ctx, `SELECT VALUE count() FROM repo GROUP ALL`, nil)
}

// EmbeddedCount counts repositories that carry an embedding.
func (c *Client) EmbeddedCount(ctx context.Context) (int, error) {
	return c.count(ctx, `SELECT VALUE count() FROM repo WHERE embedding IS NOT NONE GROUP ALL`, nil)
}

func (c *Client) count(ctx context.Context, query string, vars map[string]any) (int, error) {
	const op = "count"

	var n int
	err := c.withConn(ctx, func(conn *surrealdb.DB) error {
		res, err := surrealdb.Query[[]int](ctx, conn, query, vars)
		if err != nil {
			return core.E(core.KindDatabaseQuery, op, err)
		}
		if len(*res) > 0 && len((*res)[0].Result) > 0 {
			n = (*res)[0].Result[0]
		}
		return nil
	})
	return n, err
}

// Stats exposes the pool snapshot for the health endpoint.
func (c *Client) Stats() PoolStats {
	return c.pool.Stats()
}
