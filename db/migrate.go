package db

import (
	"context"
	"log/slog"

	surrealdb "github.com/surrealdb/surrealdb.go"

	"github.com/iskng/embed-star/core"
)

// migrations define the embedding fields and indexes on the repo
// table. Statements are idempotent so they run on every start.
var migrations = []struct {
	name string
	up   string
}{
	{
		name: "add_embedding_fields",
		up: `
            DEFINE FIELD IF NOT EXISTS embedding ON TABLE repo TYPE option<array<float>>;
            DEFINE FIELD IF NOT EXISTS embedding_model ON TABLE repo TYPE option<string>;
            DEFINE FIELD IF NOT EXISTS embedding_generated_at ON TABLE repo TYPE option<datetime>;
        `,
	},
	{
		name: "add_embedding_indexes",
		up: `
            DEFINE INDEX IF NOT EXISTS idx_repo_embedding_generated_at ON TABLE repo COLUMNS embedding_generated_at;
            DEFINE INDEX IF NOT EXISTS idx_repo_updated_at ON TABLE repo COLUMNS updated_at;
        `,
	},
}

// Migrate applies the embedding schema to the connected database.
func Migrate(ctx context.Context, pool *Pool, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := pool.Get(ctx)
	if err != nil {
		return err
	}
	defer pool.Put(conn)

	for _, m := range migrations {
		if _, err := surrealdb.Query[any](ctx, conn, m.up, nil); err != nil {
			return core.E(core.KindDatabaseQuery, "migrate_"+m.name, err)
		}
		logger.Debug("applied migration", "name", m.name)
	}
	logger.Info("database migrations complete", "count", len(migrations))
	return nil
}
