// Package db wraps SurrealDB access: a pool of health-validated
// WebSocket connections, the repo-table queries the engine needs, and
// the idempotent schema migrations for the embedding fields.
package db
