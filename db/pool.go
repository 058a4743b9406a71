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
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	surrealdb "github.com/surrealdb/surrealdb.go"

	"github.com/iskng/embed-star/config"
	"github.com/iskng/embed-star/core"
)

// healthTimeout bounds the validation probe run on checkout.
const healthTimeout = 5 * time.Second

// PoolMetrics are the counters and the waiting gauge the pool
// reports into. Occupancy gauges are sampled from Stats by the
// service. Any field may be nil (tests).
type PoolMetrics struct {
	Waiting             prometheus.Gauge
	Created             prometheus.Counter
	ConnectionErrors    prometheus.Counter
	HealthCheckFailures prometheus.Counter
}

// Pool keeps up to PoolMaxSize authenticated SurrealDB connections.
// A checkout validates the connection with a health probe and
// discards-and-recreates on failure; callers hold a connection only
// for the duration of a single operation.
type Pool struct {
	cfg     *config.Config
	idle    chan *surrealdb.DB
	mu      sync.Mutex
	size    int // connections that exist or are being created
	metrics PoolMetrics
	logger  *slog.Logger

	// dial is swapped by tests to avoid a live server.
	dial func(ctx context.Context) (*surrealdb.DB, error)
}

// NewPool creates a pool for the configured database. Connections are
// created lazily on checkout.
func NewPool(cfg *config.Config, metrics PoolMetrics, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		cfg:     cfg,
		idle:    make(chan *surrealdb.DB, cfg.PoolMaxSize),
		metrics: metrics,
		logger:  logger.With("component", "db-pool"),
	}
	p.dial = p.connect
	return p
}

// connect establishes, authenticates and scopes one connection,
// bounded by the pool create timeout.
func (p *Pool) connect(ctx context.Context) (*surrealdb.DB, error) {
	const op = "pool_connect"

	type result struct {
		conn *surrealdb.DB
		err  error
	}
	done := make(chan result, 1)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.PoolCreateTimeout)
	defer cancel()

	go func() {
		conn, err := surrealdb.New(p.cfg.DBURL)
		if err != nil {
			done <- result{nil, err}
			return
		}
		if _, err := conn.SignIn(ctx, &surrealdb.Auth{
			Username: p.cfg.DBUser,
			Password: p.cfg.DBPass,
		}); err != nil {
			_ = conn.Close(ctx)
			done <- result{nil, err}
			return
		}
		if err := conn.Use(ctx, p.cfg.DBNamespace, p.cfg.DBDatabase); err != nil {
			_ = conn.Close(ctx)
			done <- result{nil, err}
			return
		}
		done <- result{conn, nil}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, core.E(core.KindDatabaseConnectivity, op, r.err)
		}
		return r.conn, nil
	case <-ctx.Done():
		// Checkout timed out while we were connecting; close the
		// connection if the dial still completes.
		go func() {
			if r := <-done; r.conn != nil {
				_ = r.conn.Close(context.Background())
			}
		}()
		return nil, core.E(core.KindDatabaseConnectivity, op, ctx.Err())
	}
}

// health runs the cheap RETURN 1 probe against a connection.
func health(ctx context.Context, conn *surrealdb.DB) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	type result struct{ err error }
	done := make(chan result, 1)
	go func() {
		_, err := surrealdb.Query[any](ctx, conn, "RETURN 1", nil)
		done <- result{err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return core.E(core.KindDatabaseConnectivity, "pool_health", r.err)
		}
		return nil
	case <-ctx.Done():
		return core.E(core.KindDatabaseConnectivity, "pool_health", ctx.Err())
	}
}

// Get checks out a validated connection, waiting up to the pool wait
// timeout for one to become available.
func (p *Pool) Get(ctx context.Context) (*surrealdb.DB, error) {
	const op = "pool_get"

	if p.metrics.Waiting != nil {
		p.metrics.Waiting.Inc()
		defer p.metrics.Waiting.Dec()
	}

	deadline := time.NewTimer(p.cfg.PoolWaitTimeout)
	defer deadline.Stop()

	for {
		// Prefer an idle connection.
		select {
		case conn := <-p.idle:
			if err := health(ctx, conn); err != nil {
				p.discard(conn)
				continue
			}
			return conn, nil
		default:
		}

		// Create when under the cap.
		if p.reserve() {
			conn, err := p.dial(ctx)
			if err != nil {
				p.unreserve()
				if p.metrics.ConnectionErrors != nil {
					p.metrics.ConnectionErrors.Inc()
				}
				return nil, err
			}
			if p.metrics.Created != nil {
				p.metrics.Created.Inc()
			}
			return conn, nil
		}

		// At capacity: wait for a return.
		select {
		case conn := <-p.idle:
			if err := health(ctx, conn); err != nil {
				p.discard(conn)
				continue
			}
			return conn, nil
		case <-deadline.C:
			return nil, core.Ef(core.KindDatabaseConnectivity, op,
				"no connection available within %s", p.cfg.PoolWaitTimeout)
		case <-ctx.Done():
			return nil, core.E(core.KindCancelled, op, ctx.Err())
		}
	}
}

// Put returns a connection to the idle set.
func (p *Pool) Put(conn *surrealdb.DB) {
	if conn == nil {
		return
	}
	select {
	case p.idle <- conn:
	default:
		p.discardClosed(conn)
	}
}

// discard drops a connection that failed its health probe.
func (p *Pool) discard(conn *surrealdb.DB) {
	if p.metrics.HealthCheckFailures != nil {
		p.metrics.HealthCheckFailures.Inc()
	}
	p.logger.Warn("discarding unhealthy connection")
	p.discardClosed(conn)
}

func (p *Pool) discardClosed(conn *surrealdb.DB) {
	_ = conn.Close(context.Background())
	p.unreserve()
}

func (p *Pool) reserve() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.size >= p.cfg.PoolMaxSize {
		return false
	}
	p.size++
	return true
}

func (p *Pool) unreserve() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.size > 0 {
		p.size--
	}
}

// Stats reports a point-in-time view of the pool for the health
// surface.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	size := p.size
	p.mu.Unlock()
	idle := len(p.idle)
	return PoolStats{
		Size:    size,
		Idle:    idle,
		Active:  size - idle,
		MaxSize: p.cfg.PoolMaxSize,
	}
}

// Close closes every idle connection. Connections checked out at the
// time are not closed; one returned by Put afterwards goes back to the
// idle set.
func (p *Pool) Close() {
	for {
		select {
		case conn := <-p.idle:
			_ = conn.Close(context.Background())
			p.unreserve()
		default:
			return
		}
	}
}

// PoolStats is a snapshot of pool occupancy.
type PoolStats struct {
	Size    int `json:"size"`
	Active  int `json:"active"`
	Idle    int `json:"idle"`
	MaxSize int `json:"max_size"`
}
