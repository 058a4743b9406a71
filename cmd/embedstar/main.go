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

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/iskng/embed-star/config"
	"github.com/iskng/embed-star/service"
)

func main() {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	defaults := config.Default()

	app := &cli.App{
		Name:   "embedstar",
		Usage:  "Generate embeddings for GitHub repositories stored in SurrealDB",
		Before: setupLogger,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   defaults.LogLevel,
			},
			&cli.StringFlag{
				Name:    "db-url",
				Usage:   "SurrealDB URL (ws://, wss://, or http(s):// upgraded to WebSocket)",
				EnvVars: []string{"DB_URL"},
				Value:   defaults.DBURL,
			},
			&cli.StringFlag{
				Name:    "db-user",
				Usage:   "SurrealDB user",
				EnvVars: []string{"DB_USER"},
				Value:   defaults.DBUser,
			},
			&cli.StringFlag{
				Name:    "db-pass",
				Usage:   "SurrealDB password",
				EnvVars: []string{"DB_PASS"},
				Value:   defaults.DBPass,
			},
			&cli.StringFlag{
				Name:    "db-namespace",
				Usage:   "SurrealDB namespace",
				EnvVars: []string{"DB_NAMESPACE"},
				Value:   defaults.DBNamespace,
			},
			&cli.StringFlag{
				Name:    "db-database",
				Usage:   "SurrealDB database",
				EnvVars: []string{"DB_DATABASE"},
				Value:   defaults.DBDatabase,
			},
			&cli.StringFlag{
				Name:    "embedding-provider",
				Usage:   "Embedding provider (ollama, openai, together)",
				EnvVars: []string{"EMBEDDING_PROVIDER"},
				Value:   defaults.EmbeddingProvider,
			},
			&cli.StringFlag{
				Name:    "embedding-model",
				Usage:   "Embedding model name",
				EnvVars: []string{"EMBEDDING_MODEL"},
				Value:   defaults.EmbeddingModel,
			},
			&cli.StringFlag{
				Name:    "ollama-url",
				Usage:   "Ollama server base URL",
				EnvVars: []string{"OLLAMA_URL"},
				Value:   defaults.OllamaURL,
			},
			&cli.StringFlag{
				Name:    "openai-api-key",
				Usage:   "OpenAI API key",
				EnvVars: []string{"OPENAI_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "together-api-key",
				Usage:   "Together AI API key",
				EnvVars: []string{"TOGETHER_API_KEY"},
			},
			&cli.IntFlag{
				Name:    "batch-size",
				Usage:   "Repositories per worker batch",
				EnvVars: []string{"BATCH_SIZE"},
				Value:   defaults.BatchSize,
			},
			&cli.IntFlag{
				Name:    "parallel-workers",
				Usage:   "Number of parallel batch workers",
				EnvVars: []string{"PARALLEL_WORKERS"},
				Value:   defaults.ParallelWorkers,
			},
			&cli.IntFlag{
				Name:    "retry-attempts",
				Usage:   "Maximum attempts per provider or database operation",
				EnvVars: []string{"RETRY_ATTEMPTS"},
				Value:   defaults.RetryAttempts,
			},
			&cli.IntFlag{
				Name:    "retry-delay-ms",
				Usage:   "Base delay for exponential backoff in milliseconds",
				EnvVars: []string{"RETRY_DELAY_MS"},
				Value:   int(defaults.RetryDelay / time.Millisecond),
			},
			&cli.IntFlag{
				Name:    "batch-delay-ms",
				Usage:   "Pause between worker batches in milliseconds",
				EnvVars: []string{"BATCH_DELAY_MS"},
				Value:   int(defaults.BatchDelay / time.Millisecond),
			},
			&cli.IntFlag{
				Name:    "token-limit",
				Usage:   "Byte budget for canonical embedding text",
				EnvVars: []string{"TOKEN_LIMIT"},
				Value:   defaults.TokenLimit,
			},
			&cli.IntFlag{
				Name:    "pool-max-size",
				Usage:   "Maximum database connections",
				EnvVars: []string{"POOL_MAX_SIZE"},
				Value:   defaults.PoolMaxSize,
			},
			&cli.IntFlag{
				Name:    "pool-wait-timeout-secs",
				Usage:   "Seconds to wait for a pooled connection",
				EnvVars: []string{"POOL_WAIT_TIMEOUT_SECS"},
				Value:   int(defaults.PoolWaitTimeout / time.Second),
			},
			&cli.IntFlag{
				Name:    "pool-create-timeout-secs",
				Usage:   "Seconds to establish a new connection",
				EnvVars: []string{"POOL_CREATE_TIMEOUT_SECS"},
				Value:   int(defaults.PoolCreateTimeout / time.Second),
			},
			&cli.IntFlag{
				Name:    "cache-size",
				Usage:   "Maximum embedding cache entries",
				EnvVars: []string{"CACHE_SIZE"},
				Value:   defaults.CacheSize,
			},
			&cli.IntFlag{
				Name:    "cache-ttl-secs",
				Usage:   "Embedding cache entry lifetime in seconds",
				EnvVars: []string{"CACHE_TTL_SECS"},
				Value:   int(defaults.CacheTTL / time.Second),
			},
			&cli.IntFlag{
				Name:    "rate-limit-per-min",
				Usage:   "Override the provider request quota per minute (0 = provider default)",
				EnvVars: []string{"RATE_LIMIT_PER_MIN"},
			},
			&cli.IntFlag{
				Name:    "breaker-failure-threshold",
				Usage:   "Override consecutive failures before the circuit opens (0 = provider default)",
				EnvVars: []string{"BREAKER_FAILURE_THRESHOLD"},
			},
			&cli.IntFlag{
				Name:    "breaker-cooldown-secs",
				Usage:   "Override seconds the circuit stays open (0 = provider default)",
				EnvVars: []string{"BREAKER_COOLDOWN_SECS"},
			},
			&cli.IntFlag{
				Name:    "shutdown-timeout-secs",
				Usage:   "Seconds to drain in-flight batches on shutdown",
				EnvVars: []string{"SHUTDOWN_TIMEOUT_SECS"},
				Value:   int(defaults.ShutdownTimeout / time.Second),
			},
			&cli.IntFlag{
				Name:    "monitoring-port",
				Usage:   "Port for /health, /livez and /metrics",
				EnvVars: []string{"MONITORING_PORT"},
				Value:   defaults.MonitoringPort,
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	cfg := configFromFlags(c)
	if err := cfg.Validate(); err != nil {
		return err
	}
	return service.Run(context.Background(), cfg)
}

func configFromFlags(c *cli.Context) *config.Config {
	cfg := config.Default()
	cfg.LogLevel = c.String("log-level")
	cfg.DBURL = c.String("db-url")
	cfg.DBUser = c.String("db-user")
	cfg.DBPass = c.String("db-pass")
	cfg.DBNamespace = c.String("db-namespace")
	cfg.DBDatabase = c.String("db-database")
	cfg.EmbeddingProvider = c.String("embedding-provider")
	cfg.EmbeddingModel = c.String("embedding-model")
	cfg.OllamaURL = c.String("ollama-url")
	cfg.OpenAIAPIKey = c.String("openai-api-key")
	cfg.TogetherAPIKey = c.String("together-api-key")
	cfg.BatchSize = c.Int("batch-size")
	cfg.ParallelWorkers = c.Int("parallel-workers")
	cfg.RetryAttempts = c.Int("retry-attempts")
	cfg.RetryDelay = time.Duration(c.Int("retry-delay-ms")) * time.Millisecond
	cfg.BatchDelay = time.Duration(c.Int("batch-delay-ms")) * time.Millisecond
	cfg.TokenLimit = c.Int("token-limit")
	cfg.PoolMaxSize = c.Int("pool-max-size")
	cfg.PoolWaitTimeout = time.Duration(c.Int("pool-wait-timeout-secs")) * time.Second
	cfg.PoolCreateTimeout = time.Duration(c.Int("pool-create-timeout-secs")) * time.Second
	cfg.CacheSize = c.Int("cache-size")
	cfg.CacheTTL = time.Duration(c.Int("cache-ttl-secs")) * time.Second
	cfg.RateLimitPerMin = c.Int("rate-limit-per-min")
	cfg.BreakerFailureThreshold = c.Int("breaker-failure-threshold")
	cfg.BreakerCooldown = time.Duration(c.Int("breaker-cooldown-secs")) * time.Second
	cfg.ShutdownTimeout = time.Duration(c.Int("shutdown-timeout-secs")) * time.Second
	cfg.MonitoringPort = c.Int("monitoring-port")
	return cfg
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
