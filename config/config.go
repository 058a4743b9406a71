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

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Supported embedding provider names.
const (
	ProviderOllama   = "ollama"
	ProviderOpenAI   = "openai"
	ProviderTogether = "together"
)

// Config is the immutable configuration record for the service.
// It is loaded once at startup from CLI flags and environment variables
// and shared read-only between all components.
type Config struct {
	// Database connection settings.
	DBURL       string
	DBUser      string
	DBPass      string
	DBNamespace string
	DBDatabase  string

	// Embedding provider selection and credentials.
	EmbeddingProvider string
	EmbeddingModel    string
	OllamaURL         string
	OpenAIAPIKey      string
	TogetherAPIKey    string

	// Processing pipeline tuning.
	BatchSize       int
	ParallelWorkers int
	RetryAttempts   int
	RetryDelay      time.Duration
	BatchDelay      time.Duration

	// TokenLimit is the budget in bytes for canonical embedding text,
	// a conservative proxy for the provider's token limit. Longer text
	// is cut at a UTF-8 boundary.
	TokenLimit int

	// Connection pool limits.
	PoolMaxSize       int
	PoolWaitTimeout   time.Duration
	PoolCreateTimeout time.Duration

	// Embedding cache sizing.
	CacheSize int
	CacheTTL  time.Duration

	// RateLimitPerMin overrides the active provider's request quota.
	// Zero keeps the provider's built-in default.
	RateLimitPerMin int

	// Circuit breaker overrides for the active provider.
	// Zero keeps the provider's built-in default.
	BreakerFailureThreshold int
	BreakerCooldown         time.Duration

	// ShutdownTimeout bounds how long in-flight batches may drain
	// after a termination signal.
	ShutdownTimeout time.Duration

	// MonitoringPort serves /health, /livez and /metrics.
	MonitoringPort int

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// Default returns a Config populated with the documented defaults.
// Callers overlay flag and environment values on top of it.
func Default() *Config {
	return &Config{
		DBURL:             "ws://localhost:8000",
		DBUser:            "root",
		DBPass:            "root",
		DBNamespace:       "gitstars",
		DBDatabase:        "stars",
		EmbeddingProvider: ProviderOllama,
		EmbeddingModel:    "nomic-embed-text",
		OllamaURL:         "http://localhost:11434",
		BatchSize:         10,
		ParallelWorkers:   3,
		RetryAttempts:     3,
		RetryDelay:        1 * time.Second,
		BatchDelay:        100 * time.Millisecond,
		TokenLimit:        8000,
		PoolMaxSize:       10,
		PoolWaitTimeout:   10 * time.Second,
		PoolCreateTimeout: 30 * time.Second,
		CacheSize:         10000,
		CacheTTL:          time.Hour,
		ShutdownTimeout:   30 * time.Second,
		MonitoringPort:    9090,
		LogLevel:          "info",
	}
}

// Normalize rewrites the configuration into canonical form. The
// database URL is upgraded from HTTP to WebSocket scheme because the
// SurrealDB RPC endpoint speaks WebSocket; plain ws/wss URLs pass
// through unchanged.
func (c *Config) Normalize() {
	switch {
	case strings.HasPrefix(c.DBURL, "http://"):
		c.DBURL = "ws://" + strings.TrimPrefix(c.DBURL, "http://")
	case strings.HasPrefix(c.DBURL, "https://"):
		c.DBURL = "wss://" + strings.TrimPrefix(c.DBURL, "https://")
	}
	c.EmbeddingProvider = strings.ToLower(c.EmbeddingProvider)
	// "togetherai" is accepted as an alias for together.
	if c.EmbeddingProvider == "togetherai" {
		c.EmbeddingProvider = ProviderTogether
	}
}

// Validate checks that the configuration is complete and internally
// consistent. It normalizes first so validation sees canonical values.
func (c *Config) Validate() error {
	c.Normalize()

	if c.DBURL == "" {
		return errors.New("config: db-url is required")
	}
	if c.DBNamespace == "" || c.DBDatabase == "" {
		return errors.New("config: db-namespace and db-database are required")
	}

	switch c.EmbeddingProvider {
	case ProviderOllama:
		if c.OllamaURL == "" {
			return errors.New("config: ollama-url is required for the ollama provider")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("config: openai-api-key is required for the openai provider")
		}
	case ProviderTogether:
		if c.TogetherAPIKey == "" {
			return errors.New("config: together-api-key is required for the together provider")
		}
	default:
		return fmt.Errorf("config: unknown embedding provider %q", c.EmbeddingProvider)
	}

	if c.EmbeddingModel == "" {
		return errors.New("config: embedding-model is required")
	}
	if c.BatchSize <= 0 {
		return errors.New("config: batch-size must be greater than 0")
	}
	if c.ParallelWorkers < 0 {
		return errors.New("config: parallel-workers must not be negative")
	}
	if c.RetryAttempts <= 0 {
		return errors.New("config: retry-attempts must be greater than 0")
	}
	if c.TokenLimit <= 0 {
		return errors.New("config: token-limit must be greater than 0")
	}
	if c.PoolMaxSize <= 0 {
		return errors.New("config: pool-max-size must be greater than 0")
	}
	if c.CacheSize <= 0 {
		return errors.New("config: cache-size must be greater than 0")
	}
	return nil
}

// String renders the configuration for the startup log with
// credentials omitted.
func (c *Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "db=%s ns=%s/%s", c.DBURL, c.DBNamespace, c.DBDatabase)
	fmt.Fprintf(&b, " provider=%s model=%s", c.EmbeddingProvider, c.EmbeddingModel)
	fmt.Fprintf(&b, " batch=%d workers=%d pool=%d", c.BatchSize, c.ParallelWorkers, c.PoolMaxSize)
	return b.String()
}
