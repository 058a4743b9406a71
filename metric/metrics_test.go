package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersExpectedSeries(t *testing.T) {
	m := New()

	// Touch the vectors so they appear in a gather.
	m.EmbeddingsTotal.WithLabelValues("ollama", "nomic-embed-text").Inc()
	m.EmbeddingsErrors.WithLabelValues("ollama", "validation_failed").Inc()
	m.RateLimits.WithLabelValues("openai").Inc()
	m.Retries.WithLabelValues("ollama", "provider_transient").Inc()
	m.CircuitBreakerState.WithLabelValues("ollama").Set(0)
	m.EmbeddingDuration.WithLabelValues("ollama").Observe(0.2)
	m.CacheHits.Inc()
	m.CacheMisses.Inc()
	m.ReposPending.Set(5)
	m.RecordValidation("nomic-embed-text", true)
	m.RecordValidation("nomic-embed-text", false)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}

	for _, want := range []string{
		"embed_star_embeddings_total",
		"embed_star_embeddings_errors_total",
		"embed_star_embedding_duration_seconds",
		"embed_star_cache_hits_total",
		"embed_star_cache_misses_total",
		"embed_star_rate_limits_total",
		"embed_star_retries_total",
		"embed_star_circuit_breaker_state",
		"embed_star_repos_pending",
		"embed_star_embedding_validations_total",
	} {
		assert.True(t, names[want], "missing series %s", want)
	}
}

func TestRecordValidation_Counts(t *testing.T) {
	m := New()
	m.RecordValidation("m", true)
	m.RecordValidation("m", true)
	m.RecordValidation("m", false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EmbeddingValidations.WithLabelValues("m", "pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmbeddingValidations.WithLabelValues("m", "fail")))
}
