package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	return cfg
}

func TestDefault_Validates(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 3, cfg.ParallelWorkers)
	assert.Equal(t, 8000, cfg.TokenLimit)
	assert.Equal(t, 10000, cfg.CacheSize)
}

func TestNormalize_UpgradesHTTPToWebSocket(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:8000", "ws://localhost:8000"},
		{"https://db.example.com", "wss://db.example.com"},
		{"ws://localhost:8000", "ws://localhost:8000"},
		{"wss://db.example.com", "wss://db.example.com"},
	}
	for _, tc := range tests {
		cfg := validConfig()
		cfg.DBURL = tc.in
		cfg.Normalize()
		assert.Equal(t, tc.want, cfg.DBURL)
	}
}

func TestNormalize_TogetherAIAlias(t *testing.T) {
	cfg := validConfig()
	cfg.EmbeddingProvider = "togetherai"
	cfg.TogetherAPIKey = "key"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ProviderTogether, cfg.EmbeddingProvider)
}

func TestValidate_OpenAIRequiresKey(t *testing.T) {
	cfg := validConfig()
	cfg.EmbeddingProvider = ProviderOpenAI
	require.Error(t, cfg.Validate())

	cfg.OpenAIAPIKey = "sk-test"
	require.NoError(t, cfg.Validate())
}

func TestValidate_TogetherRequiresKey(t *testing.T) {
	cfg := validConfig()
	cfg.EmbeddingProvider = ProviderTogether
	require.Error(t, cfg.Validate())

	cfg.TogetherAPIKey = "key"
	require.NoError(t, cfg.Validate())
}

func TestValidate_UnknownProvider(t *testing.T) {
	cfg := validConfig()
	cfg.EmbeddingProvider = "bedrock"
	assert.Error(t, cfg.Validate())
}

func TestValidate_Bounds(t *testing.T) {
	cfg := validConfig()
	cfg.BatchSize = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.ParallelWorkers = -1
	assert.Error(t, cfg.Validate())

	// Zero workers is degenerate but defined.
	cfg = validConfig()
	cfg.ParallelWorkers = 0
	assert.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.RetryAttempts = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.TokenLimit = 0
	assert.Error(t, cfg.Validate())
}

func TestString_OmitsCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.DBPass = "hunter2"
	cfg.OpenAIAPIKey = "sk-secret"
	s := cfg.String()
	assert.NotContains(t, s, "hunter2")
	assert.NotContains(t, s, "sk-secret")
}
