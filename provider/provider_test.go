package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iskng/embed-star/config"
	"github.com/iskng/embed-star/core"
)

func TestOllama_EmbedRequestShape(t *testing.T) {
	var gotPath string
	var gotBody ollamaEmbedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float64{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	p := NewOllama(srv.URL, "nomic-embed-text")
	vec, err := p.Embed(context.Background(), "hello world")
	require.NoError(t, err)

	assert.Equal(t, "/api/embeddings", gotPath)
	assert.Equal(t, "nomic-embed-text", gotBody.Model)
	assert.Equal(t, "hello world", gotBody.Prompt)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestOllama_EmptyEmbeddingIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{})
	}))
	defer srv.Close()

	_, err := NewOllama(srv.URL, "nomic-embed-text").Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, core.KindProviderTransient, core.KindOf(err))
}

func TestOpenAI_EmbedRequestShape(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody openAIEmbedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.5,0.6]}]}`))
	}))
	defer srv.Close()

	p := newOpenAICompatible(srv.URL, "sk-test", "text-embedding-3-small", "openai_embed")
	vec, err := p.Embed(context.Background(), "repo text")
	require.NoError(t, err)

	assert.Equal(t, "/v1/embeddings", gotPath)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "text-embedding-3-small", gotBody.Model)
	assert.Equal(t, "repo text", gotBody.Input)
	assert.Equal(t, []float32{0.5, 0.6}, vec)
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		kind   core.Kind
	}{
		{http.StatusTooManyRequests, core.KindProviderTransient},
		{http.StatusInternalServerError, core.KindProviderTransient},
		{http.StatusBadGateway, core.KindProviderTransient},
		{http.StatusServiceUnavailable, core.KindProviderTransient},
		{http.StatusBadRequest, core.KindProviderTerminal},
		{http.StatusUnauthorized, core.KindProviderTerminal},
		{http.StatusForbidden, core.KindProviderTerminal},
		{http.StatusNotFound, core.KindProviderTerminal},
	}

	for _, tc := range tests {
		status := tc.status
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}))

		_, err := NewOllama(srv.URL, "nomic-embed-text").Embed(context.Background(), "x")
		require.Error(t, err, "status %d", status)
		assert.Equal(t, tc.kind, core.KindOf(err), "status %d", status)
		srv.Close()
	}
}

func TestNetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	_, err := NewOllama(srv.URL, "nomic-embed-text").Embed(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, core.KindProviderTransient, core.KindOf(err))
	assert.True(t, core.IsRetryable(err))
}

func TestCancelledRequestIsCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewOllama(srv.URL, "nomic-embed-text").Embed(ctx, "x")
	require.Error(t, err)
	assert.Equal(t, core.KindCancelled, core.KindOf(err))
}

func TestDimension_KnownModels(t *testing.T) {
	assert.Equal(t, 768, NewOllama("http://localhost:11434", "nomic-embed-text").Dimension())
	assert.Equal(t, 1536, NewOpenAI("k", "text-embedding-3-small").Dimension())
	assert.Equal(t, 3072, NewOpenAI("k", "text-embedding-3-large").Dimension())
}

func TestDimension_LearnedFromFirstResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: make([]float64, 512)})
	}))
	defer srv.Close()

	p := NewOllama(srv.URL, "some-new-model")
	require.Equal(t, 0, p.Dimension())

	_, err := p.Embed(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 512, p.Dimension())
}

func TestTogether_Identity(t *testing.T) {
	p := NewTogether("key", "intfloat/multilingual-e5-large-instruct")
	assert.Equal(t, "intfloat/multilingual-e5-large-instruct", p.ModelName())
	assert.Equal(t, 1024, p.Dimension())
}

func TestNew_SelectsByConfig(t *testing.T) {
	cfg := config.Default()
	cfg.EmbeddingProvider = config.ProviderOllama
	p, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &Ollama{}, p)

	cfg = config.Default()
	cfg.EmbeddingProvider = config.ProviderOpenAI
	cfg.OpenAIAPIKey = "sk-test"
	p, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, p)

	cfg = config.Default()
	cfg.EmbeddingProvider = config.ProviderTogether
	cfg.TogetherAPIKey = "key"
	p, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &Together{}, p)

	cfg = config.Default()
	cfg.EmbeddingProvider = "bedrock"
	_, err = New(cfg)
	assert.Error(t, err)
}
