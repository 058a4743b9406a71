package provider

import (
	"context"
)

const togetherBaseURL = "https://api.together.xyz"

// Together computes embeddings through the Together AI API, which
// exposes the OpenAI embeddings surface at its own host.
type Together struct {
	inner *OpenAI
}

// NewTogether creates a Together provider with bearer authentication.
func NewTogether(apiKey, model string) *Together {
	return &Together{inner: newOpenAICompatible(togetherBaseURL, apiKey, model, "together_embed")}
}

// Embed posts the OpenAI-shaped request to Together's /v1/embeddings.
func (t *Together) Embed(ctx context.Context, text string) ([]float32, error) {
	return t.inner.Embed(ctx, text)
}

// ModelName returns the configured model identifier.
func (t *Together) ModelName() string { return t.inner.ModelName() }

// Dimension returns the model's vector length.
func (t *Together) Dimension() int { return t.inner.Dimension() }
