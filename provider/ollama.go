package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/iskng/embed-star/core"
)

// Ollama computes embeddings against a local or remote Ollama server
// using its native embeddings endpoint.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
	dim     *modelDimension
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// NewOllama creates an Ollama provider for the given base URL and
// model.
func NewOllama(baseURL, model string) *Ollama {
	return &Ollama{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  newHTTPClient(),
		dim:     newModelDimension(model),
	}
}

// Embed posts {model, prompt} to /api/embeddings and reads the
// embedding field.
func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	const op = "ollama_embed"

	body, err := postJSON(ctx, o.client, op, o.baseURL+"/api/embeddings", "", ollamaEmbedRequest{
		Model:  o.model,
		Prompt: text,
	})
	if err != nil {
		return nil, err
	}

	var resp ollamaEmbedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, core.E(core.KindProviderTransient, op, err)
	}
	if len(resp.Embedding) == 0 {
		return nil, core.Ef(core.KindProviderTransient, op, "empty embedding returned")
	}

	o.dim.learn(len(resp.Embedding))
	return toFloat32(resp.Embedding), nil
}

// ModelName returns the configured model identifier.
func (o *Ollama) ModelName() string { return o.model }

// Dimension returns the model's vector length, learned from the first
// response for models outside the registry.
func (o *Ollama) Dimension() int { return o.dim.get() }
