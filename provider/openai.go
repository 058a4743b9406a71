package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/iskng/embed-star/core"
)

const openAIBaseURL = "https://api.openai.com"

// OpenAI computes embeddings through the OpenAI embeddings API.
type OpenAI struct {
	baseURL string
	apiKey  string
	model   string
	op      string
	client  *http.Client
	dim     *modelDimension
}

// openAI-shaped wire types, shared with Together which exposes the
// same API surface.
type openAIEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// NewOpenAI creates an OpenAI provider with bearer authentication.
func NewOpenAI(apiKey, model string) *OpenAI {
	return newOpenAICompatible(openAIBaseURL, apiKey, model, "openai_embed")
}

func newOpenAICompatible(baseURL, apiKey, model, op string) *OpenAI {
	return &OpenAI{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		op:      op,
		client:  newHTTPClient(),
		dim:     newModelDimension(model),
	}
}

// Embed posts {model, input} to /v1/embeddings and reads
// data[0].embedding.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	op := o.op

	body, err := postJSON(ctx, o.client, op, o.baseURL+"/v1/embeddings", o.apiKey, openAIEmbedRequest{
		Model: o.model,
		Input: text,
	})
	if err != nil {
		return nil, err
	}

	var resp openAIEmbedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, core.E(core.KindProviderTransient, op, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, core.Ef(core.KindProviderTransient, op, "empty embedding returned")
	}

	o.dim.learn(len(resp.Data[0].Embedding))
	return toFloat32(resp.Data[0].Embedding), nil
}

// ModelName returns the configured model identifier.
func (o *OpenAI) ModelName() string { return o.model }

// Dimension returns the model's vector length, learned from the first
// response for models outside the registry.
func (o *OpenAI) Dimension() int { return o.dim.get() }
