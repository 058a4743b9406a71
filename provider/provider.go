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

package provider

import (
	"context"
	"sync/atomic"

	"github.com/iskng/embed-star/config"
	"github.com/iskng/embed-star/core"
)

// Provider computes an embedding vector for a text. Implementations
// must be safe for concurrent use; the worker pool calls Embed from
// several goroutines at once.
type Provider interface {
	// Embed generates the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// ModelName returns the model identifier the provider embeds with.
	ModelName() string

	// Dimension returns the model's declared vector length, or 0 when
	// the model is unknown and the dimension has not been learned yet.
	Dimension() int
}

// knownDimensions maps model identifiers to their declared vector
// lengths. Models not listed here learn their dimension from the
// first response.
var knownDimensions = map[string]int{
	"nomic-embed-text":                        768,
	"mxbai-embed-large":                       1024,
	"all-minilm":                              384,
	"text-embedding-3-small":                  1536,
	"text-embedding-3-large":                  3072,
	"text-embedding-ada-002":                  1536,
	"togethercomputer/m2-bert-80M-8k-retrieval": 768,
	"intfloat/multilingual-e5-large-instruct": 1024,
	"BAAI/bge-large-en-v1.5":                  1024,
}

// dimensionOf resolves a model's declared dimension, 0 if unknown.
func dimensionOf(model string) int {
	return knownDimensions[model]
}

// modelDimension tracks a model's vector length, fixed for known
// models and learned atomically from the first response otherwise.
type modelDimension struct {
	dim atomic.Int64
}

func newModelDimension(model string) *modelDimension {
	d := &modelDimension{}
	d.dim.Store(int64(dimensionOf(model)))
	return d
}

func (d *modelDimension) get() int {
	return int(d.dim.Load())
}

// learn records the first observed dimension for an unknown model.
func (d *modelDimension) learn(n int) {
	d.dim.CompareAndSwap(0, int64(n))
}

// New selects and builds the configured provider. Dispatch happens
// once at startup; there is no dynamic re-selection.
func New(cfg *config.Config) (Provider, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderOllama:
		return NewOllama(cfg.OllamaURL, cfg.EmbeddingModel), nil
	case config.ProviderOpenAI:
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.EmbeddingModel), nil
	case config.ProviderTogether:
		return NewTogether(cfg.TogetherAPIKey, cfg.EmbeddingModel), nil
	default:
		return nil, core.Ef(core.KindConfiguration, "provider_new",
			"unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}
