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

// Package mock provides a test double for the embedding provider so
// the engine can be exercised without external services.
package mock

import (
	"context"
	"hash/fnv"
	"sync/atomic"
)

// Provider is a deterministic test double implementing
// provider.Provider. Behavior can be overridden via EmbedFunc.
type Provider struct {
	// EmbedFunc is called by Embed when set.
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)

	// Model and Dim configure the reported identity. Dim also sizes
	// the default deterministic vectors.
	Model string
	Dim   int

	calls atomic.Int64
}

// NewProvider creates a mock with a 768-dimension deterministic
// embedding for any text.
func NewProvider() *Provider {
	return &Provider{Model: "mock-embed", Dim: 768}
}

// Embed returns a deterministic vector derived from the text hash, or
// delegates to EmbedFunc when set. Every call is counted either way.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.calls.Add(1)
	if p.EmbedFunc != nil {
		return p.EmbedFunc(ctx, text)
	}
	return DeterministicVector(text, p.Dim), nil
}

// ModelName returns the configured model identifier.
func (p *Provider) ModelName() string { return p.Model }

// Dimension returns the configured vector length.
func (p *Provider) Dimension() int { return p.Dim }

// CallCount returns how many times Embed was invoked.
func (p *Provider) CallCount() int {
	return int(p.calls.Load())
}

// DeterministicVector builds a repeatable pseudo-random vector from a
// text so identical inputs embed identically, like a real model.
func DeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := range vector {
		seed = seed*1664525 + 1013904223
		vector[i] = float32(seed%2000)/1000.0 - 1.0
	}
	return vector
}
