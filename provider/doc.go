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

// Package provider abstracts the remote embedding services behind a
// single operation: compute the vector for a text.
//
// Three implementations share the abstraction:
//
//   - Ollama: native /api/embeddings endpoint, local or remote
//   - OpenAI: /v1/embeddings with bearer authentication
//   - Together: the OpenAI surface at api.together.xyz
//
// The concrete provider is selected once at startup from
// configuration; there is no dynamic re-selection.
//
// Failures carry retry classification: network errors, timeouts, 429
// and 5xx responses are transient; any other 4xx is terminal. The
// caller composes providers with the cache, rate limiter, circuit
// breaker and retry executor — providers themselves never retry.
//
// Package provider/mock supplies a deterministic test double.
package provider
