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

// Package engine is the processing core: a discovery loop that finds
// repositories needing embeddings and a pool of parallel workers that
// batch them through the provider pipeline and write results back.
//
// Data flow:
//
//	discovery → bounded queue → N workers → provider
//	(cache / limiter / breaker / retry) → batched writeback
//
// The in-flight set guarantees at-most-one worker per repository
// identifier at any instant. Writebacks replace the embedding fields,
// so an abandoned batch is simply re-detected on the next start.
package engine
