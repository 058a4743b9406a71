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

package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
)

// EmbeddingCache is a bounded LRU cache with per-entry TTL mapping
// (model, fingerprint) to an embedding vector. Keying on the model
// means switching models invalidates every prior entry without an
// explicit flush.
//
// The cache is safe for concurrent use; expired entries miss on
// lookup and are evicted in the background.
type EmbeddingCache struct {
	lru    *expirable.LRU[string, []float32]
	hits   prometheus.Counter
	misses prometheus.Counter
}

// New creates a cache holding at most size entries for at most ttl.
// The hit and miss counters may be nil (tests).
func New(size int, ttl time.Duration, hits, misses prometheus.Counter) *EmbeddingCache {
	return &EmbeddingCache{
		lru:    expirable.NewLRU[string, []float32](size, nil, ttl),
		hits:   hits,
		misses: misses,
	}
}

// Key builds the cache key for a model and content fingerprint.
func Key(model, fingerprint string) string {
	return model + ":" + fingerprint
}

// Get returns the cached vector for (model, fingerprint), refreshing
// its LRU position. Expired entries count as misses.
func (c *EmbeddingCache) Get(model, fingerprint string) ([]float32, bool) {
	vec, ok := c.lru.Get(Key(model, fingerprint))
	if ok {
		if c.hits != nil {
			c.hits.Inc()
		}
		return vec, true
	}
	if c.misses != nil {
		c.misses.Inc()
	}
	return nil, false
}

// Put stores a validated vector, evicting the LRU entry at capacity.
func (c *EmbeddingCache) Put(model, fingerprint string, embedding []float32) {
	c.lru.Add(Key(model, fingerprint), embedding)
}

// Len returns the current number of live entries.
func (c *EmbeddingCache) Len() int {
	return c.lru.Len()
}

// Purge removes every entry.
func (c *EmbeddingCache) Purge() {
	c.lru.Purge()
}
