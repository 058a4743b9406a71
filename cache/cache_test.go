package cache

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCounters() (prometheus.Counter, prometheus.Counter) {
	hits := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_hits"})
	misses := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_misses"})
	return hits, misses
}

func TestCache_PutGet(t *testing.T) {
	c := New(10, time.Minute, nil, nil)
	vec := []float32{0.1, 0.2, 0.3}

	c.Put("nomic-embed-text", "fp1", vec)
	got, ok := c.Get("nomic-embed-text", "fp1")
	require.True(t, ok)
	assert.Equal(t, vec, got)
}

func TestCache_MissOnUnknownKey(t *testing.T) {
	c := New(10, time.Minute, nil, nil)
	_, ok := c.Get("nomic-embed-text", "nope")
	assert.False(t, ok)
}

func TestCache_ModelKeysAreIndependent(t *testing.T) {
	c := New(10, time.Minute, nil, nil)
	c.Put("model-a", "fp1", []float32{1})

	_, ok := c.Get("model-b", "fp1")
	assert.False(t, ok, "changing the model must invalidate prior entries")

	_, ok = c.Get("model-a", "fp1")
	assert.True(t, ok)
}

func TestCache_LRUEvictionAtCapacity(t *testing.T) {
	c := New(2, time.Minute, nil, nil)
	c.Put("m", "a", []float32{1})
	c.Put("m", "b", []float32{2})

	// Touch a so b becomes the eviction candidate.
	_, ok := c.Get("m", "a")
	require.True(t, ok)

	c.Put("m", "c", []float32{3})

	_, ok = c.Get("m", "b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get("m", "a")
	assert.True(t, ok)
	_, ok = c.Get("m", "c")
	assert.True(t, ok)
}

func TestCache_TTLExpiry(t *testing.T) {
	c := New(10, 30*time.Millisecond, nil, nil)
	c.Put("m", "a", []float32{1})

	_, ok := c.Get("m", "a")
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	_, ok = c.Get("m", "a")
	assert.False(t, ok, "expired entry must miss")
}

func TestCache_HitMissCounters(t *testing.T) {
	hits, misses := newCounters()
	c := New(10, time.Minute, hits, misses)

	c.Put("m", "a", []float32{1})
	c.Get("m", "a")
	c.Get("m", "a")
	c.Get("m", "missing")

	assert.Equal(t, 2.0, testutil.ToFloat64(hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(misses))
}

func TestCache_Len(t *testing.T) {
	c := New(10, time.Minute, nil, nil)
	assert.Equal(t, 0, c.Len())
	c.Put("m", "a", []float32{1})
	c.Put("m", "b", []float32{2})
	assert.Equal(t, 2, c.Len())
	c.Purge()
	assert.Equal(t, 0, c.Len())
}
