package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iskng/embed-star/core"
)

func TestAcquire_UnconfiguredProviderPassesThrough(t *testing.T) {
	m := NewManager(nil)
	assert.NoError(t, m.Acquire(context.Background(), "ollama"))
}

func TestAllow_ConsumesBurst(t *testing.T) {
	m := NewManager(nil)
	m.Configure("openai", 2)

	assert.True(t, m.Allow("openai"))
	assert.True(t, m.Allow("openai"))
	assert.False(t, m.Allow("openai"), "burst of 2 should be exhausted")
}

func TestAcquire_FailsPastWaitCeiling(t *testing.T) {
	m := NewManager(nil)
	m.Configure("openai", 1)
	m.SetWaitCeiling(20 * time.Millisecond)

	// Drain the single token; refill is 1/60s so the next acquire
	// cannot succeed inside the ceiling.
	require.True(t, m.Allow("openai"))

	err := m.Acquire(context.Background(), "openai")
	require.Error(t, err)
	assert.Equal(t, core.KindRateLimitedLocally, core.KindOf(err))
	assert.True(t, core.IsRetryable(err))
}

func TestAcquire_CancelledContext(t *testing.T) {
	m := NewManager(nil)
	m.Configure("openai", 1)
	m.SetWaitCeiling(time.Second)
	require.True(t, m.Allow("openai"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Acquire(ctx, "openai")
	require.Error(t, err)
	assert.Equal(t, core.KindCancelled, core.KindOf(err))
}

func TestConfigure_ZeroQuotaRemovesLimit(t *testing.T) {
	m := NewManager(nil)
	m.Configure("openai", 1)
	require.True(t, m.Allow("openai"))
	require.False(t, m.Allow("openai"))

	m.Configure("openai", 0)
	assert.True(t, m.Allow("openai"))
}
