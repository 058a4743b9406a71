package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iskng/embed-star/core"
)

func failing() ([]float32, error) {
	return nil, core.E(core.KindProviderTransient, "embed", errors.New("503"))
}

func succeeding() ([]float32, error) {
	return []float32{0.1}, nil
}

func TestExecute_UnconfiguredProviderRunsUnguarded(t *testing.T) {
	m := NewManager(nil, nil)
	vec, err := m.Execute("ollama", succeeding)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1}, vec)
}

func TestBreaker_OpensOnConsecutiveFailures(t *testing.T) {
	m := NewManager(nil, nil)
	m.Configure("ollama", Config{FailureThreshold: 3, Cooldown: time.Minute})

	for i := 0; i < 3; i++ {
		_, err := m.Execute("ollama", failing)
		require.Error(t, err)
		assert.Equal(t, core.KindProviderTransient, core.KindOf(err))
	}

	assert.Equal(t, 1, m.State("ollama"), "breaker should be open")

	// Open circuit fails fast without invoking the call.
	called := false
	_, err := m.Execute("ollama", func() ([]float32, error) {
		called = true
		return succeeding()
	})
	require.Error(t, err)
	assert.Equal(t, core.KindCircuitOpen, core.KindOf(err))
	assert.False(t, called)
}

func TestBreaker_HalfOpenProbeClosesOnSuccess(t *testing.T) {
	m := NewManager(nil, nil)
	m.Configure("ollama", Config{FailureThreshold: 1, Cooldown: 50 * time.Millisecond})

	_, err := m.Execute("ollama", failing)
	require.Error(t, err)
	require.Equal(t, 1, m.State("ollama"))

	// Before the cooldown elapses the circuit must stay open.
	_, err = m.Execute("ollama", succeeding)
	require.Error(t, err)
	require.Equal(t, core.KindCircuitOpen, core.KindOf(err))

	time.Sleep(70 * time.Millisecond)

	vec, err := m.Execute("ollama", succeeding)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1}, vec)
	assert.Equal(t, 0, m.State("ollama"), "probe success closes the circuit")
}

func TestBreaker_HalfOpenProbeFailureReopens(t *testing.T) {
	m := NewManager(nil, nil)
	m.Configure("ollama", Config{FailureThreshold: 1, Cooldown: 50 * time.Millisecond})

	_, err := m.Execute("ollama", failing)
	require.Error(t, err)

	time.Sleep(70 * time.Millisecond)

	_, err = m.Execute("ollama", failing)
	require.Error(t, err)
	assert.Equal(t, 1, m.State("ollama"), "probe failure restarts the cooldown")
}

func TestBreaker_CancellationDoesNotTrip(t *testing.T) {
	m := NewManager(nil, nil)
	m.Configure("ollama", Config{FailureThreshold: 1, Cooldown: time.Minute})

	_, err := m.Execute("ollama", func() ([]float32, error) {
		return nil, core.E(core.KindCancelled, "embed", errors.New("context canceled"))
	})
	require.Error(t, err)
	assert.Equal(t, 0, m.State("ollama"), "cancellation says nothing about provider health")
}
