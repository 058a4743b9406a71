package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_ClassifiedError(t *testing.T) {
	err := E(KindProviderTransient, "embed", errors.New("503"))
	assert.Equal(t, KindProviderTransient, KindOf(err))
}

func TestKindOf_WrappedError(t *testing.T) {
	inner := E(KindCircuitOpen, "embed", errors.New("open"))
	wrapped := fmt.Errorf("processing a/x: %w", inner)
	assert.Equal(t, KindCircuitOpen, KindOf(wrapped))
}

func TestKindOf_ContextErrors(t *testing.T) {
	assert.Equal(t, KindCancelled, KindOf(context.Canceled))
	assert.Equal(t, KindCancelled, KindOf(fmt.Errorf("op: %w", context.DeadlineExceeded)))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		kind      Kind
		retryable bool
	}{
		{KindProviderTransient, true},
		{KindRateLimitedLocally, true},
		{KindDatabaseQuery, true},
		{KindDatabaseConnectivity, true},
		{KindProviderTerminal, false},
		{KindValidationFailed, false},
		{KindCircuitOpen, false},
		{KindCancelled, false},
		{KindConfiguration, false},
	}
	for _, tc := range tests {
		err := E(tc.kind, "op", errors.New("boom"))
		assert.Equal(t, tc.retryable, IsRetryable(err), "kind %s", tc.kind)
	}
}

func TestIsRetryable_UnclassifiedDefaultsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("connection reset")))
}
