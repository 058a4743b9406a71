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

package core

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure for retry policy and metrics labels.
type Kind string

// Error kinds, ordered roughly from startup to steady state.
const (
	KindConfiguration        Kind = "configuration"
	KindDatabaseConnectivity Kind = "db_connectivity"
	KindDatabaseQuery        Kind = "db_query"
	KindProviderTransient    Kind = "provider_transient"
	KindProviderTerminal     Kind = "provider_terminal"
	KindRateLimitedLocally   Kind = "rate_limited_locally"
	KindCircuitOpen          Kind = "circuit_open"
	KindValidationFailed     Kind = "validation_failed"
	KindCancelled            Kind = "cancelled"
	KindUnknown              Kind = "unknown"
)

// Error wraps a failure with its kind and the operation that produced
// it. It supports errors.Is/As through Unwrap.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Ef builds a classified error from a format string.
func Ef(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the kind from an error chain. Context cancellation
// maps to KindCancelled even when unwrapped from plain errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindUnknown
}

// IsRetryable reports whether the retry executor may re-attempt an
// operation that failed with this error. Unknown errors are treated
// as retryable so that unclassified transport failures self-heal.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindProviderTransient, KindRateLimitedLocally, KindDatabaseQuery, KindDatabaseConnectivity, KindUnknown:
		return true
	default:
		return false
	}
}
