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
	"math"
)

// ValidatorConfig bounds the sanity checks applied to embedding
// vectors before they are cached or written back.
type ValidatorConfig struct {
	// ExpectedDimension rejects vectors of any other length.
	// Zero disables the dimension check (unknown model).
	ExpectedDimension int

	// MinNonZeroRatio rejects vectors that are mostly zeros.
	MinNonZeroRatio float32

	// MinMagnitude and MaxMagnitude bound the L2 norm.
	MinMagnitude float32
	MaxMagnitude float32
}

// DefaultValidatorConfig returns the documented sanity bounds: at
// least 10% non-zero entries and an L2 norm within [0.1, 100.0].
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MinNonZeroRatio: 0.1,
		MinMagnitude:    0.1,
		MaxMagnitude:    100.0,
	}
}

// EmbeddingValidator checks vectors returned by providers. A failed
// validation is terminal for the work item.
type EmbeddingValidator struct {
	cfg ValidatorConfig
}

// NewEmbeddingValidator creates a validator with the given bounds.
func NewEmbeddingValidator(cfg ValidatorConfig) *EmbeddingValidator {
	return &EmbeddingValidator{cfg: cfg}
}

// Validate checks an embedding vector. The source string names the
// repository for error context.
//
// Checks, in order:
//   - vector is non-empty
//   - length equals the expected dimension, when one is known
//   - no NaN or infinite values
//   - at least MinNonZeroRatio of entries are non-zero
//   - L2 magnitude within [MinMagnitude, MaxMagnitude]
func (v *EmbeddingValidator) Validate(embedding []float32, source string) error {
	const op = "validate_embedding"

	if len(embedding) == 0 {
		return Ef(KindValidationFailed, op, "%s: embedding is empty", source)
	}

	if v.cfg.ExpectedDimension > 0 && len(embedding) != v.cfg.ExpectedDimension {
		return Ef(KindValidationFailed, op,
			"%s: dimension %d does not match expected %d",
			source, len(embedding), v.cfg.ExpectedDimension)
	}

	nonZero := 0
	var sumSquares float64
	for i, val := range embedding {
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Ef(KindValidationFailed, op,
				"%s: non-finite value at index %d", source, i)
		}
		if val != 0 {
			nonZero++
		}
		sumSquares += f * f
	}

	ratio := float32(nonZero) / float32(len(embedding))
	if ratio < v.cfg.MinNonZeroRatio {
		return Ef(KindValidationFailed, op,
			"%s: only %.1f%% of values are non-zero (minimum %.1f%%)",
			source, ratio*100, v.cfg.MinNonZeroRatio*100)
	}

	magnitude := float32(math.Sqrt(sumSquares))
	if magnitude < v.cfg.MinMagnitude {
		return Ef(KindValidationFailed, op,
			"%s: magnitude %.4f is below minimum %.2f", source, magnitude, v.cfg.MinMagnitude)
	}
	if magnitude > v.cfg.MaxMagnitude {
		return Ef(KindValidationFailed, op,
			"%s: magnitude %.2f exceeds maximum %.2f", source, magnitude, v.cfg.MaxMagnitude)
	}

	return nil
}
