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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"
)

// NeedsEmbedding reports whether a repository requires (re-)embedding
// under the given active model:
//   - the stored embedding is absent, or
//   - the stored embedding was produced by a different model, or
//   - the record was updated after the embedding was generated.
func (r *Repo) NeedsEmbedding(activeModel string) bool {
	if len(r.Embedding) == 0 {
		return true
	}
	if r.EmbeddingModel == nil || *r.EmbeddingModel != activeModel {
		return true
	}
	if r.EmbeddingGeneratedAt == nil {
		return true
	}
	return r.UpdatedAt.After(*r.EmbeddingGeneratedAt)
}

// EmbeddingText builds the canonical text fed to the embedding
// provider. Fields appear in a fixed order, one per line, so that the
// same record always produces the same text.
func (r *Repo) EmbeddingText() string {
	parts := []string{fmt.Sprintf("Repository: %s", r.FullName)}

	if r.Description != nil && *r.Description != "" {
		parts = append(parts, fmt.Sprintf("Description: %s", *r.Description))
	}
	if r.Language != nil && *r.Language != "" {
		parts = append(parts, fmt.Sprintf("Language: %s", *r.Language))
	}

	parts = append(parts, fmt.Sprintf("Stars: %d", r.Stars))
	parts = append(parts, fmt.Sprintf("Owner: %s", r.Owner.Login))

	return strings.Join(parts, "\n")
}

// TruncateText caps text at limit bytes without splitting a UTF-8
// sequence. Text at or under the limit is returned unchanged.
func TruncateText(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// Fingerprint returns the hex SHA-256 of the canonical text. Together
// with the model identifier it forms the embedding cache key.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
