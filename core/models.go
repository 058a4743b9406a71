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
	"time"

	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// RepoOwner is the owning account of a repository.
type RepoOwner struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// Repo is a GitHub repository record as stored in the repo table.
// Records are created and mutated by an upstream ingestion system;
// this service reads them and writes only the embedding fields.
type Repo struct {
	ID          models.RecordID `json:"id"`
	GithubID    int64           `json:"github_id"`
	Name        string          `json:"name"`
	FullName    string          `json:"full_name"`
	Description *string         `json:"description,omitempty"`
	URL         string          `json:"url"`
	Stars       uint32          `json:"stars"`
	Language    *string         `json:"language,omitempty"`
	Owner       RepoOwner       `json:"owner"`
	IsPrivate   bool            `json:"is_private"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	// Embedding fields, absent until this service writes them.
	Embedding            []float32  `json:"embedding,omitempty"`
	EmbeddingModel       *string    `json:"embedding_model,omitempty"`
	EmbeddingGeneratedAt *time.Time `json:"embedding_generated_at,omitempty"`
}

// WorkItem is the unit flowing through the pipeline: a claimed
// repository plus its canonical text and content fingerprint.
// A work item is owned by exactly one worker until writeback or
// permanent failure.
type WorkItem struct {
	Repo        Repo
	Text        string
	Fingerprint string
}

// NewWorkItem builds a work item from a repository, truncating the
// canonical text to the given byte budget.
func NewWorkItem(repo Repo, tokenLimit int) WorkItem {
	text := TruncateText(repo.EmbeddingText(), tokenLimit)
	return WorkItem{
		Repo:        repo,
		Text:        text,
		Fingerprint: Fingerprint(text),
	}
}

// EmbeddingUpdate is one row of a batched embedding writeback.
type EmbeddingUpdate struct {
	RepoID      models.RecordID
	Embedding   []float32
	Model       string
	GeneratedAt time.Time
}

// BatchUpdateResult reports the outcome of a batched writeback,
// preserving partial success when the transaction fell back to
// individual updates.
type BatchUpdateResult struct {
	Total      int
	Successful int
	Failed     int
	Duration   time.Duration
}
