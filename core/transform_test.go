package core

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

func strPtr(s string) *string { return &s }

func testRepo() Repo {
	return Repo{
		ID:          models.NewRecordID("repo", "one"),
		FullName:    "iskng/embed-star",
		Description: strPtr("Embedding worker for starred repos"),
		Language:    strPtr("Go"),
		Stars:       42,
		Owner:       RepoOwner{Login: "iskng"},
		UpdatedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNeedsEmbedding_NoEmbedding(t *testing.T) {
	repo := testRepo()
	assert.True(t, repo.NeedsEmbedding("nomic-embed-text"))
}

func TestNeedsEmbedding_ModelMismatch(t *testing.T) {
	repo := testRepo()
	generated := repo.UpdatedAt.Add(time.Hour)
	repo.Embedding = []float32{0.1, 0.2}
	repo.EmbeddingModel = strPtr("all-minilm")
	repo.EmbeddingGeneratedAt = &generated

	assert.True(t, repo.NeedsEmbedding("nomic-embed-text"),
		"model mismatch alone forces re-embedding")
}

func TestNeedsEmbedding_StaleTimestamp(t *testing.T) {
	repo := testRepo()
	generated := repo.UpdatedAt.Add(-time.Hour)
	repo.Embedding = []float32{0.1, 0.2}
	repo.EmbeddingModel = strPtr("nomic-embed-text")
	repo.EmbeddingGeneratedAt = &generated

	assert.True(t, repo.NeedsEmbedding("nomic-embed-text"))
}

func TestNeedsEmbedding_UpToDate(t *testing.T) {
	repo := testRepo()
	generated := repo.UpdatedAt.Add(time.Minute)
	repo.Embedding = []float32{0.1, 0.2}
	repo.EmbeddingModel = strPtr("nomic-embed-text")
	repo.EmbeddingGeneratedAt = &generated

	assert.False(t, repo.NeedsEmbedding("nomic-embed-text"))
}

func TestNeedsEmbedding_MissingGeneratedAt(t *testing.T) {
	repo := testRepo()
	repo.Embedding = []float32{0.1, 0.2}
	repo.EmbeddingModel = strPtr("nomic-embed-text")

	assert.True(t, repo.NeedsEmbedding("nomic-embed-text"))
}

func TestEmbeddingText_AllFields(t *testing.T) {
	repo := testRepo()
	text := repo.EmbeddingText()

	expected := "Repository: iskng/embed-star\n" +
		"Description: Embedding worker for starred repos\n" +
		"Language: Go\n" +
		"Stars: 42\n" +
		"Owner: iskng"
	assert.Equal(t, expected, text)
}

func TestEmbeddingText_OptionalFieldsOmitted(t *testing.T) {
	repo := testRepo()
	repo.Description = nil
	repo.Language = nil
	text := repo.EmbeddingText()

	assert.NotContains(t, text, "Description:")
	assert.NotContains(t, text, "Language:")
	assert.Contains(t, text, "Repository: iskng/embed-star")
	assert.Contains(t, text, "Stars: 42")
	assert.Contains(t, text, "Owner: iskng")
}

func TestTruncateText_AtLimitUnchanged(t *testing.T) {
	text := strings.Repeat("a", 100)
	assert.Equal(t, text, TruncateText(text, 100))
}

func TestTruncateText_OverLimitTruncated(t *testing.T) {
	text := strings.Repeat("a", 101)
	out := TruncateText(text, 100)
	assert.Len(t, out, 100)
}

func TestTruncateText_UTF8Boundary(t *testing.T) {
	// é is two bytes; a cut in the middle must back off.
	text := "aé" // 3 bytes
	out := TruncateText(text, 2)
	assert.Equal(t, "a", out)
	assert.True(t, strings.HasPrefix(text, out))
}

func TestTruncateText_MultibyteRunLength(t *testing.T) {
	text := strings.Repeat("日", 10) // 30 bytes
	out := TruncateText(text, 10)
	assert.LessOrEqual(t, len(out), 10)
	assert.Equal(t, strings.Repeat("日", 3), out)
}

func TestFingerprint_StableAndDistinct(t *testing.T) {
	a := Fingerprint("hello")
	b := Fingerprint("hello")
	c := Fingerprint("world")

	require.Equal(t, a, b, "same text must produce the same fingerprint")
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64, "hex sha-256")
}

func TestNewWorkItem_TruncatesAndFingerprints(t *testing.T) {
	repo := testRepo()
	long := strings.Repeat("x", 9000)
	repo.Description = &long

	item := NewWorkItem(repo, 8000)
	assert.LessOrEqual(t, len(item.Text), 8000)
	assert.Equal(t, Fingerprint(item.Text), item.Fingerprint)
	assert.Equal(t, repo.ID, item.Repo.ID)
}
