package rerank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRerankPromotesOverlap(t *testing.T) {
	r := NewTokenOverlap()

	candidates := []Candidate{
		{DocumentID: "a", Title: "unrelated", Content: "nothing in common", Score: 0.6},
		{DocumentID: "b", Title: "rust memory safety", Content: "ownership and borrowing", Score: 0.55},
	}

	out := r.Rerank("rust memory safety", candidates)
	require.Len(t, out, 2)

	assert.Equal(t, "b", out[0].DocumentID)
	assert.Greater(t, out[0].Score, out[1].Score)
}

func TestRerankPreservesCandidateSet(t *testing.T) {
	r := NewTokenOverlap()

	candidates := []Candidate{
		{DocumentID: "a", Content: "alpha", Score: 0.9},
		{DocumentID: "b", Content: "beta", Score: 0.8},
		{DocumentID: "c", Content: "gamma", Score: 0.7},
	}

	out := r.Rerank("beta", candidates)
	require.Len(t, out, len(candidates))

	ids := make(map[string]bool)
	for _, c := range out {
		ids[c.DocumentID] = true
	}
	assert.Len(t, ids, 3)

	// The input slice is not mutated.
	assert.Equal(t, float32(0.9), candidates[0].Score)
}

func TestRerankEmptyQueryIsIdentity(t *testing.T) {
	r := NewTokenOverlap()

	candidates := []Candidate{
		{DocumentID: "a", Score: 0.4},
		{DocumentID: "b", Score: 0.9},
	}

	out := r.Rerank("   ", candidates)
	assert.Equal(t, candidates, out)
}

func TestRerankEmptyCandidates(t *testing.T) {
	r := NewTokenOverlap()
	assert.Empty(t, r.Rerank("query", nil))
}

func TestTitleBoost(t *testing.T) {
	r := NewTokenOverlap()

	candidates := []Candidate{
		{DocumentID: "body", Content: "concurrency patterns", Score: 0.5},
		{DocumentID: "title", Title: "concurrency patterns", Score: 0.5},
	}

	out := r.Rerank("concurrency", candidates)
	require.Len(t, out, 2)

	assert.Equal(t, "title", out[0].DocumentID)
}

func TestStableOnEqualScores(t *testing.T) {
	r := NewTokenOverlap()

	candidates := []Candidate{
		{DocumentID: "first", Content: "same text", Score: 0.5},
		{DocumentID: "second", Content: "same text", Score: 0.5},
	}

	out := r.Rerank("same", candidates)
	require.Len(t, out, 2)
	assert.Equal(t, "first", out[0].DocumentID)
	assert.Equal(t, "second", out[1].DocumentID)
}
