// Package rerank provides second-stage scoring over a short candidate list.
// Rerankers are pure: they reorder the candidates they are given, perform no
// I/O, and never touch store state, so they stay cheap enough to run on the
// head of every query.
package rerank

import (
	"sort"

	"github.com/grapedb/docvec/lexical"
)

// Candidate is one first-stage hit handed to a reranker.
type Candidate struct {
	DocumentID string
	Title      string
	Content    string
	Score      float32
}

// Reranker reorders candidates by a refined relevance estimate. The returned
// slice contains the same candidates, best first, with updated scores.
type Reranker interface {
	Rerank(query string, candidates []Candidate) []Candidate
}

// TokenOverlapOptions configures the token-overlap reranker.
type TokenOverlapOptions struct {
	// OverlapWeight is the share of the final score taken from query-term
	// overlap; the remainder keeps the first-stage score.
	OverlapWeight float32

	// TitleBoost multiplies overlap found in the title, which is usually a
	// stronger relevance signal than body matches.
	TitleBoost float32
}

// DefaultTokenOverlapOptions contains the default reranker options.
var DefaultTokenOverlapOptions = TokenOverlapOptions{
	OverlapWeight: 0.3,
	TitleBoost:    2.0,
}

// TokenOverlap scores candidates by the fraction of query tokens found in
// their title or content, blended with the first-stage score.
type TokenOverlap struct {
	opts TokenOverlapOptions
}

var _ Reranker = (*TokenOverlap)(nil)

// NewTokenOverlap creates a token-overlap reranker.
func NewTokenOverlap(optFns ...func(o *TokenOverlapOptions)) *TokenOverlap {
	opts := DefaultTokenOverlapOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	return &TokenOverlap{opts: opts}
}

// Rerank blends first-stage scores with query-term overlap and sorts the
// result best first. An empty or token-free query returns the candidates
// unchanged.
func (r *TokenOverlap) Rerank(query string, candidates []Candidate) []Candidate {
	tokens := tokenize(query)
	if len(tokens) == 0 || len(candidates) == 0 {
		return candidates
	}

	out := make([]Candidate, len(candidates))
	copy(out, candidates)

	w := r.opts.OverlapWeight

	for i := range out {
		overlap := r.overlapScore(tokens, out[i].Title, out[i].Content)
		out[i].Score = (1-w)*out[i].Score + w*overlap
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	return out
}

// overlapScore returns the weighted fraction of query tokens present in the
// candidate, clamped to [0, 1].
func (r *TokenOverlap) overlapScore(tokens []string, title, content string) float32 {
	titleTokens := tokenSet(title)
	contentTokens := tokenSet(content)

	var score float32
	for _, tok := range tokens {
		if _, ok := titleTokens[tok]; ok {
			score += r.opts.TitleBoost
			continue
		}
		if _, ok := contentTokens[tok]; ok {
			score++
		}
	}

	score /= float32(len(tokens)) * r.opts.TitleBoost
	if score > 1 {
		score = 1
	}

	return score
}

func tokenize(text string) []string {
	return lexical.Tokenize(text)
}

func tokenSet(text string) map[string]struct{} {
	tokens := lexical.Tokenize(text)

	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}

	return set
}
