package docvec

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/grapedb/docvec/rerank"
)

// scoredCandidate is an intermediate ranking entry.
type scoredCandidate struct {
	id    string
	score float32
}

// Search embeds the query text and runs a hybrid search for the topK best
// documents. If the embedding backend is unavailable the query degrades to
// keyword-only scoring instead of failing.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	sw := newStopwatch()

	if topK <= 0 {
		err := fmt.Errorf("%w: got %d", ErrInvalidK, topK)
		s.opts.metricsCollector.RecordSearch(topK, sw.elapsed(), err)
		return nil, err
	}

	vec, degraded, err := s.vectorize(ctx, query)
	if err != nil {
		s.opts.metricsCollector.RecordSearch(topK, sw.elapsed(), err)
		s.opts.logger.LogSearch(ctx, topK, 0, false, err)
		return nil, err
	}

	if degraded {
		results, err := s.keywordSearch(query, topK)
		s.opts.metricsCollector.RecordSearch(topK, sw.elapsed(), err)
		s.opts.logger.LogSearch(ctx, topK, len(results), true, err)
		return results, err
	}

	results, err := s.rank(vec, query, topK)
	s.opts.metricsCollector.RecordSearch(topK, sw.elapsed(), err)
	s.opts.logger.LogSearch(ctx, topK, len(results), false, err)

	return results, err
}

// HybridSearch runs a hybrid search with a caller-supplied query vector,
// bypassing the embedding backend. The vector must have the store dimension;
// the check happens before any state is touched.
func (s *Store) HybridSearch(ctx context.Context, queryVector []float32, queryText string, topK int) ([]SearchResult, error) {
	sw := newStopwatch()

	if len(queryVector) != s.dimension {
		err := &ErrDimensionMismatch{Expected: s.dimension, Actual: len(queryVector)}
		s.opts.metricsCollector.RecordSearch(topK, sw.elapsed(), err)
		return nil, err
	}

	if topK <= 0 {
		err := fmt.Errorf("%w: got %d", ErrInvalidK, topK)
		s.opts.metricsCollector.RecordSearch(topK, sw.elapsed(), err)
		return nil, err
	}

	results, err := s.rank(queryVector, queryText, topK)
	s.opts.metricsCollector.RecordSearch(topK, sw.elapsed(), err)
	s.opts.logger.LogSearch(ctx, topK, len(results), false, err)

	return results, err
}

// rank fetches an over-provisioned candidate head from the vector index,
// blends in the keyword signal, optionally reranks, and truncates to topK.
func (s *Store) rank(queryVector []float32, queryText string, topK int) ([]SearchResult, error) {
	fetch := topK * s.opts.fanout

	candidates, err := s.ann.Search(queryVector, fetch)
	if err != nil {
		return nil, translateError(err)
	}

	if len(candidates) == 0 {
		return []SearchResult{}, nil
	}

	// The lexical signal is normalized into [0, 1) so a fixed-weight blend
	// with the vector similarity stays in [0, 1].
	lexScores := s.lexicalScores(queryText, fetch)
	w := s.opts.lexicalWeight

	blended := make([]scoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		score := (1-w)*c.Similarity + w*lexScores[c.DocumentID]
		blended = append(blended, scoredCandidate{id: c.DocumentID, score: score})
	}

	if s.opts.reranker != nil {
		reranked := s.rerankCandidates(queryText, blended)
		blended = blended[:0]
		for _, c := range reranked {
			blended = append(blended, scoredCandidate{id: c.DocumentID, score: c.Score})
		}
	}

	sort.SliceStable(blended, func(i, j int) bool {
		if blended[i].score != blended[j].score {
			return blended[i].score > blended[j].score
		}
		return blended[i].id < blended[j].id
	})

	if len(blended) > topK {
		blended = blended[:topK]
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]SearchResult, 0, len(blended))
	for _, c := range blended {
		rec, ok := s.records[c.id]
		if !ok {
			// The document was removed between the index search and here.
			continue
		}
		results = append(results, s.resultFromRecord(rec, c.score))
	}

	return results, nil
}

// rerankCandidates runs the configured second-stage reranker over the
// blended head.
func (s *Store) rerankCandidates(queryText string, head []scoredCandidate) []rerank.Candidate {
	in := make([]rerank.Candidate, 0, len(head))

	s.mu.RLock()
	for _, c := range head {
		rec, ok := s.records[c.id]
		if !ok {
			continue
		}
		in = append(in, rerank.Candidate{
			DocumentID: c.id,
			Title:      rec.Title,
			Content:    rec.Content,
			Score:      c.score,
		})
	}
	s.mu.RUnlock()

	return s.opts.reranker.Rerank(queryText, in)
}

// keywordSearch serves a query from the lexical index alone. BM25 scores are
// unbounded, so each is squashed through s/(1+s) to land in [0, 1).
func (s *Store) keywordSearch(query string, topK int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits, err := s.lex.Search(query, topK)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		rec, ok := s.records[hit.DocumentID]
		if !ok {
			continue
		}
		results = append(results, s.resultFromRecord(rec, hit.Score/(1+hit.Score)))
	}

	return results, nil
}

// lexicalScores returns normalized keyword scores keyed by document id.
func (s *Store) lexicalScores(query string, k int) map[string]float32 {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	s.mu.RLock()
	hits, err := s.lex.Search(query, k)
	s.mu.RUnlock()

	if err != nil || len(hits) == 0 {
		return nil
	}

	scores := make(map[string]float32, len(hits))
	for _, hit := range hits {
		scores[hit.DocumentID] = hit.Score / (1 + hit.Score)
	}

	return scores
}

// resultFromRecord builds a search result; the caller holds at least a read
// lock on the record map.
func (s *Store) resultFromRecord(rec *DocumentRecord, score float32) SearchResult {
	return SearchResult{
		DocumentID:      rec.ID,
		Title:           rec.Title,
		ContentSnippet:  snippet(rec.Content, s.opts.snippetLength),
		SimilarityScore: score,
		PackageName:     rec.PackageName,
		DocType:         rec.DocType,
		Metadata:        cloneMetadata(rec.Metadata),
	}
}

// snippet truncates content to at most n bytes, cutting back to the last
// word boundary when one exists.
func snippet(content string, n int) string {
	if n <= 0 || len(content) <= n {
		return content
	}

	cut := content[:n]
	if idx := strings.LastIndexByte(cut, ' '); idx > 0 {
		cut = cut[:idx]
	}

	return cut + "..."
}
