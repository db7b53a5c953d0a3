// Package bm25 provides an in-memory BM25 index with roaring-bitmap
// posting lists.
package bm25

import (
	"math"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/grapedb/docvec/lexical"
)

// Okapi BM25 parameters. k1 saturates term frequency, b controls document
// length normalization.
const (
	k1 = 1.2
	b  = 0.75
)

// termPostings holds the documents containing a term and its per-document
// frequency. The bitmap carries membership; frequencies live beside it.
type termPostings struct {
	docs  *roaring.Bitmap
	freqs map[uint32]int
}

// MemoryIndex is an in-memory BM25 index keyed by document id. It is safe
// for concurrent use.
type MemoryIndex struct {
	mu          sync.RWMutex
	locals      map[string]uint32
	docIDs      map[uint32]string
	nextLocal   uint32
	free        []uint32
	postings    map[string]*termPostings
	docTerms    map[uint32][]string
	docLengths  map[uint32]int
	totalLength int64
}

var _ lexical.Index = (*MemoryIndex)(nil)

// New creates an empty index.
func New() *MemoryIndex {
	return &MemoryIndex{
		locals:     make(map[string]uint32),
		docIDs:     make(map[uint32]string),
		postings:   make(map[string]*termPostings),
		docTerms:   make(map[uint32][]string),
		docLengths: make(map[uint32]int),
	}
}

// Add indexes the text under the document id, replacing any prior text.
func (idx *MemoryIndex) Add(id string, text string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if local, ok := idx.locals[id]; ok {
		idx.removeLocked(id, local)
	}

	local := idx.allocLocal()
	idx.locals[id] = local
	idx.docIDs[local] = id

	tokens := lexical.Tokenize(text)
	idx.docLengths[local] = len(tokens)
	idx.totalLength += int64(len(tokens))

	tf := make(map[string]int)
	for _, t := range tokens {
		tf[t]++
	}

	terms := make([]string, 0, len(tf))
	for term, count := range tf {
		p, ok := idx.postings[term]
		if !ok {
			p = &termPostings{
				docs:  roaring.New(),
				freqs: make(map[uint32]int),
			}
			idx.postings[term] = p
		}

		p.docs.Add(local)
		p.freqs[local] = count
		terms = append(terms, term)
	}
	idx.docTerms[local] = terms

	return nil
}

// Remove drops a document from the index. Removing an unknown id is a no-op.
func (idx *MemoryIndex) Remove(id string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if local, ok := idx.locals[id]; ok {
		idx.removeLocked(id, local)
	}

	return nil
}

func (idx *MemoryIndex) removeLocked(id string, local uint32) {
	for _, term := range idx.docTerms[local] {
		p := idx.postings[term]
		if p == nil {
			continue
		}

		p.docs.Remove(local)
		delete(p.freqs, local)

		if p.docs.IsEmpty() {
			delete(idx.postings, term)
		}
	}

	idx.totalLength -= int64(idx.docLengths[local])

	delete(idx.docTerms, local)
	delete(idx.docLengths, local)
	delete(idx.locals, id)
	delete(idx.docIDs, local)

	idx.free = append(idx.free, local)
}

func (idx *MemoryIndex) allocLocal() uint32 {
	if n := len(idx.free); n > 0 {
		local := idx.free[n-1]
		idx.free = idx.free[:n-1]
		return local
	}

	local := idx.nextLocal
	idx.nextLocal++
	return local
}

// Search scores documents against the query and returns up to k hits, best
// first. Score ties break on document id so results are stable.
func (idx *MemoryIndex) Search(query string, k int) ([]lexical.ScoredDoc, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if k <= 0 || len(idx.locals) == 0 {
		return nil, nil
	}

	tokens := lexical.Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	// Candidate set is the union of the query terms' posting bitmaps.
	candidates := roaring.New()
	for _, t := range tokens {
		if p, ok := idx.postings[t]; ok {
			candidates.Or(p.docs)
		}
	}
	if candidates.IsEmpty() {
		return nil, nil
	}

	avgDL := float64(idx.totalLength) / float64(len(idx.locals))

	scores := make(map[uint32]float64, candidates.GetCardinality())
	for _, t := range tokens {
		p, ok := idx.postings[t]
		if !ok {
			continue
		}

		idf := idx.idf(int(p.docs.GetCardinality()))

		it := p.docs.Iterator()
		for it.HasNext() {
			local := it.Next()

			tf := float64(p.freqs[local])
			docLen := float64(idx.docLengths[local])

			num := tf * (k1 + 1)
			denom := tf + k1*(1-b+b*(docLen/avgDL))
			scores[local] += idf * (num / denom)
		}
	}

	hits := make([]lexical.ScoredDoc, 0, len(scores))
	for local, score := range scores {
		hits = append(hits, lexical.ScoredDoc{
			DocumentID: idx.docIDs[local],
			Score:      float32(score),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].DocumentID < hits[j].DocumentID
	})

	if len(hits) > k {
		hits = hits[:k]
	}

	return hits, nil
}

// idf computes log(1 + (N - n + 0.5) / (n + 0.5)).
func (idx *MemoryIndex) idf(df int) float64 {
	N := float64(len(idx.locals))
	n := float64(df)
	return math.Log(1 + (N-n+0.5)/(n+0.5))
}

// Len returns the number of indexed documents.
func (idx *MemoryIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.locals)
}

// Close releases index resources.
func (idx *MemoryIndex) Close() error {
	return nil
}
