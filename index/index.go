// Package index wraps the HNSW graph with the lifecycle the document store
// needs: batch snapshot builds, staleness tracking, and lazy rebuilds.
//
// The graph supports no incremental delete or insert, so any record-set change
// invalidates it wholesale. The wrapper models this as an explicit three-state
// value (Empty, Stale, Built) behind a reader/writer lock: searches proceed
// under the read lock, and a search observing a non-built index upgrades to
// the write lock and rebuilds exactly once per staleness episode.
package index

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/grapedb/docvec/hnsw"
)

// State describes whether the graph reflects the current record set.
type State uint8

const (
	// StateEmpty means no graph has ever been built.
	StateEmpty State = iota
	// StateStale means writes occurred since the last build.
	StateStale
	// StateBuilt means the graph reflects the last snapshot.
	StateBuilt
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateStale:
		return "stale"
	case StateBuilt:
		return "built"
	default:
		return "unknown"
	}
}

// VectorPoint is the unit stored in the index: a vector and the id of the
// document it projects.
type VectorPoint struct {
	Vector     []float32
	DocumentID string
}

// Candidate is a single search hit, nearest first in result slices.
type Candidate struct {
	DocumentID string
	Distance   float32
	Similarity float32
}

// Snapshotter supplies the current set of vectorized points for a rebuild.
// Implementations must not call back into the index.
type Snapshotter interface {
	VectorSnapshot() []VectorPoint
}

// Similarity converts a distance into the store's similarity score.
//
// The transform 1/(1+distance) is fixed for compatibility: it is monotonically
// decreasing in distance and bounded to (0, 1], but it is not a calibrated
// probability and not a normalized cosine similarity. Consumers depend on its
// specific curve, so it must not be substituted.
func Similarity(distance float32) float32 {
	return 1.0 / (1.0 + distance)
}

// ANN is an approximate-nearest-neighbor index over a snapshot of vector
// points. It is safe for concurrent use.
type ANN struct {
	dimension int
	source    Snapshotter
	optFns    []func(o *hnsw.Options)

	mu     sync.RWMutex
	state  State
	graph  *hnsw.Graph
	docIDs []string // graph-local id -> document id, frozen per build

	rebuilds    atomic.Uint64
	rebuildHook func(time.Duration)
}

// New creates an index for vectors of the given dimension. The source is
// consulted on each rebuild for the current point snapshot.
func New(dimension int, source Snapshotter, optFns ...func(o *hnsw.Options)) *ANN {
	return &ANN{
		dimension: dimension,
		source:    source,
		optFns:    optFns,
		state:     StateEmpty,
	}
}

// OnRebuild registers a callback invoked after each rebuild with its
// duration. Set it before the first search; it is not synchronized.
func (a *ANN) OnRebuild(fn func(time.Duration)) {
	a.rebuildHook = fn
}

// Dimension returns the fixed vector dimension.
func (a *ANN) Dimension() int { return a.dimension }

// State returns the current lifecycle state.
func (a *ANN) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// Len returns the number of points in the built graph (0 when unbuilt).
func (a *ANN) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.docIDs)
}

// Rebuilds returns the number of graph rebuilds performed so far.
func (a *ANN) Rebuilds() uint64 {
	return a.rebuilds.Load()
}

// SizeBytes estimates the memory held by the built graph's vectors.
func (a *ANN) SizeBytes() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return int64(len(a.docIDs)) * int64(a.dimension) * 4
}

// MarkStale flags the graph as out of date. The next search rebuilds it.
func (a *ANN) MarkStale() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateBuilt {
		a.state = StateStale
	}
}

// InsertSnapshot builds a fresh graph from the given points, replacing any
// prior graph. Every vector must have the index dimension.
func (a *ANN) InsertSnapshot(points []VectorPoint) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buildLocked(points)
}

// buildLocked constructs the graph; the caller holds the write lock.
func (a *ANN) buildLocked(points []VectorPoint) error {
	start := time.Now()

	graph := hnsw.New(a.dimension, a.optFns...)
	docIDs := make([]string, 0, len(points))

	for _, p := range points {
		if _, err := graph.Insert(p.Vector); err != nil {
			return err
		}
		docIDs = append(docIDs, p.DocumentID)
	}

	a.graph = graph
	a.docIDs = docIDs
	a.state = StateBuilt
	a.rebuilds.Add(1)

	if a.rebuildHook != nil {
		a.rebuildHook(time.Since(start))
	}

	return nil
}

// Search returns up to k candidates, nearest first. A stale or never-built
// graph is rebuilt synchronously before searching; concurrent searches
// observing staleness rebuild at most once between them.
//
// The dimension check happens before any lock is taken and mutates nothing.
func (a *ANN) Search(query []float32, k int) ([]Candidate, error) {
	if len(query) != a.dimension {
		return nil, &hnsw.ErrDimensionMismatch{Expected: a.dimension, Actual: len(query)}
	}
	if k <= 0 {
		return nil, nil
	}

	a.mu.RLock()
	if a.state == StateBuilt {
		defer a.mu.RUnlock()
		return a.searchLocked(query, k)
	}
	a.mu.RUnlock()

	// Upgrade: rebuild once, re-checking under the write lock since another
	// searcher may have rebuilt between the unlock and here.
	a.mu.Lock()
	if a.state != StateBuilt {
		if err := a.buildLocked(a.source.VectorSnapshot()); err != nil {
			a.mu.Unlock()
			return nil, err
		}
	}
	a.mu.Unlock()

	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.searchLocked(query, k)
}

// searchLocked queries the built graph; the caller holds at least a read lock.
func (a *ANN) searchLocked(query []float32, k int) ([]Candidate, error) {
	if a.graph == nil || a.graph.Len() == 0 {
		return nil, nil
	}

	items, err := a.graph.KNNSearch(query, k, 0)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(items))
	for _, item := range items {
		candidates = append(candidates, Candidate{
			DocumentID: a.docIDs[item.Node],
			Distance:   item.Distance,
			Similarity: Similarity(item.Distance),
		})
	}

	return candidates, nil
}
