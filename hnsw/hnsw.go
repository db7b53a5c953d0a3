// Package hnsw implements a Hierarchical Navigable Small World graph for
// approximate nearest neighbor search.
//
// The graph is built in batch from a vector snapshot and queried read-only
// afterwards; it supports no deletion. Callers that need mutability rebuild
// the graph from a fresh snapshot.
package hnsw

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/bits-and-blooms/bitset"

	"github.com/grapedb/docvec/metric"
)

// ErrDimensionMismatch indicates a vector/graph dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// DistanceFunc represents a function for calculating the distance between two vectors.
type DistanceFunc func(v1, v2 []float32) (float32, error)

// Node represents a node in the HNSW graph.
type Node struct {
	Connections [][]uint32 // Links to other nodes, per layer
	Vector      []float32
	Layer       int    // Top layer the node exists in
	ID          uint32 // Graph-local identifier, dense from 0
}

// Options represents the options for configuring the graph.
type Options struct {
	// M specifies the number of established connections for every new element
	// during construction. The range M=12-48 is ok for most use cases.
	M int

	// EF specifies the size of the dynamic candidate list during construction
	// and search. Larger EF values improve recall at the cost of search time.
	EF int

	// Heuristic selects the neighbour-selection heuristic over naive closest-M
	// linking. The heuristic gives better graph connectivity on clustered data.
	Heuristic bool

	// DistanceFunc is the distance function used for all comparisons.
	DistanceFunc DistanceFunc

	// Seed seeds layer assignment. Builds with the same seed and insertion
	// order produce identical graphs.
	Seed int64
}

// DefaultOptions is the recommended starting configuration.
var DefaultOptions = Options{
	M:            16,
	EF:           200,
	Heuristic:    true,
	DistanceFunc: metric.SquaredL2,
	Seed:         1,
}

// Graph is a Hierarchical Navigable Small World graph.
type Graph struct {
	dimension int
	mmax      int     // Max number of connections per element/per layer
	mmax0     int     // Max for the 0 layer
	ml        float64 // Normalization factor for level generation
	ep        uint32  // Entry point into the top layer
	maxLevel  int     // Current max level in use

	nodes []*Node
	rng   *rand.Rand
	opts  Options

	mutex sync.Mutex
}

// New creates a new empty graph for vectors of the given dimension.
func New(dimension int, optFns ...func(o *Options)) *Graph {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.M < 2 {
		// M == 1 would make the level normalization factor 1/log(1) blow up.
		opts.M = 2
	}

	return &Graph{
		dimension: dimension,
		mmax:      opts.M,
		mmax0:     2 * opts.M,
		ml:        1 / math.Log(float64(opts.M)),
		nodes:     make([]*Node, 0),
		rng:       rand.New(rand.NewSource(opts.Seed)), // nolint gosec
		opts:      opts,
	}
}

// Dimension returns the vector dimension the graph was created with.
func (g *Graph) Dimension() int { return g.dimension }

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return len(g.nodes)
}

// Insert inserts a new vector into the graph and returns its graph-local id.
func (g *Graph) Insert(v []float32) (uint32, error) {
	if len(v) != g.dimension {
		return 0, &ErrDimensionMismatch{Expected: g.dimension, Actual: len(v)}
	}

	// Copy so later caller mutations don't reach into the graph.
	vectorCopy := make([]float32, len(v))
	copy(vectorCopy, v)

	g.mutex.Lock()
	defer g.mutex.Unlock()

	id := uint32(len(g.nodes))

	layer := g.randomLayer()
	node := &Node{
		ID:          id,
		Vector:      vectorCopy,
		Layer:       layer,
		Connections: make([][]uint32, layer+1),
	}

	// First node becomes the entry point.
	if len(g.nodes) == 0 {
		g.nodes = append(g.nodes, node)
		g.ep = node.ID
		g.maxLevel = node.Layer
		return node.ID, nil
	}

	// Find the shortest path from the top layers above the new node's layer,
	// giving the starting point for the lower-layer searches.
	currObj, currDist, err := g.findShortestPath(node)
	if err != nil {
		return 0, err
	}

	topCandidates := &PriorityQueue{}

	// For all levels at and below the node's layer, find the closest candidates
	// and link them.
	for level := min(node.Layer, g.maxLevel); level >= 0; level-- {
		if err := g.searchLayer(vectorCopy, &PriorityQueueItem{Distance: currDist, Node: currObj.ID}, topCandidates, g.opts.EF, level); err != nil {
			return 0, err
		}

		if g.opts.Heuristic {
			g.selectNeighboursHeuristic(topCandidates, g.opts.M, false)
		} else {
			g.selectNeighboursSimple(topCandidates, g.opts.M)
		}

		node.Connections[level] = make([]uint32, topCandidates.Len())

		for i := topCandidates.Len() - 1; i >= 0; i-- {
			candidate, _ := heap.Pop(topCandidates).(*PriorityQueueItem)
			node.Connections[level][i] = candidate.Node
		}
	}

	g.nodes = append(g.nodes, node)

	// Link the neighbour nodes back to the new node, making it reachable.
	for level := min(node.Layer, g.maxLevel); level >= 0; level-- {
		for _, neighbour := range node.Connections[level] {
			if err := g.link(neighbour, node.ID, level); err != nil {
				return 0, err
			}
		}
	}

	if node.Layer > g.maxLevel {
		g.ep = node.ID
		g.maxLevel = node.Layer
	}

	return node.ID, nil
}

// maxLayer caps layer assignment; -log(U)*ml exceeding this is vanishingly
// rare but would otherwise size per-node state unboundedly.
const maxLayer = 32

func (g *Graph) randomLayer() int {
	u := g.rng.Float64()
	if u == 0 {
		return maxLayer
	}
	layer := int(math.Floor(-math.Log(u) * g.ml))
	if layer > maxLayer {
		layer = maxLayer
	}
	return layer
}

func (g *Graph) findShortestPath(node *Node) (*Node, float32, error) {
	currObj := g.nodes[g.ep]

	currDist, err := g.opts.DistanceFunc(currObj.Vector, node.Vector)
	if err != nil {
		return nil, 0, err
	}

	for level := min(currObj.Layer, g.maxLevel); level > node.Layer; level-- {
		changed := true
		for changed {
			changed = false

			for _, nodeID := range g.connectionsAt(currObj, level) {
				newObj := g.nodes[nodeID]

				newDist, err := g.opts.DistanceFunc(newObj.Vector, node.Vector)
				if err != nil {
					return nil, 0, err
				}

				if newDist < currDist {
					currObj = newObj
					currDist = newDist
					changed = true
				}
			}
		}
	}

	return currObj, currDist, nil
}

// KNNSearch performs a k-nearest neighbor search, returning up to k items
// ordered nearest first.
func (g *Graph) KNNSearch(q []float32, k int, efSearch int) ([]PriorityQueueItem, error) {
	if len(q) != g.dimension {
		return nil, &ErrDimensionMismatch{Expected: g.dimension, Actual: len(q)}
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	if len(g.nodes) == 0 {
		return nil, nil
	}

	if efSearch < k {
		efSearch = k
	}

	currObj := g.nodes[g.ep]

	match, currDist, err := g.findEp(q, currObj)
	if err != nil {
		return nil, err
	}

	ep := currObj.ID
	if match != nil {
		ep = match.ID
	}

	topCandidates := &PriorityQueue{Order: true}
	heap.Init(topCandidates)

	if err := g.searchLayer(q, &PriorityQueueItem{Distance: currDist, Node: ep}, topCandidates, efSearch, 0); err != nil {
		return nil, err
	}

	for topCandidates.Len() > k {
		_ = heap.Pop(topCandidates)
	}

	// Drain the max-heap backwards for a nearest-first ordering.
	out := make([]PriorityQueueItem, topCandidates.Len())
	for i := topCandidates.Len() - 1; i >= 0; i-- {
		item, _ := heap.Pop(topCandidates).(*PriorityQueueItem)
		out[i] = *item
	}

	return out, nil
}

// BruteSearch performs an exact search over all nodes, nearest first.
func (g *Graph) BruteSearch(query []float32, k int) ([]PriorityQueueItem, error) {
	if len(query) != g.dimension {
		return nil, &ErrDimensionMismatch{Expected: g.dimension, Actual: len(query)}
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	topCandidates := &PriorityQueue{Order: true}
	heap.Init(topCandidates)

	for _, node := range g.nodes {
		nodeDist, err := g.opts.DistanceFunc(query, node.Vector)
		if err != nil {
			return nil, err
		}

		if topCandidates.Len() < k {
			heap.Push(topCandidates, &PriorityQueueItem{Node: node.ID, Distance: nodeDist})
			continue
		}

		largest, _ := topCandidates.Top().(*PriorityQueueItem)
		if nodeDist < largest.Distance {
			heap.Pop(topCandidates)
			heap.Push(topCandidates, &PriorityQueueItem{Node: node.ID, Distance: nodeDist})
		}
	}

	out := make([]PriorityQueueItem, topCandidates.Len())
	for i := topCandidates.Len() - 1; i >= 0; i-- {
		item, _ := heap.Pop(topCandidates).(*PriorityQueueItem)
		out[i] = *item
	}

	return out, nil
}

// link adds a link between two nodes at the given level, pruning back to the
// per-level connection budget when exceeded.
func (g *Graph) link(first, second uint32, level int) error {
	maxConnections := g.mmax
	// The bottom layer allows double the connections.
	if level == 0 {
		maxConnections = g.mmax0
	}

	node := g.nodes[first]
	if level >= len(node.Connections) {
		grown := make([][]uint32, level+1)
		copy(grown, node.Connections)
		node.Connections = grown
	}
	node.Connections[level] = append(node.Connections[level], second)

	if len(node.Connections[level]) <= maxConnections {
		return nil
	}

	topCandidates := &PriorityQueue{}
	heap.Init(topCandidates)

	for _, id := range node.Connections[level] {
		distance, err := g.opts.DistanceFunc(node.Vector, g.nodes[id].Vector)
		if err != nil {
			return err
		}
		heap.Push(topCandidates, &PriorityQueueItem{Node: id, Distance: distance})
	}

	if g.opts.Heuristic {
		g.selectNeighboursHeuristic(topCandidates, maxConnections, true)
	} else {
		g.selectNeighboursSimple(topCandidates, maxConnections)
	}

	// Reorder the connected nodes best-first.
	node.Connections[level] = make([]uint32, topCandidates.Len())
	for i := topCandidates.Len() - 1; i >= 0; i-- {
		item, _ := heap.Pop(topCandidates).(*PriorityQueueItem)
		node.Connections[level][i] = item.Node
	}

	return nil
}

// searchLayer performs a search in a single layer of the graph.
func (g *Graph) searchLayer(q []float32, ep *PriorityQueueItem, topCandidates *PriorityQueue, ef, level int) error {
	var visited bitset.BitSet
	visited.Set(uint(ep.Node))

	candidates := &PriorityQueue{}
	heap.Init(candidates)
	heap.Push(candidates, ep)

	topCandidates.Order = true // max-heap over current best
	topCandidates.Items = topCandidates.Items[:0]
	heap.Init(topCandidates)
	heap.Push(topCandidates, &PriorityQueueItem{Distance: ep.Distance, Node: ep.Node})

	for candidates.Len() > 0 {
		lowerBound := topCandidates.Top().(*PriorityQueueItem).Distance

		candidate, _ := heap.Pop(candidates).(*PriorityQueueItem)
		if candidate.Distance > lowerBound {
			break
		}

		node := g.nodes[candidate.Node]

		for _, n := range g.connectionsAt(node, level) {
			if visited.Test(uint(n)) {
				continue
			}
			visited.Set(uint(n))

			distance, err := g.opts.DistanceFunc(q, g.nodes[n].Vector)
			if err != nil {
				return err
			}

			topDistance := topCandidates.Top().(*PriorityQueueItem).Distance

			item := &PriorityQueueItem{Distance: distance, Node: n}

			if topCandidates.Len() < ef {
				heap.Push(topCandidates, item)
				heap.Push(candidates, &PriorityQueueItem{Distance: distance, Node: n})
			} else if topDistance > distance {
				heap.Pop(topCandidates)
				heap.Push(topCandidates, item)
				heap.Push(candidates, &PriorityQueueItem{Distance: distance, Node: n})
			}
		}
	}

	return nil
}

func (g *Graph) connectionsAt(node *Node, level int) []uint32 {
	if level >= len(node.Connections) {
		return nil
	}
	return node.Connections[level]
}

// selectNeighboursSimple keeps the M nearest neighbours.
func (g *Graph) selectNeighboursSimple(topCandidates *PriorityQueue, m int) {
	for topCandidates.Len() > m {
		_ = heap.Pop(topCandidates)
	}
}

// selectNeighboursHeuristic selects neighbours preferring candidates that are
// closer to the query than to any already-selected neighbour, improving graph
// navigability over naive closest-M selection.
func (g *Graph) selectNeighboursHeuristic(topCandidates *PriorityQueue, m int, order bool) {
	if topCandidates.Len() < m {
		return
	}

	newCandidates := &PriorityQueue{}

	tmpCandidates := &PriorityQueue{Order: order}
	heap.Init(tmpCandidates)

	items := make([]*PriorityQueueItem, 0, m)

	if !order {
		newCandidates.Order = order
		heap.Init(newCandidates)

		for topCandidates.Len() > 0 {
			item, _ := heap.Pop(topCandidates).(*PriorityQueueItem)
			heap.Push(newCandidates, item)
		}
	} else {
		newCandidates = topCandidates
	}

	for newCandidates.Len() > 0 {
		if len(items) >= m {
			break
		}

		item, _ := heap.Pop(newCandidates).(*PriorityQueueItem)
		hit := true

		for _, v := range items {
			distance, _ := g.opts.DistanceFunc(g.nodes[v.Node].Vector, g.nodes[item.Node].Vector)
			if distance < item.Distance {
				hit = false
				break
			}
		}

		if hit {
			items = append(items, item)
		} else {
			heap.Push(tmpCandidates, item)
		}
	}

	// Backfill from the rejected pool if selection fell short.
	for len(items) < m && tmpCandidates.Len() > 0 {
		item, _ := heap.Pop(tmpCandidates).(*PriorityQueueItem)
		items = append(items, item)
	}

	for _, item := range items {
		heap.Push(topCandidates, item)
	}
}

// findEp descends from the top layer to layer 1, greedily following the
// closest connection, and returns the best entry point for the layer-0 search.
func (g *Graph) findEp(q []float32, currObj *Node) (*Node, float32, error) {
	currDist, err := g.opts.DistanceFunc(q, currObj.Vector)
	if err != nil {
		return nil, 0, err
	}

	var match *Node

	for level := g.maxLevel; level > 0; level-- {
		scan := true

		for scan {
			scan = false

			for _, nodeID := range g.connectionsAt(currObj, level) {
				nodeDist, err := g.opts.DistanceFunc(g.nodes[nodeID].Vector, q)
				if err != nil {
					return nil, 0, err
				}

				if nodeDist < currDist {
					match = g.nodes[nodeID]
					currObj = g.nodes[nodeID]
					currDist = nodeDist
					scan = true
				}
			}
		}
	}

	return match, currDist, nil
}
