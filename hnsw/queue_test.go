package hnsw

import (
	"container/heap"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Some items and their priorities.
var items = []float32{0.4, 9, 0.001, 0.0534, 0.234, 2.03, 2.042, 2.532, 1.0009, 0.329, 0.193, 0.999, 0.020391, 2.0991, 1.203, 10.03, 1.039, 1.0008, 5.029, 0.789}

func TestMaxOrder(t *testing.T) {
	h := &PriorityQueue{Order: true}
	heap.Init(h)

	for k, v := range items {
		heap.Push(h, &PriorityQueueItem{Node: uint32(k), Distance: v}) // nolint gosec
	}

	prev, _ := heap.Pop(h).(*PriorityQueueItem)
	for h.Len() > 0 {
		item, _ := heap.Pop(h).(*PriorityQueueItem)
		assert.LessOrEqual(t, item.Distance, prev.Distance)
		prev = item
	}
}

func TestMinOrder(t *testing.T) {
	h := &PriorityQueue{}
	heap.Init(h)

	for k, v := range items {
		heap.Push(h, &PriorityQueueItem{Node: uint32(k), Distance: v}) // nolint gosec
	}

	prev, _ := heap.Pop(h).(*PriorityQueueItem)
	for h.Len() > 0 {
		item, _ := heap.Pop(h).(*PriorityQueueItem)
		assert.GreaterOrEqual(t, item.Distance, prev.Distance)
		prev = item
	}
}

func TestPopEmpty(t *testing.T) {
	h := &PriorityQueue{}
	assert.Nil(t, h.Pop())
}
