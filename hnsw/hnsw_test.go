package hnsw

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomVectors(t *testing.T, num, dim int) [][]float32 {
	t.Helper()

	rng := rand.New(rand.NewSource(42)) // nolint gosec
	vectors := make([][]float32, num)
	for i := range vectors {
		vectors[i] = make([]float32, dim)
		for j := range vectors[i] {
			vectors[i][j] = rng.Float32()
		}
	}
	return vectors
}

func TestInsertAndSearch(t *testing.T) {
	const dim = 16

	g := New(dim)
	vectors := randomVectors(t, 200, dim)

	for _, v := range vectors {
		_, err := g.Insert(v)
		require.NoError(t, err)
	}

	require.Equal(t, 200, g.Len())

	// Searching with an indexed vector must return that vector first with
	// distance zero.
	results, err := g.KNNSearch(vectors[17], 5, 0)
	require.NoError(t, err)
	require.Len(t, results, 5)
	assert.Equal(t, uint32(17), results[0].Node)
	assert.Equal(t, float32(0), results[0].Distance)

	// Nearest-first ordering.
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i].Distance, results[i-1].Distance)
	}
}

func TestRecallAgainstBruteForce(t *testing.T) {
	const (
		dim = 8
		k   = 10
	)

	g := New(dim)
	vectors := randomVectors(t, 500, dim)
	for _, v := range vectors {
		_, err := g.Insert(v)
		require.NoError(t, err)
	}

	queries := randomVectors(t, 20, dim)

	var hits, total int
	for _, q := range queries {
		exact, err := g.BruteSearch(q, k)
		require.NoError(t, err)

		approx, err := g.KNNSearch(q, k, 200)
		require.NoError(t, err)

		exactSet := make(map[uint32]struct{}, len(exact))
		for _, item := range exact {
			exactSet[item.Node] = struct{}{}
		}
		for _, item := range approx {
			if _, ok := exactSet[item.Node]; ok {
				hits++
			}
		}
		total += len(exact)
	}

	recall := float64(hits) / float64(total)
	assert.Greater(t, recall, 0.85, "recall %f too low", recall)
}

func TestDimensionMismatch(t *testing.T) {
	g := New(4)

	_, err := g.Insert([]float32{1, 2, 3})
	var dm *ErrDimensionMismatch
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 4, dm.Expected)
	assert.Equal(t, 3, dm.Actual)

	_, err = g.KNNSearch([]float32{1, 2}, 1, 0)
	require.ErrorAs(t, err, &dm)
}

func TestEmptyGraphSearch(t *testing.T) {
	g := New(4)

	results, err := g.KNNSearch([]float32{1, 2, 3, 4}, 3, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSingleNode(t *testing.T) {
	g := New(2)

	id, err := g.Insert([]float32{1, 1})
	require.NoError(t, err)

	results, err := g.KNNSearch([]float32{1, 1}, 3, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].Node)
}

func TestDeterministicBuild(t *testing.T) {
	const dim = 8

	vectors := randomVectors(t, 100, dim)

	build := func() []PriorityQueueItem {
		g := New(dim)
		for _, v := range vectors {
			_, err := g.Insert(v)
			require.NoError(t, err)
		}
		results, err := g.KNNSearch(vectors[3], 10, 0)
		require.NoError(t, err)
		return results
	}

	assert.Equal(t, build(), build())
}
