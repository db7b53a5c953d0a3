package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingBackend records every text that reaches the backend.
type countingBackend struct {
	dim  int
	fail error

	mu         sync.Mutex
	embedCalls int
	batchCalls int
	texts      []string
}

func (b *countingBackend) Dimension() int { return b.dim }

func (b *countingBackend) Embed(_ context.Context, text string) ([]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fail != nil {
		return nil, b.fail
	}

	b.embedCalls++
	b.texts = append(b.texts, text)

	return b.vectorFor(text), nil
}

func (b *countingBackend) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.fail != nil {
		return nil, b.fail
	}

	b.batchCalls++
	b.texts = append(b.texts, texts...)

	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vecs[i] = b.vectorFor(text)
	}

	return vecs, nil
}

func (b *countingBackend) vectorFor(text string) []float32 {
	vec := make([]float32, b.dim)
	for i := range vec {
		vec[i] = float32(len(text) + i)
	}
	return vec
}

func (b *countingBackend) seenTexts() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.texts...)
}

func TestVectorizeCachesRepeats(t *testing.T) {
	ctx := context.Background()
	backend := &countingBackend{dim: 4}
	v := NewVectorizer(backend)

	first, err := v.Vectorize(ctx, "hello world")
	require.NoError(t, err)

	second, err := v.Vectorize(ctx, "hello world")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, backend.embedCalls)

	stats := v.CacheStats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestVectorizeTrimsForCacheKey(t *testing.T) {
	ctx := context.Background()
	backend := &countingBackend{dim: 4}
	v := NewVectorizer(backend)

	_, err := v.Vectorize(ctx, "hello")
	require.NoError(t, err)

	_, err = v.Vectorize(ctx, "  hello  ")
	require.NoError(t, err)

	assert.Equal(t, 1, backend.embedCalls)
	assert.Equal(t, uint64(1), v.CacheStats().Hits)
}

func TestVectorizeBatchOrderAndDedupe(t *testing.T) {
	ctx := context.Background()
	backend := &countingBackend{dim: 4}
	v := NewVectorizer(backend)

	texts := []string{"aa", "bbb", "aa", "cccc", "bbb"}

	vecs, err := v.VectorizeBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))

	// Duplicates share one backend input and one result vector.
	assert.ElementsMatch(t, []string{"aa", "bbb", "cccc"}, backend.seenTexts())
	assert.Equal(t, vecs[0], vecs[2])
	assert.Equal(t, vecs[1], vecs[4])

	// Order matches input, not backend order.
	for i, text := range texts {
		assert.Equal(t, backend.vectorFor(text), vecs[i], "slot %d", i)
	}
}

func TestVectorizeBatchServesFromCache(t *testing.T) {
	ctx := context.Background()
	backend := &countingBackend{dim: 4}
	v := NewVectorizer(backend)

	_, err := v.Vectorize(ctx, "warm")
	require.NoError(t, err)

	vecs, err := v.VectorizeBatch(ctx, []string{"warm", "cold"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	// Only the uncached text reaches the backend a second time.
	assert.Equal(t, []string{"warm", "cold"}, backend.seenTexts())
	assert.Equal(t, 1, backend.batchCalls)

	stats := v.CacheStats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, 2, stats.Entries)
}

func TestVectorizeBatchChunking(t *testing.T) {
	ctx := context.Background()
	backend := &countingBackend{dim: 2}
	v := NewVectorizer(backend, func(o *VectorizerOptions) {
		o.BatchSize = 2
		o.Concurrency = 2
	})

	texts := make([]string, 5)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%d", i)
	}

	vecs, err := v.VectorizeBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, vecs, 5)

	assert.Equal(t, 3, backend.batchCalls)
	assert.ElementsMatch(t, texts, backend.seenTexts())
}

func TestVectorizeBatchPropagatesErrors(t *testing.T) {
	ctx := context.Background()

	cause := &UnavailableError{Backend: "test", Kind: FailureNetwork, Err: errors.New("boom")}
	backend := &countingBackend{dim: 4, fail: cause}
	v := NewVectorizer(backend)

	_, err := v.VectorizeBatch(ctx, []string{"a", "b"})
	require.Error(t, err)

	var uerr *UnavailableError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, FailureNetwork, uerr.Kind)

	assert.Equal(t, 0, v.CacheStats().Entries)
}

func TestVectorizeBatchEmptyInput(t *testing.T) {
	ctx := context.Background()
	v := NewVectorizer(&countingBackend{dim: 4})

	vecs, err := v.VectorizeBatch(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestCacheEviction(t *testing.T) {
	ctx := context.Background()
	backend := &countingBackend{dim: 2}
	v := NewVectorizer(backend, func(o *VectorizerOptions) {
		o.CacheCapacity = 2
	})

	for _, text := range []string{"one", "two", "three"} {
		_, err := v.Vectorize(ctx, text)
		require.NoError(t, err)
	}

	stats := v.CacheStats()
	assert.Equal(t, 2, stats.Entries)

	// The oldest entry was evicted and misses again.
	before := backend.embedCalls
	_, err := v.Vectorize(ctx, "one")
	require.NoError(t, err)
	assert.Equal(t, before+1, backend.embedCalls)
}
