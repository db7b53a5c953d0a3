package embedding

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// CacheObserver receives embedding cache events, for feeding metrics.
type CacheObserver interface {
	CacheHit()
	CacheMiss()
}

// VectorizerOptions configures the caching vectorizer.
type VectorizerOptions struct {
	// Observer receives a callback per cache lookup. Nil disables.
	Observer CacheObserver

	// CacheCapacity is the maximum number of cached embeddings. Zero
	// disables caching.
	CacheCapacity int

	// BatchSize is the number of texts per backend call when filling
	// cache misses.
	BatchSize int

	// Concurrency is the number of parallel backend calls within one
	// VectorizeBatch.
	Concurrency int
}

// DefaultVectorizerOptions contains the default options for the vectorizer.
var DefaultVectorizerOptions = VectorizerOptions{
	CacheCapacity: 10000,
	BatchSize:     64,
	Concurrency:   4,
}

// Vectorizer wraps a Backend with a content-addressed embedding cache and
// batch scheduling. It is safe for concurrent use.
//
// Returned vectors are shared with the cache and must be treated as
// read-only.
type Vectorizer struct {
	backend Backend
	cache   *vectorCache
	opts    VectorizerOptions
}

// NewVectorizer creates a vectorizer over the given backend.
func NewVectorizer(backend Backend, optFns ...func(o *VectorizerOptions)) *Vectorizer {
	opts := DefaultVectorizerOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultVectorizerOptions.BatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	return &Vectorizer{
		backend: backend,
		cache:   newVectorCache(opts.CacheCapacity),
		opts:    opts,
	}
}

// Dimension returns the backend's vector dimensionality.
func (v *Vectorizer) Dimension() int {
	return v.backend.Dimension()
}

// CacheStats returns a snapshot of embedding cache effectiveness.
func (v *Vectorizer) CacheStats() CacheStats {
	return v.cache.stats()
}

// Vectorize returns the embedding for a single text, consulting the cache
// first. Concurrent misses for the same text may each reach the backend; the
// result converges on a single cache entry.
func (v *Vectorizer) Vectorize(ctx context.Context, text string) ([]float32, error) {
	key := keyForText(text)

	if vec, ok := v.cache.get(key); ok {
		v.observeHit()
		return vec, nil
	}
	v.observeMiss()

	vec, err := v.backend.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	v.cache.put(key, vec)

	return vec, nil
}

// VectorizeBatch returns one embedding per text, in input order. Cached
// texts are served locally; the remaining texts are deduplicated, chunked,
// and sent to the backend in parallel. The batch fails as a whole if any
// backend call fails.
func (v *Vectorizer) VectorizeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	result := make([][]float32, len(texts))

	// positions maps each distinct uncached text to every slot it fills.
	positions := make(map[cacheKey][]int)

	var (
		missKeys  []cacheKey
		missTexts []string
	)

	for i, text := range texts {
		key := keyForText(text)

		if vec, ok := v.cache.get(key); ok {
			v.observeHit()
			result[i] = vec
			continue
		}
		v.observeMiss()

		if _, seen := positions[key]; seen {
			positions[key] = append(positions[key], i)
			continue
		}

		positions[key] = []int{i}
		missKeys = append(missKeys, key)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return result, nil
	}

	vecs := make([][]float32, len(missTexts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.opts.Concurrency)

	for start := 0; start < len(missTexts); start += v.opts.BatchSize {
		end := min(start+v.opts.BatchSize, len(missTexts))

		g.Go(func() error {
			out, err := v.backend.EmbedBatch(gctx, missTexts[start:end])
			if err != nil {
				return err
			}

			copy(vecs[start:end], out)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for j, key := range missKeys {
		v.cache.put(key, vecs[j])

		for _, pos := range positions[key] {
			result[pos] = vecs[j]
		}
	}

	return result, nil
}

func (v *Vectorizer) observeHit() {
	if v.opts.Observer != nil {
		v.opts.Observer.CacheHit()
	}
}

func (v *Vectorizer) observeMiss() {
	if v.opts.Observer != nil {
		v.opts.Observer.CacheMiss()
	}
}
