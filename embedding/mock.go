package embedding

import (
	"context"

	"github.com/grapedb/docvec/metric"
)

// Mock is a deterministic, offline Backend for tests and air-gapped setups.
// The vector for a text depends only on its bytes, so equal texts always map
// to equal vectors across processes and runs.
type Mock struct {
	dimension int
}

var _ Backend = (*Mock)(nil)

// NewMock creates a mock backend producing vectors of the given dimension.
func NewMock(dimension int) *Mock {
	return &Mock{dimension: dimension}
}

// Dimension returns the configured vector dimensionality.
func (m *Mock) Dimension() int {
	return m.dimension
}

// Embed returns a deterministic unit vector derived from the text bytes.
func (m *Mock) Embed(_ context.Context, text string) ([]float32, error) {
	var hash uint64
	for _, b := range []byte(text) {
		hash = hash*31 + uint64(b)
	}

	vec := make([]float32, m.dimension)
	for i := range vec {
		vec[i] = float32((hash+uint64(i))%1000) / 1000.0
	}

	metric.Normalize(vec)

	return vec, nil
}

// EmbedBatch returns one deterministic vector per text.
func (m *Mock) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}

	return vecs, nil
}
