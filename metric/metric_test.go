package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSquaredL2(t *testing.T) {
	d, err := SquaredL2([]float32{1, 2, 3}, []float32{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, float32(0), d)

	d, err = SquaredL2([]float32{0, 0}, []float32{3, 4})
	require.NoError(t, err)
	assert.Equal(t, float32(25), d)

	_, err = SquaredL2([]float32{1}, []float32{1, 2})
	assert.ErrorIs(t, err, ErrSizeMismatch)
}

func TestCosineSimilarity(t *testing.T) {
	s, err := CosineSimilarity([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, s, 1e-6)

	s, err = CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, s, 1e-6)

	// Zero vector yields zero similarity, not NaN.
	s, err = CosineSimilarity([]float32{0, 0}, []float32{1, 1})
	require.NoError(t, err)
	assert.Equal(t, float32(0), s)
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	Normalize(v)
	assert.InDelta(t, 1.0, Magnitude(v), 1e-6)

	zero := []float32{0, 0}
	Normalize(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}
