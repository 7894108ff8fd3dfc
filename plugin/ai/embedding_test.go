package ai

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeL2(t *testing.T) {
	v := NormalizeL2([]float32{3, 4})
	require.InDelta(t, 0.6, v[0], 1e-6)
	require.InDelta(t, 0.8, v[1], 1e-6)

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	require.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)
}

func TestNormalizeL2ZeroVector(t *testing.T) {
	v := NormalizeL2([]float32{0, 0, 0})
	require.Equal(t, []float32{0, 0, 0}, v)
}

func TestNewEmbeddingServiceRejectsUnknownProvider(t *testing.T) {
	_, err := NewEmbeddingService(&EmbeddingConfig{Provider: "word2vec"})
	require.Error(t, err)
}
