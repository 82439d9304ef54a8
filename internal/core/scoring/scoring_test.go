package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

func TestSimilarity(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	c := []float32{2, 0}

	assert.InDelta(t, 0, Cosine(a, b), 1e-9)
	assert.InDelta(t, 1, Cosine(a, c), 1e-9)
	assert.InDelta(t, 2, Dot(a, c), 1e-9)
	assert.InDelta(t, -math.Sqrt2, NegL2(a, b), 1e-9)
	assert.Equal(t, 0.0, Cosine(a, []float32{0, 0}))

	assert.Equal(t, Dot(a, c), Similarity(domain.MetricInnerProduct, a, c))
	assert.Equal(t, NegL2(a, c), Similarity(domain.MetricEuclidean, a, c))
	assert.Equal(t, Cosine(a, c), Similarity(domain.MetricCosine, a, c))
}

func TestRelevance(t *testing.T) {
	assert.InDelta(t, 1, Relevance(domain.MetricCosine, 1), 1e-9)
	assert.InDelta(t, 0.5, Relevance(domain.MetricCosine, 0), 1e-9)
	assert.InDelta(t, 0, Relevance(domain.MetricInnerProduct, -3), 1e-9)
	assert.InDelta(t, 1, Relevance(domain.MetricEuclidean, 0), 1e-9)
	assert.InDelta(t, 0.5, Relevance(domain.MetricEuclidean, -1), 1e-9)
}

func TestRecency_HalfLife(t *testing.T) {
	assert.InDelta(t, 1, Recency(0, 60), 1e-9)
	assert.InDelta(t, 0.5, Recency(60, 60), 1e-9)
	assert.InDelta(t, 0.25, Recency(120, 60), 1e-9)
	assert.Equal(t, 1.0, Recency(-5, 60))
}

func TestImportance(t *testing.T) {
	assert.InDelta(t, 1, Importance(9, 9), 1e-9)
	assert.InDelta(t, 2.0/9, Importance(2, 9), 1e-9)
	assert.Equal(t, 1.0, Importance(12, 9))
	assert.Equal(t, 0.0, Importance(3, 0))
}

func TestNewCompositeSpec_NormalisesWeights(t *testing.T) {
	p := domain.DefaultGenAgentsParams()
	p.AlphaRecency, p.AlphaImportance, p.AlphaRelevance = 2, 1, 1

	spec, err := NewCompositeSpec(p, 100)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, spec.WeightRecency, 1e-9)
	assert.InDelta(t, 0.25, spec.WeightImportance, 1e-9)
	assert.InDelta(t, 0.25, spec.WeightRelevance, 1e-9)
	assert.Equal(t, 100.0, spec.NowUnix)
}

func TestNewCompositeSpec_ZeroWeights(t *testing.T) {
	p := domain.DefaultGenAgentsParams()
	p.AlphaRecency, p.AlphaImportance, p.AlphaRelevance = 0, 0, 0

	_, err := NewCompositeSpec(p, 0)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestScore_ImportanceOnly(t *testing.T) {
	spec := domain.CompositeSpec{WeightImportance: 1, HalfLifeSeconds: 60, MaxImportance: 9, NowUnix: 1000}
	v := []float32{1, 1}

	low := Score(spec, domain.MetricCosine, v, v, 2, 0)
	high := Score(spec, domain.MetricCosine, v, v, 9, 0)

	assert.InDelta(t, 1, high.Composite, 1e-9)
	assert.InDelta(t, 2.0/9, low.Composite, 1e-9)
	assert.InDelta(t, low.Relevance, high.Relevance, 1e-9)
}
