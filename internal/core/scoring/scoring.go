// Package scoring holds the similarity and Generative-Agents formulas shared
// by the retrieval engine and the storage adapters that evaluate them.
package scoring

import (
	"math"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// Cosine returns the cosine similarity of a and b, 0 if either is zero.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Dot returns the inner product of a and b.
func Dot(a, b []float32) float64 {
	var dot float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// NegL2 returns the negated Euclidean distance, so larger is closer.
func NegL2(a, b []float32) float64 {
	var sum float64
	n := max(len(a), len(b))
	for i := 0; i < n; i++ {
		var x, y float64
		if i < len(a) {
			x = float64(a[i])
		}
		if i < len(b) {
			y = float64(b[i])
		}
		sum += (x - y) * (x - y)
	}
	return -math.Sqrt(sum)
}

// Similarity evaluates metric m.
func Similarity(m domain.Metric, a, b []float32) float64 {
	switch m {
	case domain.MetricInnerProduct:
		return Dot(a, b)
	case domain.MetricEuclidean:
		return NegL2(a, b)
	default:
		return Cosine(a, b)
	}
}

// Relevance rescales a similarity into [0, 1]. Cosine and inner product map
// [-1, 1] linearly; Euclidean maps distance d to 1/(1+d).
func Relevance(m domain.Metric, similarity float64) float64 {
	if m == domain.MetricEuclidean {
		return 1 / (1 + math.Abs(similarity))
	}
	return clamp01((similarity + 1) / 2)
}

// Recency returns 0.5^(elapsed/halfLife). Future timestamps score 1.
func Recency(elapsedSeconds, halfLifeSeconds float64) float64 {
	if elapsedSeconds <= 0 || halfLifeSeconds <= 0 {
		return 1
	}
	return math.Pow(0.5, elapsedSeconds/halfLifeSeconds)
}

// Importance normalises a stored importance into [0, 1].
func Importance(importance, maxImportance float64) float64 {
	if maxImportance <= 0 {
		return 0
	}
	return clamp01(importance / maxImportance)
}

// Composite combines the sub-scores with weights already normalised by their sum.
func Composite(spec domain.CompositeSpec, relevance, recency, importance float64) float64 {
	return spec.WeightRelevance*relevance + spec.WeightRecency*recency + spec.WeightImportance*importance
}

// Score computes every composite column for one candidate.
func Score(spec domain.CompositeSpec, m domain.Metric, query, vec []float32, importance int, lastAccessUnix float64) domain.ScoredRow[struct{}] {
	sim := Similarity(m, query, vec)
	rel := Relevance(m, sim)
	rec := Recency(spec.NowUnix-lastAccessUnix, spec.HalfLifeSeconds)
	imp := Importance(float64(importance), spec.MaxImportance)
	return domain.ScoredRow[struct{}]{
		Similarity: sim,
		Relevance:  rel,
		Recency:    rec,
		Importance: imp,
		Composite:  Composite(spec, rel, rec, imp),
	}
}

// NewCompositeSpec normalises the three weights by their sum.
// A zero sum is a configuration error.
func NewCompositeSpec(p domain.GenAgentsParams, nowUnix float64) (*domain.CompositeSpec, error) {
	sum := p.WeightSum()
	if sum <= 0 {
		return nil, domain.NewConfigurationError("alpha", "composite weights must not all be zero")
	}
	return &domain.CompositeSpec{
		WeightRecency:    p.AlphaRecency / sum,
		WeightImportance: p.AlphaImportance / sum,
		WeightRelevance:  p.AlphaRelevance / sum,
		HalfLifeSeconds:  p.HalfLifeSeconds,
		MaxImportance:    p.MaxImportanceScore,
		NowUnix:          nowUnix,
	}, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
