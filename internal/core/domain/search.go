package domain

import "fmt"

// Metric is the similarity function used to compare embeddings.
// Every metric is oriented so that larger is better.
type Metric string

// Available metrics.
const (
	// MetricCosine is cosine similarity in [-1, 1].
	MetricCosine Metric = "cosine"

	// MetricInnerProduct is the dot product. Requires normalised embeddings.
	MetricInnerProduct Metric = "ip"

	// MetricEuclidean is the negated L2 distance.
	MetricEuclidean Metric = "euclidean"
)

// IsValid returns true if the metric is recognised.
func (m Metric) IsValid() bool {
	switch m {
	case MetricCosine, MetricInnerProduct, MetricEuclidean:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (m Metric) String() string {
	return string(m)
}

// ParseMetric converts a name to a Metric.
func ParseMetric(s string) (Metric, error) {
	m := Metric(s)
	if !m.IsValid() {
		return "", fmt.Errorf("%w: metric %q", ErrUnsupportedType, s)
	}
	return m, nil
}

// Strategy selects a retrieval ranking strategy.
type Strategy string

// Available strategies.
const (
	StrategyVector    Strategy = "vector"
	StrategyRerank    Strategy = "rerank"
	StrategyGenAgents Strategy = "genagents"
)

// IsValid returns true if the strategy is recognised.
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyVector, StrategyRerank, StrategyGenAgents:
		return true
	default:
		return false
	}
}

// FilterOp is a comparison applied by storage.
type FilterOp string

// Supported filter operators.
const (
	FilterEq  FilterOp = "="
	FilterNe  FilterOp = "!="
	FilterLt  FilterOp = "<"
	FilterLte FilterOp = "<="
	FilterGt  FilterOp = ">"
	FilterGte FilterOp = ">="
	FilterIn  FilterOp = "in"
)

// IsValid returns true if the operator is recognised.
func (o FilterOp) IsValid() bool {
	switch o {
	case FilterEq, FilterNe, FilterLt, FilterLte, FilterGt, FilterGte, FilterIn:
		return true
	default:
		return false
	}
}

// Filter is a caller-supplied predicate pushed into the storage query.
// The retrieval engine does not interpret filters.
type Filter struct {
	// Field is a column name or a metadata key.
	Field string

	// Op is the comparison operator.
	Op FilterOp

	// Value is compared against Field. A slice for FilterIn.
	Value any
}

// SearchParams holds the options shared by every retrieval strategy.
type SearchParams struct {
	// MaxItems caps the result count. Zero means unlimited.
	MaxItems int `validate:"gte=0"`

	// MaxTokens caps the summed token count of returned content. Zero means unlimited.
	MaxTokens int `validate:"gte=0"`

	// Metric is the embedding similarity.
	Metric Metric `validate:"required,oneof=cosine ip euclidean"`

	// Filters are pushed down to storage.
	Filters []Filter
}

// DefaultSearchParams returns params with a cosine metric and ten results.
func DefaultSearchParams() SearchParams {
	return SearchParams{MaxItems: 10, Metric: MetricCosine}
}

// DefaultOvershoot is the default rerank pool multiplier.
const DefaultOvershoot = 5

// DefaultRerankPool is the first-pass pool used when MaxItems is unlimited.
const DefaultRerankPool = 50

// RerankParams adds the first-pass overshoot for rerank search.
type RerankParams struct {
	SearchParams

	// OvershootMultiplier scales MaxItems to size the first-pass pool.
	OvershootMultiplier int `validate:"gte=1"`
}

// PoolSize returns how many candidates the first pass should fetch.
func (p RerankParams) PoolSize() int {
	if p.MaxItems <= 0 {
		return DefaultRerankPool
	}
	return p.MaxItems * p.OvershootMultiplier
}

// GenAgentsParams holds the weights and decay for composite scoring.
type GenAgentsParams struct {
	SearchParams

	AlphaRecency    float64 `validate:"gte=0"`
	AlphaImportance float64 `validate:"gte=0"`
	AlphaRelevance  float64 `validate:"gte=0"`

	// HalfLifeSeconds is the elapsed time after which recency halves.
	HalfLifeSeconds float64 `validate:"gt=0"`

	// MaxImportanceScore normalises stored importance into [0, 1].
	MaxImportanceScore float64 `validate:"gt=0"`

	// TouchAccessed bumps LastAccessedAt on every returned memory.
	TouchAccessed bool
}

// DefaultGenAgentsParams returns equal weights and a one-day half-life.
func DefaultGenAgentsParams() GenAgentsParams {
	return GenAgentsParams{
		SearchParams:       DefaultSearchParams(),
		AlphaRecency:       1,
		AlphaImportance:    1,
		AlphaRelevance:     1,
		HalfLifeSeconds:    86400,
		MaxImportanceScore: MaxImportance,
	}
}

// WeightSum returns the sum of the three composite weights.
func (p GenAgentsParams) WeightSum() float64 {
	return p.AlphaRecency + p.AlphaImportance + p.AlphaRelevance
}

// ScoringKind selects what storage orders by.
type ScoringKind string

// Scoring kinds.
const (
	// ScoringSimilarity orders by the metric alone.
	ScoringSimilarity ScoringKind = "similarity"

	// ScoringComposite orders by the Generative-Agents composite.
	ScoringComposite ScoringKind = "composite"
)

// CompositeSpec carries the composite-score inputs evaluated by storage.
// Weights are already normalised by their sum.
type CompositeSpec struct {
	WeightRecency    float64
	WeightImportance float64
	WeightRelevance  float64
	HalfLifeSeconds  float64
	MaxImportance    float64

	// NowUnix is the reference time for recency, in seconds.
	NowUnix float64
}

// ScoringQuery is pushed down to storage, which evaluates the scoring
// expression server-side and returns rows best-first.
type ScoringQuery struct {
	Kind      ScoringKind
	Metric    Metric
	Embedding []float32
	Filters   []Filter

	// Limit caps the row count. Zero means no limit.
	Limit int

	// Composite is set when Kind is ScoringComposite.
	Composite *CompositeSpec
}

// ScoredRow is an entity with the score columns storage computed for it.
type ScoredRow[E any] struct {
	Entity E

	// Similarity is the metric value, larger is better.
	Similarity float64

	// Relevance, Recency, Importance and Composite are set for composite queries.
	Relevance  float64
	Recency    float64
	Importance float64
	Composite  float64
}

// VectorSearchResult is an entity ranked by embedding similarity.
type VectorSearchResult[E any] struct {
	Entity E

	// Distance is the metric value, oriented so that larger is better.
	Distance float64

	Metric Metric
}

// ReRankResult is a vector result re-scored by a cross-encoder.
type ReRankResult[E any] struct {
	VectorSearchResult[E]

	RerankScore float64
}

// GenAgentsSearchResult is a vector result with its composite sub-scores.
type GenAgentsSearchResult[E any] struct {
	VectorSearchResult[E]

	RecencyScore    float64
	RelevanceScore  float64
	ImportanceScore float64
	CompositeScore  float64
}
