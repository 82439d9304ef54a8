package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetric(t *testing.T) {
	for _, name := range []string{"cosine", "ip", "euclidean"} {
		m, err := ParseMetric(name)
		require.NoError(t, err)
		assert.Equal(t, name, m.String())
	}

	_, err := ParseMetric("manhattan")
	assert.True(t, errors.Is(err, ErrUnsupportedType))
}

func TestRerankParams_PoolSize(t *testing.T) {
	tests := []struct {
		name     string
		params   RerankParams
		expected int
	}{
		{"finite count uses overshoot", RerankParams{SearchParams: SearchParams{MaxItems: 4}, OvershootMultiplier: 5}, 20},
		{"unlimited uses default pool", RerankParams{SearchParams: SearchParams{MaxItems: 0}, OvershootMultiplier: 5}, DefaultRerankPool},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.params.PoolSize())
		})
	}
}

func TestGenAgentsParams_Defaults(t *testing.T) {
	p := DefaultGenAgentsParams()

	assert.Equal(t, 3.0, p.WeightSum())
	assert.Equal(t, float64(MaxImportance), p.MaxImportanceScore)
	assert.False(t, p.TouchAccessed)
}

func TestFilterOp_IsValid(t *testing.T) {
	assert.True(t, FilterEq.IsValid())
	assert.True(t, FilterIn.IsValid())
	assert.False(t, FilterOp("like").IsValid())
}

func TestStrategy_IsValid(t *testing.T) {
	assert.True(t, StrategyGenAgents.IsValid())
	assert.False(t, Strategy("bm25").IsValid())
}

func TestTokenUsage_Add(t *testing.T) {
	u := TokenUsage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12}.
		Add(TokenUsage{PromptTokens: 5, CompletionTokens: 1, TotalTokens: 6})

	assert.Equal(t, TokenUsage{PromptTokens: 15, CompletionTokens: 3, TotalTokens: 18}, u)
}

func TestTokenEstimate_Depth(t *testing.T) {
	assert.Equal(t, 0, TokenEstimate{}.Depth())
	assert.Equal(t, 2, TokenEstimate{Levels: []LevelEstimate{{NodeCount: 10}, {NodeCount: 2}, {NodeCount: 1}}}.Depth())
}
