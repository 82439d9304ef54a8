package domain

// LevelEstimate is the simulated size of one tree level.
type LevelEstimate struct {
	Depth     int
	NodeCount int

	// Calls is the number of LLM calls needed to produce this level.
	Calls int

	// Tokens is the estimated LLM tokens consumed producing this level.
	Tokens int
}

// TokenEstimate is the dry-run cost report for an index build.
type TokenEstimate struct {
	// DocumentTokens is the token count of the original content.
	DocumentTokens int

	// MaxGroupSize is the derived per-call input budget.
	MaxGroupSize int

	// Levels lists every level, leaves first.
	Levels []LevelEstimate

	// ContextCalls is the number of rolling-summary calls, zero when disabled.
	ContextCalls int

	// ContextTokens is the estimated tokens for rolling-summary calls.
	ContextTokens int

	// TotalCalls is the number of LLM calls the build would make.
	TotalCalls int

	// EstimatedTokens is the total LLM tokens the build would consume.
	EstimatedTokens int

	// CostMultiplier is EstimatedTokens divided by DocumentTokens.
	CostMultiplier float64
}

// Depth returns the number of reduction steps.
func (e TokenEstimate) Depth() int {
	if len(e.Levels) == 0 {
		return 0
	}
	return len(e.Levels) - 1
}
