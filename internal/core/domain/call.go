package domain

import "time"

// CallStatus is the outcome of an LLM call.
type CallStatus string

// Call outcomes.
const (
	CallStatusOK    CallStatus = "ok"
	CallStatusError CallStatus = "error"
)

// TokenUsage is the token accounting reported by a provider.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Add returns the sum of two usages.
func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// CallRecord is a durable audit entry for one LLM call.
type CallRecord struct {
	ID        string
	Operation string
	Model     string
	Prompt    string
	Response  string
	Status    CallStatus
	Error     string
	Attempts  int
	Usage     TokenUsage

	// FinishReason is the provider stop reason.
	FinishReason string

	StartedAt time.Time
	Duration  time.Duration
}
