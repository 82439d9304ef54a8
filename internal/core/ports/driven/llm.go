// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// LLMService is a provider-specific language model.
//
// Implementations include:
//   - OpenAI (GPT-4o family)
//   - Anthropic (Claude)
//   - Ollama (local models)
type LLMService interface {
	// Generate produces one completion for the request.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// NumTokens estimates the token count of text locally, without a network call.
	NumTokens(text string) int

	// ContextWindow returns the model's context size in tokens.
	ContextWindow() int

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// LLMClient is the invocation layer core services call through. It adds
// retries, rate limiting and call callbacks around an LLMService.
type LLMClient interface {
	// Generate runs one call. Op names the operation for logs, metrics and audit.
	Generate(ctx context.Context, op string, req GenerateRequest) (*GenerateResponse, error)

	// GenerateAsync starts a call and returns immediately.
	GenerateAsync(ctx context.Context, op string, req GenerateRequest) *Pending

	// NumTokens estimates the token count of text locally.
	NumTokens(text string) int

	// ContextWindow returns the model's context size in tokens.
	ContextWindow() int

	// ModelName returns the wrapped model name.
	ModelName() string
}

// GenerateRequest is a single completion request.
type GenerateRequest struct {
	// System is an optional system prompt.
	System string

	// Prompt is the user message. Ignored when Messages is set.
	Prompt string

	// Messages is a multi-turn conversation.
	Messages []ChatMessage

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// StopWords are sequences that stop generation when encountered.
	StopWords []string
}

// Turns returns Messages, or Prompt as a single user message.
func (r GenerateRequest) Turns() []ChatMessage {
	if len(r.Messages) > 0 {
		return r.Messages
	}
	return []ChatMessage{{Role: "user", Content: r.Prompt}}
}

// GenerateResponse is one completion.
type GenerateResponse struct {
	Content      string
	Usage        domain.TokenUsage
	FinishReason string
	Model        string
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// Pending is the result of an asynchronous call.
type Pending struct {
	done chan struct{}
	resp *GenerateResponse
	err  error
}

// NewPending creates an unresolved Pending.
func NewPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// Resolve sets the outcome. It must be called exactly once.
func (p *Pending) Resolve(resp *GenerateResponse, err error) {
	p.resp, p.err = resp, err
	close(p.done)
}

// Done is closed once the call has finished.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the call finishes or ctx is done.
func (p *Pending) Wait(ctx context.Context) (*GenerateResponse, error) {
	select {
	case <-p.done:
		return p.resp, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
