// Package invoke wraps an LLMService with an ordered chain of interceptors
// (retry, rate limiting, concurrency, circuit breaking) and fires callbacks
// around every call (logging, metrics, audit, tracing).
//
// Each interceptor receives one *Call describing the invocation, so
// cross-cutting behaviour composes without the caller knowing about it.
package invoke

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Call describes one logical LLM invocation.
type Call struct {
	// ID is unique per call.
	ID string

	// Operation names what the call is for, e.g. "summarise".
	Operation string

	// Model is the wrapped model name.
	Model string

	Request driven.GenerateRequest

	// Attempt counts provider requests made so far, including retries.
	Attempt int

	StartedAt time.Time

	// Metadata is free for interceptors and callbacks to annotate.
	Metadata map[string]string
}

// Invoker performs a call.
type Invoker func(ctx context.Context, call *Call) (*driven.GenerateResponse, error)

// Interceptor wraps an Invoker.
type Interceptor func(next Invoker) Invoker

// Callback observes calls. OnStart may return a derived context, which is
// used for the call and passed to OnEnd.
type Callback interface {
	OnStart(ctx context.Context, call *Call) context.Context
	OnEnd(ctx context.Context, call *Call, resp *driven.GenerateResponse, err error)
}

// Client is the invocation layer around an LLMService.
// It implements driven.LLMClient and is safe for concurrent use.
type Client struct {
	svc       driven.LLMService
	chain     Invoker
	callbacks []Callback
}

var _ driven.LLMClient = (*Client)(nil)

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	interceptors []Interceptor
	callbacks    []Callback
}

// WithInterceptors appends interceptors. The first one is outermost.
func WithInterceptors(ics ...Interceptor) Option {
	return func(c *clientConfig) {
		c.interceptors = append(c.interceptors, ics...)
	}
}

// WithCallbacks appends callbacks. OnStart runs in order, OnEnd in reverse.
func WithCallbacks(cbs ...Callback) Option {
	return func(c *clientConfig) {
		c.callbacks = append(c.callbacks, cbs...)
	}
}

// New wraps svc.
func New(svc driven.LLMService, opts ...Option) *Client {
	var cfg clientConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Client{svc: svc, callbacks: cfg.callbacks}
	chain := c.send
	for i := len(cfg.interceptors) - 1; i >= 0; i-- {
		chain = cfg.interceptors[i](chain)
	}
	c.chain = chain
	return c
}

// send is the innermost invoker.
func (c *Client) send(ctx context.Context, call *Call) (*driven.GenerateResponse, error) {
	call.Attempt++
	resp, err := c.svc.Generate(ctx, call.Request)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, &domain.OutputShapeError{Collaborator: c.svc.ModelName(), Reason: "empty response"}
	}
	return resp, nil
}

// Generate runs one call through the chain.
func (c *Client) Generate(ctx context.Context, op string, req driven.GenerateRequest) (*driven.GenerateResponse, error) {
	call := &Call{
		ID:        uuid.New().String(),
		Operation: op,
		Model:     c.svc.ModelName(),
		Request:   req,
		StartedAt: time.Now(),
		Metadata:  make(map[string]string),
	}

	for _, cb := range c.callbacks {
		ctx = cb.OnStart(ctx, call)
	}

	resp, err := c.chain(ctx, call)

	for i := len(c.callbacks) - 1; i >= 0; i-- {
		c.callbacks[i].OnEnd(ctx, call, resp, err)
	}
	return resp, err
}

// GenerateAsync starts a call in its own goroutine.
func (c *Client) GenerateAsync(ctx context.Context, op string, req driven.GenerateRequest) *driven.Pending {
	p := driven.NewPending()
	go func() {
		p.Resolve(c.Generate(ctx, op, req))
	}()
	return p
}

// NumTokens implements driven.LLMClient.
func (c *Client) NumTokens(text string) int { return c.svc.NumTokens(text) }

// ContextWindow implements driven.LLMClient.
func (c *Client) ContextWindow() int { return c.svc.ContextWindow() }

// ModelName implements driven.LLMClient.
func (c *Client) ModelName() string { return c.svc.ModelName() }

// Service returns the wrapped service.
func (c *Client) Service() driven.LLMService { return c.svc }

// Standard returns the interceptor chain configured by settings:
// retry, then rate limit, concurrency and circuit breaker per attempt.
func Standard(s domain.InvocationSettings) []Interceptor {
	ics := []Interceptor{Retry(RetryPolicyFromSettings(s))}
	if s.RequestsPerSecond > 0 {
		ics = append(ics, RateLimit(s.RequestsPerSecond, max(1, s.Concurrency)))
	}
	if s.Concurrency > 0 {
		ics = append(ics, Concurrency(int64(s.Concurrency)))
	}
	if s.BreakerFailures > 0 {
		ics = append(ics, CircuitBreaker(BreakerSettings{
			Name:        "llm",
			MaxFailures: uint32(s.BreakerFailures),
			OpenTimeout: 30 * time.Second,
		}))
	}
	return ics
}
