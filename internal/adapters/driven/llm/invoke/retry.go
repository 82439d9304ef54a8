package invoke

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
)

// RetryPolicy bounds retries of transient failures.
type RetryPolicy struct {
	// MaxAttempts includes the first try.
	MaxAttempts int

	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64

	// MaxElapsed stops retrying once this much time has passed. Zero means no limit.
	MaxElapsed time.Duration
}

// DefaultRetryPolicy returns four attempts with jittered exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:         4,
		InitialInterval:     500 * time.Millisecond,
		MaxInterval:         20 * time.Second,
		Multiplier:          2,
		RandomizationFactor: 0.5,
	}
}

// RetryPolicyFromSettings converts invocation settings.
func RetryPolicyFromSettings(s domain.InvocationSettings) RetryPolicy {
	p := DefaultRetryPolicy()
	if s.MaxAttempts > 0 {
		p.MaxAttempts = s.MaxAttempts
	}
	if s.InitialBackoffMs > 0 {
		p.InitialInterval = time.Duration(s.InitialBackoffMs) * time.Millisecond
	}
	if s.MaxBackoffMs > 0 {
		p.MaxInterval = time.Duration(s.MaxBackoffMs) * time.Millisecond
	}
	return p
}

func (p RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	if p.Multiplier > 0 {
		b.Multiplier = p.Multiplier
	}
	b.RandomizationFactor = p.RandomizationFactor
	return b
}

// Retry re-invokes the chain on transient failures with randomised
// exponential backoff. Other failures are returned at once. After the last
// attempt the last error is returned.
func Retry(p RetryPolicy) Interceptor {
	return func(next Invoker) Invoker {
		return func(ctx context.Context, call *Call) (*driven.GenerateResponse, error) {
			op := func() (*driven.GenerateResponse, error) {
				resp, err := next(ctx, call)
				if err != nil && !domain.IsTransient(err) {
					return nil, backoff.Permanent(err)
				}
				return resp, err
			}

			opts := []backoff.RetryOption{
				backoff.WithBackOff(p.backOff()),
				backoff.WithMaxTries(uint(max(1, p.MaxAttempts))),
				backoff.WithNotify(func(err error, wait time.Duration) {
					logger.Debugw("retrying llm call",
						"id", call.ID, "op", call.Operation, "attempt", call.Attempt, "wait", wait.String(), "error", err.Error())
				}),
			}
			if p.MaxElapsed > 0 {
				opts = append(opts, backoff.WithMaxElapsedTime(p.MaxElapsed))
			}
			return backoff.Retry(ctx, op, opts...)
		}
	}
}
