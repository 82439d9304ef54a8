package invoke

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
)

// RateLimit waits for a token before each attempt.
func RateLimit(requestsPerSecond float64, burst int) Interceptor {
	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), max(1, burst))
	return func(next Invoker) Invoker {
		return func(ctx context.Context, call *Call) (*driven.GenerateResponse, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
			return next(ctx, call)
		}
	}
}

// Concurrency caps the number of attempts in flight. Backoff waits in an
// outer Retry do not hold a slot.
func Concurrency(n int64) Interceptor {
	sem := semaphore.NewWeighted(max(1, n))
	return func(next Invoker) Invoker {
		return func(ctx context.Context, call *Call) (*driven.GenerateResponse, error) {
			if err := sem.Acquire(ctx, 1); err != nil {
				return nil, fmt.Errorf("acquire call slot: %w", err)
			}
			defer sem.Release(1)
			return next(ctx, call)
		}
	}
}

// BreakerSettings configures CircuitBreaker.
type BreakerSettings struct {
	Name string

	// MaxFailures opens the circuit after this many consecutive transient failures.
	MaxFailures uint32

	// OpenTimeout is how long the circuit stays open before a trial call.
	OpenTimeout time.Duration
}

// CircuitBreaker rejects calls with domain.ErrCircuitOpen after repeated
// transient failures. Non-transient failures do not count against it.
func CircuitBreaker(s BreakerSettings) Interceptor {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= max(1, s.MaxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnw("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !domain.IsTransient(err)
		},
	})

	return func(next Invoker) Invoker {
		return func(ctx context.Context, call *Call) (*driven.GenerateResponse, error) {
			out, err := cb.Execute(func() (interface{}, error) {
				return next(ctx, call)
			})
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return nil, fmt.Errorf("%w: %s: %v", domain.ErrCircuitOpen, s.Name, err)
			}
			if err != nil {
				return nil, err
			}
			return out.(*driven.GenerateResponse), nil
		}
	}
}
