package provider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// breakerProvider wraps a Provider with a circuit breaker so that a
// consistently failing backend fails fast instead of adding latency to
// every chat turn. Failed calls are never retried here; retry policy is
// owned by the callers (and is deliberately absent for decomposition and
// subtask execution).
type breakerProvider struct {
	inner Provider
	cb    *gobreaker.CircuitBreaker
}

// WithBreaker wraps p with a circuit breaker that trips after five
// consecutive failures and recovers after 30 seconds.
func WithBreaker(p Provider, logger *slog.Logger) Provider {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("provider circuit breaker state change",
				slog.String("provider", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation is not a backend failure.
			if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return false
		},
	})
	return &breakerProvider{inner: p, cb: cb}
}

func (b *breakerProvider) Name() string { return b.inner.Name() }

func (b *breakerProvider) Chat(ctx context.Context, messages []Message, tools []ToolDef) (*Response, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return b.inner.Chat(ctx, messages, tools)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Response), nil
}
