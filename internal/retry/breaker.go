package retry

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
)

// Breaker wraps a call with a circuit breaker so a stage that keeps
// failing with upstream_unavailable opens the circuit and fails fast
// instead of exhausting its retry budget on every single invocation.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker creates a Breaker named for the upstream it guards, tripping
// after 3 consecutive failures and probing again after a 30s cooldown.
func NewBreaker(name string) *Breaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// ErrOpen is returned via gobreaker when the breaker is open; callers
// should treat it the same as an Terminal retry classification.
var ErrOpen = gobreaker.ErrOpenState

// Do runs fn through the breaker. If the breaker is open, fn is not called
// and gobreaker.ErrOpenState is returned.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	return err
}

// State returns the breaker's current state for health reporting.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
