// Package circuitbreaker guards outbound calls to dependencies that can go dark.
package circuitbreaker

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/sony/gobreaker/v2"
)

// ErrOpen reports that the breaker rejected the call without attempting it.
var ErrOpen = errors.New("circuit breaker open")

type Settings struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	OpenTimeout  time.Duration
	FailureLimit uint32
	// IsSuccessful classifies errors that should not count against the breaker.
	IsSuccessful func(err error) bool
}

// Breaker is a typed wrapper around gobreaker.
type Breaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

func New[T any](settings Settings, logg *logger.Logger) *Breaker[T] {
	limit := settings.FailureLimit
	if limit == 0 {
		limit = 5
	}
	st := gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= limit
		},
		IsSuccessful: settings.IsSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logg == nil {
				return
			}
			ctx := logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			logg.Warn(ctx, "circuit breaker state changed")
		},
	}
	return &Breaker[T]{cb: gobreaker.NewCircuitBreaker[T](st)}
}

// Execute runs fn through the breaker, mapping rejection to ErrOpen.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	res, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, errors.Join(ErrOpen, err)
	}
	return res, err
}

// State returns the breaker's current state name.
func (b *Breaker[T]) State() string {
	return b.cb.State().String()
}
