package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

type Options struct {
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before letting a probe through.
	OpenTimeout time.Duration
	// IsSuccessful decides whether an error counts against the breaker. nil counts every error.
	IsSuccessful func(err error) bool
}

func DefaultOptions() Options {
	return Options{
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
	}
}

// New creates a breaker that logs every state change.
func New[T any](name string, opts Options, log *zap.Logger) *gobreaker.CircuitBreaker[T] {
	if opts.MaxFailures == 0 {
		opts.MaxFailures = DefaultOptions().MaxFailures
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = DefaultOptions().OpenTimeout
	}
	maxFailures := opts.MaxFailures

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: opts.IsSuccessful,
	})
}
