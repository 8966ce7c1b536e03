package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/tidewell/podwatch/internal/coverage/application"
)

// BreakerConfig configures the notifier circuit breaker.
type BreakerConfig struct {
	// MaxRequests is the maximum number of requests allowed in half-open state.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state.
	Interval time.Duration

	// Timeout is the period of the open state.
	Timeout time.Duration

	// FailureThreshold is how many consecutive failures trip the breaker.
	FailureThreshold uint32
}

// DefaultBreakerConfig returns a sensible default configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerNotifier wraps a Notifier with a circuit breaker so that a dead
// notification channel sheds load fast instead of timing out on every gap.
type BreakerNotifier struct {
	inner   application.Notifier
	breaker *gobreaker.CircuitBreaker[any]
	logger  *slog.Logger
}

// NewBreakerNotifier creates a new circuit-breaking notifier.
func NewBreakerNotifier(inner application.Notifier, config BreakerConfig, logger *slog.Logger) *BreakerNotifier {
	if logger == nil {
		logger = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:        "notifier",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &BreakerNotifier{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
		logger:  logger,
	}
}

// Notify delivers through the breaker.
func (n *BreakerNotifier) Notify(ctx context.Context, recipient application.Recipient, summary application.GapSummary) error {
	_, err := n.breaker.Execute(func() (any, error) {
		return nil, n.inner.Notify(ctx, recipient, summary)
	})
	return err
}

// State exposes the current breaker state for health reporting.
func (n *BreakerNotifier) State() gobreaker.State {
	return n.breaker.State()
}
