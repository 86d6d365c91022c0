package mailer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrRelayUnavailable is returned while the breaker holds the relay open.
var ErrRelayUnavailable = errors.New("mail relay unavailable")

// BreakerSender stops dialing a failing relay for a cool-down period so the
// notification workers burn their retries quickly instead of on dial timeouts.
type BreakerSender struct {
	next Sender
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker wraps next. The breaker trips after three requests with at
// least 60% failures and lets one send through after cooldown.
func WithBreaker(next Sender, name string, cooldown time.Duration, logger *zap.Logger) *BreakerSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &BreakerSender{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				ratio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && ratio >= 0.6
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("mail breaker state changed",
					zap.String("breaker", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
	}
}

// Send delivers msg unless the breaker is open.
func (b *BreakerSender) Send(ctx context.Context, msg Message) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Send(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrRelayUnavailable, err)
	}
	return err
}

// State reports the breaker state, for diagnostics.
func (b *BreakerSender) State() string {
	return b.cb.State().String()
}
