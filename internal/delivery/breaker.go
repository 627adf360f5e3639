package delivery

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerSettings configures the circuit breaker wrapped around each channel
type BreakerSettings struct {
	MaxFailures uint32
	Interval    time.Duration
	OpenTimeout time.Duration
}

func newCircuitBreaker(name string, settings BreakerSettings, logger *zap.Logger) *gobreaker.CircuitBreaker {
	maxFailures := settings.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    settings.Interval,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("circuit breaker state",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

type breakerSMS struct {
	channel SMSChannel
	cb      *gobreaker.CircuitBreaker
}

// WithSMSBreaker guards an SMS channel with a circuit breaker
func WithSMSBreaker(channel SMSChannel, settings BreakerSettings, logger *zap.Logger) SMSChannel {
	return &breakerSMS{
		channel: channel,
		cb:      newCircuitBreaker("sms:"+channel.Name(), settings, logger),
	}
}

func (b *breakerSMS) Name() string {
	return b.channel.Name()
}

func (b *breakerSMS) SendSMS(ctx context.Context, phone, text string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.channel.SendSMS(ctx, phone, text)
	})
	return err
}

type breakerEmail struct {
	channel EmailChannel
	cb      *gobreaker.CircuitBreaker
}

// WithEmailBreaker guards an email channel with a circuit breaker
func WithEmailBreaker(channel EmailChannel, settings BreakerSettings, logger *zap.Logger) EmailChannel {
	return &breakerEmail{
		channel: channel,
		cb:      newCircuitBreaker("email:"+channel.Name(), settings, logger),
	}
}

func (b *breakerEmail) Name() string {
	return b.channel.Name()
}

func (b *breakerEmail) SendEmail(ctx context.Context, to, subject, html string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.channel.SendEmail(ctx, to, subject, html)
	})
	return err
}
