package delivery

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// SMSFailover sends through the primary channel and retries once on the alternate
type SMSFailover struct {
	channels []SMSChannel
	recorder FailureRecorder
	logger   *zap.Logger
}

// NewSMSFailover creates a failover sender; alternate may be nil
func NewSMSFailover(primary, alternate SMSChannel, recorder FailureRecorder, logger *zap.Logger) *SMSFailover {
	return &SMSFailover{
		channels: smsChannels(primary, alternate),
		recorder: recorderOrNop(recorder),
		logger:   logger,
	}
}

// SendSMS implements service.SMSSender
func (f *SMSFailover) SendSMS(ctx context.Context, phone, text string) error {
	var errs []error
	for _, channel := range f.channels {
		err := channel.SendSMS(ctx, phone, text)
		if err == nil {
			return nil
		}
		f.recorder.RecordDeliveryFailure(ctx, channel.Name())
		f.logger.Warn("sms channel failed", zap.String("channel", channel.Name()), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", channel.Name(), err))
	}
	return errors.Join(errs...)
}

// Channels returns the channel names in the order they are tried
func (f *SMSFailover) Channels() []string {
	names := make([]string, 0, len(f.channels))
	for _, c := range f.channels {
		names = append(names, c.Name())
	}
	return names
}

// EmailFailover sends through the primary channel and retries once on the alternate
type EmailFailover struct {
	channels []EmailChannel
	recorder FailureRecorder
	logger   *zap.Logger
}

// NewEmailFailover creates a failover sender; alternate may be nil
func NewEmailFailover(primary, alternate EmailChannel, recorder FailureRecorder, logger *zap.Logger) *EmailFailover {
	return &EmailFailover{
		channels: emailChannels(primary, alternate),
		recorder: recorderOrNop(recorder),
		logger:   logger,
	}
}

// SendEmail implements service.EmailSender
func (f *EmailFailover) SendEmail(ctx context.Context, to, subject, html string) error {
	var errs []error
	for _, channel := range f.channels {
		err := channel.SendEmail(ctx, to, subject, html)
		if err == nil {
			return nil
		}
		f.recorder.RecordDeliveryFailure(ctx, channel.Name())
		f.logger.Warn("email channel failed", zap.String("channel", channel.Name()), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", channel.Name(), err))
	}
	return errors.Join(errs...)
}

// Channels returns the channel names in the order they are tried
func (f *EmailFailover) Channels() []string {
	names := make([]string, 0, len(f.channels))
	for _, c := range f.channels {
		names = append(names, c.Name())
	}
	return names
}

func smsChannels(primary, alternate SMSChannel) []SMSChannel {
	channels := []SMSChannel{primary}
	if alternate != nil {
		channels = append(channels, alternate)
	}
	return channels
}

func emailChannels(primary, alternate EmailChannel) []EmailChannel {
	channels := []EmailChannel{primary}
	if alternate != nil {
		channels = append(channels, alternate)
	}
	return channels
}

func recorderOrNop(recorder FailureRecorder) FailureRecorder {
	if recorder == nil {
		return nopRecorder{}
	}
	return recorder
}
