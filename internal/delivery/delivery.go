package delivery

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a channel is selected without its credentials
var ErrNotConfigured = errors.New("delivery channel is not configured")

// SMSChannel delivers a text message to a normalized phone number
type SMSChannel interface {
	Name() string
	SendSMS(ctx context.Context, phone, text string) error
}

// EmailChannel delivers an HTML email
type EmailChannel interface {
	Name() string
	SendEmail(ctx context.Context, to, subject, html string) error
}

// FailureRecorder counts failed delivery attempts per channel
type FailureRecorder interface {
	RecordDeliveryFailure(ctx context.Context, channel string)
}

type nopRecorder struct{}

func (nopRecorder) RecordDeliveryFailure(context.Context, string) {}

// Sender identifies the From header of outgoing email
type Sender struct {
	Name    string
	Address string
}
