package delivery

import (
	"context"

	"go.uber.org/zap"
)

// LogChannel writes messages to the log instead of delivering them.
// It is meant for development, where codes are read from the service output;
// config.Load refuses it when ENV is production.
type LogChannel struct {
	logger *zap.Logger
}

func NewLogChannel(logger *zap.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string {
	return "log"
}

func (c *LogChannel) SendSMS(ctx context.Context, phone, text string) error {
	c.logger.Info("sms delivery simulated", zap.String("phone", phone), zap.String("text", text))
	return nil
}

func (c *LogChannel) SendEmail(ctx context.Context, to, subject, html string) error {
	c.logger.Info("email delivery simulated",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("size", len(html)),
	)
	return nil
}
