package delivery

import (
	"fmt"
	"strings"

	"github.com/dockmap/auth-service/internal/config"
	"go.uber.org/zap"
)

// maxChannels is the primary plus one alternate
const maxChannels = 2

func breakerSettings(cfg config.BreakerConfig) BreakerSettings {
	return BreakerSettings{
		MaxFailures: cfg.MaxFailures,
		Interval:    cfg.Interval.Duration,
		OpenTimeout: cfg.OpenTimeout.Duration,
	}
}

func providerList(kind string, providers []string) ([]string, error) {
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			names = append(names, p)
		}
	}
	if len(names) == 0 {
		names = append(names, "log")
	}
	if len(names) > maxChannels {
		return nil, fmt.Errorf("%s: at most %d providers are supported, got %d", kind, maxChannels, len(names))
	}
	return names, nil
}

// NewSMSSender builds the SMS failover chain from configuration
func NewSMSSender(cfg config.SMSConfig, breaker config.BreakerConfig, recorder FailureRecorder, logger *zap.Logger) (*SMSFailover, error) {
	names, err := providerList("sms", cfg.Providers)
	if err != nil {
		return nil, err
	}

	channels := make([]SMSChannel, 0, len(names))
	for _, name := range names {
		var channel SMSChannel
		switch name {
		case "smsru":
			channel, err = NewSMSRuClient(cfg.SMSRuAPIID, cfg.SMSRuFrom, cfg.SMSRuURL, cfg.Timeout.Duration)
		case "twilio":
			channel, err = NewTwilioClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFrom, cfg.TwilioBaseURL, cfg.Timeout.Duration)
		case "log":
			channel = NewLogChannel(logger)
		default:
			err = fmt.Errorf("unknown sms provider %q", name)
		}
		if err != nil {
			return nil, err
		}
		if name != "log" {
			channel = WithSMSBreaker(channel, breakerSettings(breaker), logger)
		}
		channels = append(channels, channel)
	}

	var alternate SMSChannel
	if len(channels) > 1 {
		alternate = channels[1]
	}
	return NewSMSFailover(channels[0], alternate, recorder, logger), nil
}

// NewEmailSender builds the email failover chain from configuration
func NewEmailSender(cfg config.EmailConfig, breaker config.BreakerConfig, recorder FailureRecorder, logger *zap.Logger) (*EmailFailover, error) {
	names, err := providerList("email", cfg.Providers)
	if err != nil {
		return nil, err
	}

	sender := Sender{Name: cfg.FromName, Address: cfg.FromAddress}
	channels := make([]EmailChannel, 0, len(names))
	for _, name := range names {
		var channel EmailChannel
		switch name {
		case "brevo":
			channel, err = NewBrevoClient(cfg.BrevoAPIKey, cfg.BrevoURL, sender, cfg.Timeout.Duration)
		case "smtp":
			channel, err = NewSMTPClient(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, sender, cfg.Timeout.Duration)
		case "log":
			channel = NewLogChannel(logger)
		default:
			err = fmt.Errorf("unknown email provider %q", name)
		}
		if err != nil {
			return nil, err
		}
		if name != "log" {
			channel = WithEmailBreaker(channel, breakerSettings(breaker), logger)
		}
		channels = append(channels, channel)
	}

	var alternate EmailChannel
	if len(channels) > 1 {
		alternate = channels[1]
	}
	return NewEmailFailover(channels[0], alternate, recorder, logger), nil
}
