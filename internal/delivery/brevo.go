package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// BrevoClient sends transactional email through the Brevo HTTP API v3
type BrevoClient struct {
	apiKey string
	url    string
	sender Sender
	client *resty.Client
}

// NewBrevoClient creates a Brevo client
func NewBrevoClient(apiKey, url string, sender Sender, timeout time.Duration) (*BrevoClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("brevo: %w", ErrNotConfigured)
	}

	return &BrevoClient{
		apiKey: apiKey,
		url:    url,
		sender: sender,
		client: resty.New().SetTimeout(timeout),
	}, nil
}

func (c *BrevoClient) Name() string {
	return "brevo"
}

type brevoAddress struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type brevoMessage struct {
	Sender      brevoAddress   `json:"sender"`
	To          []brevoAddress `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

func (c *BrevoClient) SendEmail(ctx context.Context, to, subject, html string) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("api-key", c.apiKey).
		SetHeader("Accept", "application/json").
		SetBody(brevoMessage{
			Sender:      brevoAddress{Name: c.sender.Name, Email: c.sender.Address},
			To:          []brevoAddress{{Email: to}},
			Subject:     subject,
			HTMLContent: html,
		}).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("brevo: failed to send email: %w", err)
	}

	if resp.IsError() {
		return fmt.Errorf("brevo: unexpected status %d: %s", resp.StatusCode(), resp.String())
	}

	return nil
}
