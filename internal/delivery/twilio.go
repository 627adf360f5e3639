package delivery

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// TwilioClient sends SMS through the Twilio REST API
type TwilioClient struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	client     *resty.Client
}

// NewTwilioClient creates a Twilio client
func NewTwilioClient(accountSID, authToken, from, baseURL string, timeout time.Duration) (*TwilioClient, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("twilio: %w", ErrNotConfigured)
	}

	return &TwilioClient{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     resty.New().SetTimeout(timeout),
	}, nil
}

func (c *TwilioClient) Name() string {
	return "twilio"
}

// SendSMS sends text to phone in E.164 form
func (c *TwilioClient) SendSMS(ctx context.Context, phone, text string) error {
	to := phone
	if !strings.HasPrefix(to, "+") {
		to = "+" + to
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	resp, err := c.client.R().
		SetContext(ctx).
		SetBasicAuth(c.accountSID, c.authToken).
		SetHeader("Accept", "application/json").
		SetFormData(map[string]string{
			"To":   to,
			"From": c.from,
			"Body": text,
		}).
		Post(endpoint)
	if err != nil {
		return fmt.Errorf("twilio: failed to send sms: %w", err)
	}

	if resp.StatusCode() != http.StatusCreated && resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("twilio: unexpected status %d: %s", resp.StatusCode(), resp.String())
	}

	return nil
}
