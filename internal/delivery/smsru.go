package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// SMSRuClient sends SMS through the sms.ru HTTP API
type SMSRuClient struct {
	apiID  string
	from   string
	url    string
	client *resty.Client
}

// NewSMSRuClient creates an sms.ru client
func NewSMSRuClient(apiID, from, url string, timeout time.Duration) (*SMSRuClient, error) {
	if apiID == "" {
		return nil, fmt.Errorf("smsru: %w", ErrNotConfigured)
	}

	return &SMSRuClient{
		apiID:  apiID,
		from:   from,
		url:    url,
		client: resty.New().SetTimeout(timeout),
	}, nil
}

func (c *SMSRuClient) Name() string {
	return "smsru"
}

type smsRuResponse struct {
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
	StatusText string `json:"status_text"`
	SMS        map[string]struct {
		Status     string `json:"status"`
		StatusCode int    `json:"status_code"`
		StatusText string `json:"status_text"`
	} `json:"sms"`
}

// SendSMS sends text to phone; sms.ru answers 200 with a per-number status
func (c *SMSRuClient) SendSMS(ctx context.Context, phone, text string) error {
	form := map[string]string{
		"api_id": c.apiID,
		"to":     phone,
		"msg":    text,
		"json":   "1",
	}
	if c.from != "" {
		form["from"] = c.from
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(form).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("smsru: failed to send sms: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("smsru: unexpected status %d", resp.StatusCode())
	}

	var result smsRuResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return fmt.Errorf("smsru: failed to parse response: %w", err)
	}
	if result.Status != "OK" {
		return fmt.Errorf("smsru: request rejected: %d %s", result.StatusCode, result.StatusText)
	}
	if sms, ok := result.SMS[phone]; ok && sms.Status != "OK" {
		return fmt.Errorf("smsru: message rejected: %d %s", sms.StatusCode, sms.StatusText)
	}

	return nil
}
