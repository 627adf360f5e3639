package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dockmap/auth-service/internal/apperror"
	"github.com/dockmap/auth-service/internal/domain"
	"github.com/go-resty/resty/v2"
)

// VKConfig holds VK ID application settings
type VKConfig struct {
	ClientID    string
	RedirectURI string
	TokenURL    string
	UserInfoURL string
	Timeout     time.Duration
}

// VKAuthorization is the data VK ID appends to the redirect
type VKAuthorization struct {
	Code         string
	State        string
	DeviceID     string
	CodeVerifier string
}

// VKClient exchanges an authorization code for the VK profile
type VKClient interface {
	Exchange(ctx context.Context, auth VKAuthorization) (*domain.Identity, error)
}

type vkClient struct {
	cfg    VKConfig
	client *resty.Client
}

// NewVKClient creates a VK ID client with a bounded timeout
func NewVKClient(cfg VKConfig) VKClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &vkClient{
		cfg:    cfg,
		client: resty.New().SetTimeout(timeout),
	}
}

type vkTokenResponse struct {
	AccessToken      string `json:"access_token"`
	UserID           vkID   `json:"user_id"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

type vkUserInfoResponse struct {
	User struct {
		UserID    vkID   `json:"user_id"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
	} `json:"user"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// vkID accepts both numeric and string user ids
type vkID string

func (id *vkID) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if string(data) == "null" {
		*id = ""
		return nil
	}
	*id = vkID(data)
	return nil
}

func (c *vkClient) Exchange(ctx context.Context, auth VKAuthorization) (*domain.Identity, error) {
	if auth.Code == "" {
		return nil, apperror.New(apperror.KindUnauthorized, "authorization code not found")
	}
	if c.cfg.ClientID == "" {
		return nil, apperror.New(apperror.KindUpstreamUnavailable, "vk is not configured")
	}

	var token vkTokenResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"client_id":     c.cfg.ClientID,
			"grant_type":    "authorization_code",
			"code":          auth.Code,
			"code_verifier": auth.CodeVerifier,
			"state":         auth.State,
			"redirect_uri":  c.cfg.RedirectURI,
			"device_id":     auth.DeviceID,
		}).
		Post(c.cfg.TokenURL)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindUpstreamUnavailable, "failed to exchange vk code")
	}
	if err := decodeVKResponse(resp, &token); err != nil {
		return nil, err
	}
	if token.Error != "" || token.AccessToken == "" {
		return nil, apperror.New(apperror.KindUpstreamUnavailable, fmt.Sprintf("vk token exchange rejected: %s %s", token.Error, token.ErrorDescription))
	}

	var info vkUserInfoResponse
	resp, err = c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"access_token": token.AccessToken,
			"client_id":    c.cfg.ClientID,
		}).
		Post(c.cfg.UserInfoURL)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindUpstreamUnavailable, "failed to get vk user info")
	}
	if err := decodeVKResponse(resp, &info); err != nil {
		return nil, err
	}
	if info.Error != "" {
		return nil, apperror.New(apperror.KindUpstreamUnavailable, fmt.Sprintf("vk user info rejected: %s %s", info.Error, info.ErrorDescription))
	}

	userID := string(info.User.UserID)
	if userID == "" {
		userID = string(token.UserID)
	}
	if userID == "" {
		return nil, apperror.New(apperror.KindUpstreamUnavailable, "vk user id is missing")
	}

	return &domain.Identity{
		Provider:    domain.AuthProviderVK,
		ProviderID:  userID,
		Email:       info.User.Email,
		DisplayName: strings.TrimSpace(info.User.FirstName + " " + info.User.LastName),
	}, nil
}

func decodeVKResponse(resp *resty.Response, v interface{}) error {
	if resp.IsError() {
		return apperror.New(apperror.KindUpstreamUnavailable, fmt.Sprintf("vk returned status %d", resp.StatusCode()))
	}
	if err := json.Unmarshal(resp.Body(), v); err != nil {
		return apperror.Wrap(err, apperror.KindUpstreamUnavailable, "failed to parse vk response")
	}
	return nil
}
