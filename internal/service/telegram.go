package service

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dockmap/auth-service/internal/apperror"
	"github.com/dockmap/auth-service/internal/domain"
)

const telegramOAuthURL = "https://oauth.telegram.org/auth"

// TelegramConfig holds the bot credentials used to verify widget logins
type TelegramConfig struct {
	BotToken    string
	BotID       string
	Origin      string
	RedirectURL string
	// MaxAge rejects payloads with an older auth_date; zero disables the check
	MaxAge time.Duration
}

// TelegramPayload is the typed view of a verified widget login
type TelegramPayload struct {
	ID        string
	FirstName string
	LastName  string
	Username  string
	AuthDate  time.Time
}

// TelegramVerifier checks widget signatures against the bot token
type TelegramVerifier struct {
	cfg TelegramConfig
	now func() time.Time
}

// NewTelegramVerifier creates a new Telegram verifier
func NewTelegramVerifier(cfg TelegramConfig) *TelegramVerifier {
	return &TelegramVerifier{cfg: cfg, now: time.Now}
}

// WithClock replaces the verifier time source
func (v *TelegramVerifier) WithClock(now func() time.Time) *TelegramVerifier {
	v.now = now
	return v
}

// DecodeTelegramPayload turns the base64url JSON widget payload into flat string fields
func DecodeTelegramPayload(encoded string) (map[string]string, error) {
	encoded = strings.TrimRight(strings.TrimSpace(encoded), "=")
	if encoded == "" {
		return nil, apperror.New(apperror.KindInvalidInput, "telegram payload is required")
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, apperror.Wrap(err, apperror.KindInvalidInput, "telegram payload is not valid base64")
		}
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var values map[string]interface{}
	if err := decoder.Decode(&values); err != nil {
		return nil, apperror.Wrap(err, apperror.KindInvalidInput, "telegram payload is not valid JSON")
	}

	fields := make(map[string]string, len(values))
	for key, value := range values {
		switch typed := value.(type) {
		case nil:
			continue
		case string:
			fields[key] = typed
		case json.Number:
			fields[key] = typed.String()
		case bool:
			fields[key] = strconv.FormatBool(typed)
		default:
			return nil, apperror.New(apperror.KindInvalidInput, fmt.Sprintf("telegram field %s has unsupported type", key))
		}
	}

	return fields, nil
}

// TelegramCheckString builds the newline-joined key=value string signed by Telegram
func TelegramCheckString(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		if key == "hash" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+fields[key])
	}

	return strings.Join(pairs, "\n")
}

// SignTelegramFields computes the hex hash Telegram attaches to widget data
func SignTelegramFields(fields map[string]string, botToken string) string {
	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(TelegramCheckString(fields)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyTelegramSignature reports whether fields carry a valid hash for botToken
func VerifyTelegramSignature(fields map[string]string, botToken string) bool {
	hash := strings.ToLower(fields["hash"])
	if hash == "" || botToken == "" {
		return false
	}

	expected := SignTelegramFields(fields, botToken)
	return hmac.Equal([]byte(expected), []byte(hash))
}

// Resolve verifies widget fields and maps them to a canonical identity
func (v *TelegramVerifier) Resolve(fields map[string]string) (*domain.Identity, error) {
	if v.cfg.BotToken == "" {
		return nil, apperror.New(apperror.KindInvalidSignature, "telegram bot is not configured")
	}
	if fields["hash"] == "" {
		return nil, apperror.New(apperror.KindInvalidSignature, "telegram hash is missing")
	}

	payload, err := parseTelegramPayload(fields)
	if err != nil {
		return nil, err
	}

	if !VerifyTelegramSignature(fields, v.cfg.BotToken) {
		return nil, apperror.New(apperror.KindInvalidSignature, "invalid telegram signature")
	}

	if v.cfg.MaxAge > 0 && v.now().Sub(payload.AuthDate) > v.cfg.MaxAge {
		return nil, apperror.New(apperror.KindUnauthorized, "telegram authorization is outdated")
	}

	return &domain.Identity{
		Provider:    domain.AuthProviderTelegram,
		ProviderID:  payload.ID,
		DisplayName: strings.TrimSpace(payload.FirstName + " " + payload.LastName),
		Username:    payload.Username,
	}, nil
}

// OAuthLink returns the Telegram login URL for the configured bot
func (v *TelegramVerifier) OAuthLink() (string, error) {
	if v.cfg.BotID == "" || v.cfg.Origin == "" {
		return "", apperror.New(apperror.KindUpstreamUnavailable, "telegram login is not configured")
	}

	params := url.Values{}
	params.Set("bot_id", v.cfg.BotID)
	params.Set("origin", v.cfg.Origin)
	if v.cfg.RedirectURL != "" {
		params.Set("return_to", v.cfg.RedirectURL)
	}

	return telegramOAuthURL + "?" + params.Encode(), nil
}

func parseTelegramPayload(fields map[string]string) (*TelegramPayload, error) {
	for _, key := range []string{"id", "first_name", "auth_date"} {
		if strings.TrimSpace(fields[key]) == "" {
			return nil, apperror.New(apperror.KindInvalidInput, fmt.Sprintf("telegram field %s is required", key))
		}
	}

	if _, err := strconv.ParseInt(fields["id"], 10, 64); err != nil {
		return nil, apperror.Wrap(err, apperror.KindInvalidInput, "telegram id must be numeric")
	}

	authDate, err := strconv.ParseInt(fields["auth_date"], 10, 64)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindInvalidInput, "telegram auth_date must be a unix timestamp")
	}

	return &TelegramPayload{
		ID:        fields["id"],
		FirstName: fields["first_name"],
		LastName:  fields["last_name"],
		Username:  fields["username"],
		AuthDate:  time.Unix(authDate, 0),
	}, nil
}
