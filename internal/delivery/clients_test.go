package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMSRuClient_SendSMS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "api-id", r.PostForm.Get("api_id"))
		assert.Equal(t, "79001234567", r.PostForm.Get("to"))
		assert.Equal(t, "Your code: 123456", r.PostForm.Get("msg"))
		assert.Equal(t, "1", r.PostForm.Get("json"))
		assert.Equal(t, "DockMap", r.PostForm.Get("from"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","status_code":100,"sms":{"79001234567":{"status":"OK","status_code":100}}}`))
	}))
	defer server.Close()

	client, err := NewSMSRuClient("api-id", "DockMap", server.URL, time.Second)
	require.NoError(t, err)

	assert.NoError(t, client.SendSMS(context.Background(), "79001234567", "Your code: 123456"))
}

func TestSMSRuClient_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "request rejected", status: http.StatusOK, body: `{"status":"ERROR","status_code":200,"status_text":"invalid api_id"}`},
		{name: "number rejected", status: http.StatusOK, body: `{"status":"OK","status_code":100,"sms":{"79001234567":{"status":"ERROR","status_code":207}}}`},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`},
		{name: "malformed body", status: http.StatusOK, body: `not-json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := NewSMSRuClient("api-id", "", server.URL, time.Second)
			require.NoError(t, err)
			assert.Error(t, client.SendSMS(context.Background(), "79001234567", "text"))
		})
	}
}

func TestTwilioClient_SendSMS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)

		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "+79001234567", r.PostForm.Get("To"))
		assert.Equal(t, "+15550001111", r.PostForm.Get("From"))
		assert.Equal(t, "hello", r.PostForm.Get("Body"))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM1"}`))
	}))
	defer server.Close()

	client, err := NewTwilioClient("AC123", "secret", "+15550001111", server.URL+"/", time.Second)
	require.NoError(t, err)

	assert.NoError(t, client.SendSMS(context.Background(), "79001234567", "hello"))
}

func TestTwilioClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"invalid To"}`))
	}))
	defer server.Close()

	client, err := NewTwilioClient("AC123", "secret", "+15550001111", server.URL, time.Second)
	require.NoError(t, err)

	err = client.SendSMS(context.Background(), "+79001234567", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid To")
}

func TestBrevoClient_SendEmail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "brevo-key", r.Header.Get("api-key"))
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")

		var msg brevoMessage
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		assert.Equal(t, "noreply@dockmap.ru", msg.Sender.Email)
		assert.Equal(t, "DockMap", msg.Sender.Name)
		assert.Equal(t, []brevoAddress{{Email: "jane@x.com"}}, msg.To)
		assert.Equal(t, "Password reset", msg.Subject)
		assert.Equal(t, "<p>123456</p>", msg.HTMLContent)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"messageId":"<1@brevo>"}`))
	}))
	defer server.Close()

	client, err := NewBrevoClient("brevo-key", server.URL, Sender{Name: "DockMap", Address: "noreply@dockmap.ru"}, time.Second)
	require.NoError(t, err)

	assert.NoError(t, client.SendEmail(context.Background(), "jane@x.com", "Password reset", "<p>123456</p>"))
}

func TestBrevoClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := NewBrevoClient("bad", server.URL, Sender{Address: "noreply@dockmap.ru"}, time.Second)
	require.NoError(t, err)

	assert.Error(t, client.SendEmail(context.Background(), "jane@x.com", "s", "b"))
}

func TestClientsRequireCredentials(t *testing.T) {
	_, err := NewSMSRuClient("", "", "http://localhost", time.Second)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewTwilioClient("AC123", "", "+1555", "http://localhost", time.Second)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewBrevoClient("", "http://localhost", Sender{}, time.Second)
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewSMTPClient("", 587, "", "", Sender{}, time.Second)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
