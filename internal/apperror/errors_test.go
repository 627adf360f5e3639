package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByKind(t *testing.T) {
	err := New(KindUnauthorized, "invalid code")

	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.False(t, errors.Is(err, ErrConflict))
}

func TestErrorIsWalksCauseChain(t *testing.T) {
	cause := New(KindExpired, "code expired")
	err := fmt.Errorf("verify: %w", Wrap(cause, KindUnauthorized, "code expired"))

	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.True(t, errors.Is(err, ErrExpired))
	assert.Equal(t, KindUnauthorized, KindOf(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", ErrInvalidInput, http.StatusBadRequest},
		{"invalid code", ErrInvalidCode, http.StatusBadRequest},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"token expired", ErrTokenExpired, http.StatusUnauthorized},
		{"signature", ErrInvalidSignature, http.StatusUnauthorized},
		{"conflict", ErrConflict, http.StatusConflict},
		{"upstream", ErrUpstreamUnavailable, http.StatusBadGateway},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestMessageOfHidesInternalErrors(t *testing.T) {
	assert.Equal(t, "internal server error", MessageOf(errors.New("pq: connection refused")))
	assert.Equal(t, "internal server error", MessageOf(Wrap(errors.New("x"), KindInternal, "db down")))
	assert.Equal(t, "invalid credentials", MessageOf(New(KindUnauthorized, "invalid credentials")))
}
