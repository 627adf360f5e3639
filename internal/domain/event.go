package domain

import "time"

// EventType names an auth lifecycle event
type EventType string

const (
	EventUserRegistered      EventType = "user.registered"
	EventUserLoggedIn        EventType = "user.logged_in"
	EventUserLoggedOut       EventType = "user.logged_out"
	EventUserSessionsRevoked EventType = "user.sessions_revoked"
	EventUserPasswordReset   EventType = "user.password_reset"
)

// AuthEvent is published to downstream consumers after a state change
type AuthEvent struct {
	Type       EventType    `json:"type"`
	UserID     string       `json:"user_id"`
	Provider   AuthProvider `json:"provider,omitempty"`
	IPAddress  string       `json:"ip_address,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}
