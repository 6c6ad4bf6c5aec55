package types

import "time"

// AuthEventType names a diagnostic authentication event.
type AuthEventType string

const (
	EventLoginSucceeded AuthEventType = "login_succeeded"
	EventLoginFailed    AuthEventType = "login_failed"
	EventTokenRejected  AuthEventType = "token_rejected"
)

// AuthEvent is published to the message queue after login and validation
// attempts. It carries no credentials and no token material.
type AuthEvent struct {
	Type AuthEventType `json:"type"`

	// Username is set for login events.
	Username string `json:"username,omitempty"`

	// Subject is set when a user ID is known.
	Subject string `json:"subject,omitempty"`

	// Code is the machine-readable failure code, empty on success.
	Code string `json:"code,omitempty"`

	RequestID  string    `json:"request_id,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
