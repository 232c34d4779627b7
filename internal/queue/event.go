// Package queue carries auth audit events over RabbitMQ: a publisher used by
// the session guard and a consumer that appends them to a log file.
package queue

// Event types published on the auth.events queue.
const (
	EventRegistered     = "registered"
	EventLoggedIn       = "logged_in"
	EventLoggedOut      = "logged_out"
	EventSessionExpired = "session_expired"
)

// AuthEvent describes one session lifecycle transition.  It never carries
// passwords or token material.
type AuthEvent struct {
	Type       string `json:"type"`
	AccountID  uint64 `json:"account_id"`
	Identity   string `json:"identity,omitempty"`
	Role       string `json:"role,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
