package entities

import "time"

// Session is an authenticated session issued by the auth boundary
type Session struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Email     string    `json:"email" db:"email"`
	Token     string    `json:"token,omitempty" db:"-"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Expired reports whether the session is no longer valid at now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionEventKind enumerates session-change notifications
type SessionEventKind string

const (
	SessionEventSignedIn       SessionEventKind = "signed_in"
	SessionEventSignedOut      SessionEventKind = "signed_out"
	SessionEventExpired        SessionEventKind = "expired"
	SessionEventProfileUpdated SessionEventKind = "profile_updated"
)

// SessionEvent is published by the auth boundary whenever a session or the
// profile behind it changes
type SessionEvent struct {
	ID         string           `json:"id"`
	Kind       SessionEventKind `json:"kind"`
	SessionID  string           `json:"session_id,omitempty"`
	UserID     string           `json:"user_id"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// Ends reports whether the event terminates the session it refers to
func (e *SessionEvent) Ends() bool {
	return e.Kind == SessionEventSignedOut || e.Kind == SessionEventExpired
}
