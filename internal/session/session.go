// Package session holds per-browser interactive state: whether the visitor
// passed the login form, who they said they are, and their theme choice.
package session

import (
	"context"
	"time"
)

// CookieName carries the session ID between requests.
const CookieName = "malariascope_session"

// Session is the mutable context of one interactive session.
type Session struct {
	ID            string
	Authenticated bool
	User          string // empty while unauthenticated
	DarkMode      bool
	CreatedAt     time.Time
	LastSeen      time.Time
}

// Defaults returns a fresh session: unauthenticated, no user, light theme.
func Defaults(id string, now time.Time) *Session {
	return &Session{
		ID:            id,
		Authenticated: false,
		User:          "",
		DarkMode:      false,
		CreatedAt:     now,
		LastSeen:      now,
	}
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying sess.
func NewContext(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the session stored by NewContext.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(*Session)
	return sess, ok
}
