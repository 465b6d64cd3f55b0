package contract

import (
	"context"
	"errors"

	"ai-tutor-be/pkg/learning"
)

// ErrSessionNotFound is returned when a session is absent or expired
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists live learning sessions. Implementations expire
// sessions that were not written for the configured TTL.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*learning.Session, error)
	Put(ctx context.Context, session *learning.Session) error
	Delete(ctx context.Context, sessionID string) error
}
