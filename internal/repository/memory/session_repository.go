package memory

import (
	"context"
	"fmt"
	"time"

	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/pkg/learning"

	"github.com/patrickmn/go-cache"
)

// SessionRepository keeps encoded sessions in process memory. Sessions
// are stored encoded so callers never share state with the store.
type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository(ttl time.Duration) contract.SessionStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	// Purge expired sessions every 10 minutes
	c := cache.New(ttl, 10*time.Minute)
	return &SessionRepository{
		cache: c,
	}
}

func (r *SessionRepository) Put(ctx context.Context, session *learning.Session) error {
	data, err := session.MarshalForStore()
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", session.ID, err)
	}
	r.cache.Set(session.ID, data, cache.DefaultExpiration)
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, sessionID string) (*learning.Session, error) {
	x, found := r.cache.Get(sessionID)
	if !found {
		return nil, contract.ErrSessionNotFound
	}
	s, err := learning.UnmarshalSession(x.([]byte))
	if err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return s, nil
}

func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	r.cache.Delete(sessionID)
	return nil
}
