package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/pkg/learning"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const storeTimeout = 2 * time.Second

// lockEntry serializes queries of one session. refs counts holders and
// waiters so the entry can be dropped once nobody needs it.
type lockEntry struct {
	mu     sync.Mutex
	refs   int
	cancel context.CancelFunc // In-flight query, nil when idle
}

// Manager owns session lifecycles. Queries on one session run one at a
// time; different sessions never contend.
type Manager struct {
	store  contract.SessionStore
	local  *cache.Cache // Last known state, used while the store is down
	now    func() time.Time
	logger logger.ILogger

	mu    sync.Mutex
	locks map[string]*lockEntry
}

// NewManager creates a session manager over store. Sessions idle for
// longer than ttl are forgotten by the local fallback too.
func NewManager(store contract.SessionStore, ttl time.Duration, log logger.ILogger) *Manager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Manager{
		store:  store,
		local:  cache.New(ttl, 10*time.Minute),
		now:    time.Now,
		logger: log,
		locks:  make(map[string]*lockEntry),
	}
}

// Create starts a session for userID in the default mode. A store failure
// here is fatal: there is no session to answer from.
func (m *Manager) Create(ctx context.Context, userID string) (*learning.Session, error) {
	s := learning.NewSession(uuid.NewString(), userID, m.now())

	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := m.store.Put(sctx, s); err != nil {
		m.logger.Error("SESSION", "Failed to create session", map[string]interface{}{
			"session_id": s.ID,
			"error":      err.Error(),
			"timestamp":  m.now().UTC().Format(time.RFC3339),
		})
		return nil, learning.ErrSessionStoreUnavailable.Wrap(err)
	}
	m.local.SetDefault(s.ID, s)

	m.logger.Info("SESSION", "Session created", map[string]interface{}{
		"session_id": s.ID,
		"mode":       s.Mode,
	})
	return s, nil
}

// With runs fn while holding the session exclusively. The handle passed
// to fn must not be retained after fn returns. The context given to fn is
// cancelled when the session is ended.
func (m *Manager) With(ctx context.Context, sessionID string, fn func(ctx context.Context, s *learning.Session) error) error {
	e := m.acquire(sessionID)
	defer m.release(sessionID, e)

	s, err := m.load(ctx, sessionID)
	if err != nil {
		return err
	}

	qctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	e.cancel = cancel
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		e.cancel = nil
		m.mu.Unlock()
		cancel()
	}()

	fnErr := fn(qctx, s)

	// Ended while fn ran: the session is gone, nothing to save
	if qctx.Err() != nil && ctx.Err() == nil {
		return fnErr
	}
	m.save(ctx, s)
	return fnErr
}

// End cancels the in-flight query, waits for it to finish and removes the
// session. The returned session keeps aggregate counts only.
func (m *Manager) End(ctx context.Context, sessionID string) (*learning.Session, error) {
	m.mu.Lock()
	e := m.entry(sessionID)
	if e.cancel != nil {
		e.cancel()
	}
	m.mu.Unlock()

	e.mu.Lock()
	defer m.release(sessionID, e)

	s, err := m.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.ClearSensitive(m.now())
	m.local.Delete(sessionID)

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := m.store.Delete(sctx, sessionID); err != nil {
		m.logger.Warn("SESSION", "Failed to delete session from store", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
			"timestamp":  m.now().UTC().Format(time.RFC3339),
		})
	}

	m.logger.Info("SESSION", "Session ended", map[string]interface{}{
		"session_id":  sessionID,
		"query_count": s.QueryCount,
		"open_gaps":   s.OpenGapCount(),
	})
	return s, nil
}

// entry returns the lock entry for id with one more reference. Caller
// holds m.mu.
func (m *Manager) entry(id string) *lockEntry {
	e, ok := m.locks[id]
	if !ok {
		e = &lockEntry{}
		m.locks[id] = e
	}
	e.refs++
	return e
}

func (m *Manager) acquire(id string) *lockEntry {
	m.mu.Lock()
	e := m.entry(id)
	m.mu.Unlock()
	e.mu.Lock()
	return e
}

func (m *Manager) release(id string, e *lockEntry) {
	e.mu.Unlock()
	m.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(m.locks, id)
	}
	m.mu.Unlock()
}

// load reads the session from the store, falling back to the local copy
// when the store cannot be reached or holds an older revision.
func (m *Manager) load(ctx context.Context, id string) (*learning.Session, error) {
	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	s, err := m.store.Get(sctx, id)
	if err == nil {
		// Writes made during an outage are newer than the store's copy
		if x, ok := m.local.Get(id); ok {
			if l := x.(*learning.Session); l.Revision > s.Revision {
				return l, nil
			}
		}
		return s, nil
	}
	if errors.Is(err, contract.ErrSessionNotFound) {
		m.local.Delete(id)
		return nil, learning.ErrSessionNotFound.Wrap(err)
	}

	m.logger.Warn("SESSION", "Session store unavailable, using local copy", map[string]interface{}{
		"session_id": id,
		"error":      err.Error(),
		"timestamp":  m.now().UTC().Format(time.RFC3339),
	})
	if x, ok := m.local.Get(id); ok {
		return x.(*learning.Session), nil
	}
	return nil, learning.ErrSessionNotFound.Wrap(err)
}

// save writes best effort. The local copy is always refreshed so the
// next query can proceed if the store stays down.
func (m *Manager) save(ctx context.Context, s *learning.Session) {
	s.Revision++
	m.local.SetDefault(s.ID, s)

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := m.store.Put(sctx, s); err != nil {
		m.logger.Warn("SESSION", "Failed to save session", map[string]interface{}{
			"session_id": s.ID,
			"error":      err.Error(),
			"timestamp":  m.now().UTC().Format(time.RFC3339),
		})
	}
}
