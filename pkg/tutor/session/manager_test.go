package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/internal/repository/memory"
	"ai-tutor-be/pkg/learning"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

// flakyStore wraps the memory store and can be switched off
type flakyStore struct {
	contract.SessionStore
	down atomic.Bool
}

var errStoreDown = errors.New("connection refused")

func (f *flakyStore) Get(ctx context.Context, id string) (*learning.Session, error) {
	if f.down.Load() {
		return nil, errStoreDown
	}
	return f.SessionStore.Get(ctx, id)
}

func (f *flakyStore) Put(ctx context.Context, s *learning.Session) error {
	if f.down.Load() {
		return errStoreDown
	}
	return f.SessionStore.Put(ctx, s)
}

func newTestManager() (*Manager, *flakyStore) {
	store := &flakyStore{SessionStore: memory.NewSessionRepository(time.Hour)}
	return NewManager(store, time.Hour, logger.NewNopLogger()), store
}

func TestCreateAndWith(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	s, err := m.Create(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, learning.ModeConcept, s.Mode)

	err = m.With(ctx, s.ID, func(ctx context.Context, s *learning.Session) error {
		s.QueryCount++
		s.Mode = learning.ModeExam
		return nil
	})
	require.NoError(t, err)

	err = m.With(ctx, s.ID, func(ctx context.Context, got *learning.Session) error {
		assert.Equal(t, 1, got.QueryCount)
		assert.Equal(t, learning.ModeExam, got.Mode)
		assert.Equal(t, "u1", got.UserID)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, m.locks)
}

func TestCreateFailsWhenStoreDown(t *testing.T) {
	m, store := newTestManager()
	store.down.Store(true)

	s, err := m.Create(context.Background(), "u1")

	assert.Nil(t, s)
	assert.ErrorIs(t, err, learning.ErrSessionStoreUnavailable)
	assert.Equal(t, learning.KindFatal, learning.KindOf(err))
}

func TestWithUnknownSession(t *testing.T) {
	m, _ := newTestManager()

	called := false
	err := m.With(context.Background(), "missing", func(context.Context, *learning.Session) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, learning.ErrSessionNotFound)
	assert.False(t, called)
}

func TestWithPropagatesFnError(t *testing.T) {
	m, _ := newTestManager()
	s, err := m.Create(context.Background(), "u1")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = m.With(context.Background(), s.ID, func(context.Context, *learning.Session) error { return boom })

	assert.ErrorIs(t, err, boom)
}

func TestQueriesOnOneSessionAreSerialized(t *testing.T) {
	m, _ := newTestManager()
	s, err := m.Create(context.Background(), "u1")
	require.NoError(t, err)

	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	const n = 20
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.With(context.Background(), s.ID, func(ctx context.Context, s *learning.Session) error {
				cur := active.Add(1)
				defer active.Add(-1)
				if cur > maxActive.Load() {
					maxActive.Store(cur)
				}
				time.Sleep(time.Millisecond)
				s.QueryCount++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
	err = m.With(context.Background(), s.ID, func(_ context.Context, got *learning.Session) error {
		assert.Equal(t, n, got.QueryCount)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, m.locks)
}

func TestDifferentSessionsDoNotContend(t *testing.T) {
	m, _ := newTestManager()
	a, err := m.Create(context.Background(), "u1")
	require.NoError(t, err)
	b, err := m.Create(context.Background(), "u2")
	require.NoError(t, err)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- m.With(context.Background(), a.ID, func(context.Context, *learning.Session) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	finished := make(chan struct{})
	go func() {
		_ = m.With(context.Background(), b.ID, func(context.Context, *learning.Session) error { return nil })
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("query on another session was blocked")
	}
	close(release)
	require.NoError(t, <-done)
}

func TestEndCancelsInFlightQuery(t *testing.T) {
	m, _ := newTestManager()
	s, err := m.Create(context.Background(), "u1")
	require.NoError(t, err)

	require.NoError(t, m.With(context.Background(), s.ID, func(_ context.Context, s *learning.Session) error {
		s.QueryCount = 3
		s.Window = append(s.Window, learning.Interaction{Query: learning.Query{Text: "private question"}})
		return nil
	}))

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- m.With(context.Background(), s.ID, func(ctx context.Context, _ *learning.Session) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		})
	}()
	<-started

	ended, err := m.End(context.Background(), s.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, 3, ended.QueryCount, "aggregate metrics kept")
	assert.Empty(t, ended.Window, "learner content cleared")
	assert.NotNil(t, ended.EndedAt)

	err = m.With(context.Background(), s.ID, func(context.Context, *learning.Session) error { return nil })
	assert.ErrorIs(t, err, learning.ErrSessionNotFound)
	assert.Empty(t, m.locks)
}

func TestStoreOutageFallsBackToLocalCopy(t *testing.T) {
	m, store := newTestManager()
	s, err := m.Create(context.Background(), "u1")
	require.NoError(t, err)

	store.down.Store(true)
	for i := 0; i < 2; i++ {
		err = m.With(context.Background(), s.ID, func(_ context.Context, s *learning.Session) error {
			s.QueryCount++
			s.LastActivityAt = time.Now().Add(time.Duration(i+1) * time.Second)
			return nil
		})
		require.NoError(t, err)
	}

	store.down.Store(false)
	err = m.With(context.Background(), s.ID, func(_ context.Context, got *learning.Session) error {
		assert.Equal(t, 2, got.QueryCount)
		return nil
	})
	require.NoError(t, err)

	fromStore, err := store.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, fromStore.QueryCount, "resynced after the outage")
}

func TestModeSetDuringOutageSurvivesRecovery(t *testing.T) {
	m, store := newTestManager()
	s, err := m.Create(context.Background(), "u1")
	require.NoError(t, err)

	store.down.Store(true)
	require.NoError(t, m.With(context.Background(), s.ID, func(_ context.Context, s *learning.Session) error {
		s.Mode = learning.ModeExam
		return nil
	}))

	store.down.Store(false)
	require.NoError(t, m.With(context.Background(), s.ID, func(_ context.Context, got *learning.Session) error {
		assert.Equal(t, learning.ModeExam, got.Mode)
		return nil
	}))

	fromStore, err := store.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, learning.ModeExam, fromStore.Mode, "resynced after the outage")
}
