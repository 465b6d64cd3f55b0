package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/repository/specification"
	"ai-tutor-be/pkg/events"
	"ai-tutor-be/pkg/learning"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProgressRepo struct {
	mu       sync.Mutex
	failures int // Remaining failing calls
	calls    int
	gaps     []*entity.ConceptualGap
	resolved []string
	appended chan struct{}
}

func newFakeProgressRepo(failures int) *fakeProgressRepo {
	return &fakeProgressRepo{failures: failures, appended: make(chan struct{}, 10)}
}

func (r *fakeProgressRepo) AppendGap(ctx context.Context, gap *entity.ConceptualGap) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failures > 0 {
		r.failures--
		return errors.New("connection reset")
	}
	r.gaps = append(r.gaps, gap)
	r.appended <- struct{}{}
	return nil
}

func (r *fakeProgressRepo) ListGaps(ctx context.Context, specs ...specification.Specification) ([]*entity.ConceptualGap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*entity.ConceptualGap(nil), r.gaps...), nil
}

func (r *fakeProgressRepo) MarkResolved(ctx context.Context, userID, concept string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.gaps {
		if g.UserId == userID && g.Concept == concept && g.ResolvedAt == nil {
			g.ResolvedAt = &at
			r.resolved = append(r.resolved, concept)
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeProgressRepo) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeEventPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakeEventPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakeEventPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

func sampleGap() learning.ConceptualGap {
	now := time.Now()
	return learning.ConceptualGap{
		Key:             learning.NewGapKey("u1", "loop termination"),
		Category:        "control flow",
		Severity:        learning.SeverityModerate,
		Evidence:        []string{"while True without break"},
		DetectedFrom:    learning.SourceCode,
		Occurrences:     1,
		FirstDetectedAt: now,
		LastSeenAt:      now,
	}
}

func startConsumer(t *testing.T, repo *fakeProgressRepo, pub EventPublisher, maxRetries int) IPublisherService {
	t.Helper()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = pubSub.Close()
	})

	cs := NewConsumerService(pubSub, "gaps", repo, pub, maxRetries, logger.NewNopLogger()).(*consumerService)
	cs.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	require.NoError(t, cs.Consume(ctx))

	return NewPublisherService("gaps", pubSub)
}

func TestForwardedGapIsRecorded(t *testing.T) {
	repo := newFakeProgressRepo(2)
	pub := &fakeEventPublisher{}
	publisher := startConsumer(t, repo, pub, 5)

	NewGapForwarder(publisher, logger.NewNopLogger()).Forward(sampleGap())

	select {
	case <-repo.appended:
	case <-time.After(2 * time.Second):
		t.Fatal("gap was not recorded")
	}
	assert.Equal(t, 3, repo.Calls(), "two failures then success")
	require.Len(t, repo.gaps, 1)
	assert.Equal(t, "loop termination", repo.gaps[0].Concept)
	assert.Equal(t, "moderate", repo.gaps[0].Severity)

	assert.Eventually(t, func() bool {
		types := pub.Types()
		return len(types) == 1 && types[0] == events.EventGapRecorded
	}, time.Second, 5*time.Millisecond)
}

func TestForwardedGapDroppedAfterRetries(t *testing.T) {
	repo := newFakeProgressRepo(100)
	pub := &fakeEventPublisher{}
	publisher := startConsumer(t, repo, pub, 3)

	NewGapForwarder(publisher, logger.NewNopLogger()).Forward(sampleGap())

	assert.Eventually(t, func() bool { return repo.Calls() == 3 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, repo.Calls())
	assert.Empty(t, pub.Types())
}

func TestMalformedForwardIsAcked(t *testing.T) {
	repo := newFakeProgressRepo(0)
	publisher := startConsumer(t, repo, nil, 3)

	raw, err := json.Marshal(map[string]string{"key": "not a gap key"})
	require.NoError(t, err)
	require.NoError(t, publisher.Publish(context.Background(), raw))
	require.NoError(t, publisher.Publish(context.Background(), []byte("{")))

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, repo.Calls())
}
