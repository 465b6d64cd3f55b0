package service

import (
	"context"
	"testing"
	"time"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/events"
	"ai-tutor-be/pkg/learning"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededRepo(concepts ...string) *fakeProgressRepo {
	repo := newFakeProgressRepo(0)
	now := time.Now()
	for _, c := range concepts {
		repo.gaps = append(repo.gaps, &entity.ConceptualGap{
			UserId:          "u1",
			Concept:         c,
			Category:        "control flow",
			Severity:        string(learning.SeverityModerate),
			DetectedFrom:    string(learning.SourceCode),
			Occurrences:     1,
			FirstDetectedAt: now,
			LastSeenAt:      now,
		})
	}
	return repo
}

func TestResolvePublishesOnce(t *testing.T) {
	repo := seededRepo("loop termination")
	pub := &fakeEventPublisher{}
	svc := NewProgressService(repo, pub, logger.NewNopLogger())

	ok, err := svc.Resolve(context.Background(), "u1", "  Loop Termination. ")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Resolve(context.Background(), "u1", "loop termination")
	require.NoError(t, err)
	assert.False(t, ok, "already resolved")

	assert.Equal(t, []string{events.EventGapResolved}, pub.Types())
}

func TestResolveWithoutEventPublisher(t *testing.T) {
	repo := seededRepo("recursion base case")
	svc := NewProgressService(repo, nil, logger.NewNopLogger())

	ok, err := svc.Resolve(context.Background(), "u1", "recursion base case")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHandleGapResolvedIsIdempotent(t *testing.T) {
	repo := seededRepo("loop termination")
	svc := NewProgressService(repo, nil, logger.NewNopLogger())
	e := events.NewGapResolved("u1", "loop termination", time.Now())

	require.NoError(t, svc.HandleGapResolved(context.Background(), e))
	require.NoError(t, svc.HandleGapResolved(context.Background(), e))

	assert.Equal(t, []string{"loop termination"}, repo.resolved)
}

func TestHandleGapResolvedIgnoresMalformedEvent(t *testing.T) {
	repo := seededRepo("loop termination")
	svc := NewProgressService(repo, nil, logger.NewNopLogger())

	err := svc.HandleGapResolved(context.Background(), events.BaseEvent{
		Type: events.EventGapResolved,
		Data: map[string]interface{}{"user_id": "u1"},
	})

	assert.NoError(t, err)
	assert.Empty(t, repo.resolved)
}

func TestListGapsMapsRecords(t *testing.T) {
	repo := seededRepo("loop termination", "variable scope")
	svc := NewProgressService(repo, nil, logger.NewNopLogger())

	gaps, err := svc.ListGaps(context.Background(), "u1", dto.GapListQuery{Limit: 10})
	require.NoError(t, err)

	require.Len(t, gaps, 2)
	assert.Equal(t, learning.NewGapKey("u1", "loop termination"), gaps[0].Key)
	assert.Equal(t, learning.SeverityModerate, gaps[0].Severity)
	assert.Equal(t, learning.SourceCode, gaps[0].DetectedFrom)
}
