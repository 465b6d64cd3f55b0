package service

import (
	"context"
	"fmt"
	"time"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/mapper"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/internal/repository/specification"
	"ai-tutor-be/pkg/events"
	"ai-tutor-be/pkg/learning"
)

type IProgressService interface {
	ListGaps(ctx context.Context, userID string, q dto.GapListQuery) ([]learning.ConceptualGap, error)
	Resolve(ctx context.Context, userID, concept string) (bool, error)
	HandleGapResolved(ctx context.Context, event events.Event) error
}

type progressService struct {
	repo   contract.ProgressRepository
	events EventPublisher // Optional
	mapper *mapper.ConceptualGapMapper
	now    func() time.Time
	logger logger.ILogger
}

func NewProgressService(repo contract.ProgressRepository, eventPublisher EventPublisher, log logger.ILogger) IProgressService {
	return &progressService{
		repo:   repo,
		events: eventPublisher,
		mapper: mapper.NewConceptualGapMapper(),
		now:    time.Now,
		logger: log,
	}
}

func (s *progressService) ListGaps(ctx context.Context, userID string, q dto.GapListQuery) ([]learning.ConceptualGap, error) {
	specs := []specification.Specification{specification.ByUserID{UserID: userID}}
	if !q.IncludeResolved {
		specs = append(specs, specification.Unresolved{})
	}
	specs = append(specs,
		specification.BySeverityRank{},
		specification.Pagination{Limit: q.Limit, Offset: q.Offset},
	)

	records, err := s.repo.ListGaps(ctx, specs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list gaps for user: %w", err)
	}

	out := make([]learning.ConceptualGap, 0, len(records))
	for _, r := range records {
		out = append(out, s.mapper.ToDomain(r))
	}
	return out, nil
}

// Resolve closes the open gap in the Progress Store and announces it
func (s *progressService) Resolve(ctx context.Context, userID, concept string) (bool, error) {
	key := learning.NewGapKey(userID, concept)
	ok, err := s.repo.MarkResolved(ctx, key.UserID, key.Concept, s.now())
	if err != nil {
		return false, fmt.Errorf("failed to resolve gap: %w", err)
	}
	if ok && s.events != nil {
		if err := s.events.Publish(ctx, events.NewGapResolved(key.UserID, key.Concept, s.now())); err != nil {
			s.logger.Warn("PROGRESS", "Failed to publish resolution", map[string]interface{}{
				"gap":   key.String(),
				"error": err.Error(),
			})
		}
	}
	return ok, nil
}

// HandleGapResolved applies a resolution announced by another service.
// Already resolved gaps are acknowledged without error.
func (s *progressService) HandleGapResolved(ctx context.Context, event events.Event) error {
	key, err := events.GapResolution(event)
	if err != nil {
		s.logger.Warn("PROGRESS", "Ignoring malformed resolution event", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	ok, err := s.repo.MarkResolved(ctx, key.UserID, key.Concept, event.Timestamp())
	if err != nil {
		return err
	}
	s.logger.Info("PROGRESS", "Resolution event applied", map[string]interface{}{
		"gap":     key.String(),
		"changed": ok,
	})
	return nil
}
