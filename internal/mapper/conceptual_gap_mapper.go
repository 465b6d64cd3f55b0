package mapper

import (
	"time"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/model"
	"ai-tutor-be/pkg/learning"
)

type ConceptualGapMapper struct{}

func NewConceptualGapMapper() *ConceptualGapMapper {
	return &ConceptualGapMapper{}
}

func (m *ConceptualGapMapper) ToEntity(g *model.ConceptualGap) *entity.ConceptualGap {
	if g == nil {
		return nil
	}

	var updatedAt *time.Time
	if !g.UpdatedAt.IsZero() {
		t := g.UpdatedAt
		updatedAt = &t
	}

	return &entity.ConceptualGap{
		Id:              g.Id,
		UserId:          g.UserId,
		Concept:         g.Concept,
		Category:        g.Category,
		Severity:        g.Severity,
		Evidence:        append([]string(nil), g.Evidence...),
		RelatedConcepts: append([]string(nil), g.RelatedConcepts...),
		DetectedFrom:    g.DetectedFrom,
		Occurrences:     g.Occurrences,
		FirstDetectedAt: g.FirstDetectedAt,
		LastSeenAt:      g.LastSeenAt,
		ResolvedAt:      g.ResolvedAt,
		CreatedAt:       g.CreatedAt,
		UpdatedAt:       updatedAt,
	}
}

func (m *ConceptualGapMapper) ToModel(g *entity.ConceptualGap) *model.ConceptualGap {
	if g == nil {
		return nil
	}

	var updatedAt time.Time
	if g.UpdatedAt != nil {
		updatedAt = *g.UpdatedAt
	}

	return &model.ConceptualGap{
		Id:              g.Id,
		UserId:          g.UserId,
		Concept:         g.Concept,
		Category:        g.Category,
		Severity:        g.Severity,
		Evidence:        g.Evidence,
		RelatedConcepts: g.RelatedConcepts,
		DetectedFrom:    g.DetectedFrom,
		Occurrences:     g.Occurrences,
		FirstDetectedAt: g.FirstDetectedAt,
		LastSeenAt:      g.LastSeenAt,
		ResolvedAt:      g.ResolvedAt,
		CreatedAt:       g.CreatedAt,
		UpdatedAt:       updatedAt,
	}
}

func (m *ConceptualGapMapper) ToEntities(models []*model.ConceptualGap) []*entity.ConceptualGap {
	out := make([]*entity.ConceptualGap, len(models))
	for i, g := range models {
		out[i] = m.ToEntity(g)
	}
	return out
}

// FromDomain converts a finalized gap into a storable entity
func (m *ConceptualGapMapper) FromDomain(g *learning.ConceptualGap) *entity.ConceptualGap {
	return &entity.ConceptualGap{
		UserId:          g.Key.UserID,
		Concept:         g.Key.Concept,
		Category:        g.Category,
		Severity:        string(g.Severity),
		Evidence:        append([]string(nil), g.Evidence...),
		RelatedConcepts: append([]string(nil), g.RelatedConcepts...),
		DetectedFrom:    string(g.DetectedFrom),
		Occurrences:     g.Occurrences,
		FirstDetectedAt: g.FirstDetectedAt,
		LastSeenAt:      g.LastSeenAt,
		ResolvedAt:      g.ResolvedAt,
	}
}

func (m *ConceptualGapMapper) ToDomain(g *entity.ConceptualGap) learning.ConceptualGap {
	return learning.ConceptualGap{
		Key:             learning.GapKey{UserID: g.UserId, Concept: g.Concept},
		Category:        g.Category,
		Severity:        learning.Severity(g.Severity),
		Evidence:        g.Evidence,
		RelatedConcepts: g.RelatedConcepts,
		DetectedFrom:    learning.GapSource(g.DetectedFrom),
		Occurrences:     g.Occurrences,
		FirstDetectedAt: g.FirstDetectedAt,
		LastSeenAt:      g.LastSeenAt,
		ResolvedAt:      g.ResolvedAt,
	}
}
