package implementation

import (
	"context"
	"errors"
	"time"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/mapper"
	"ai-tutor-be/internal/model"
	"ai-tutor-be/internal/repository/contract"
	"ai-tutor-be/internal/repository/specification"

	"gorm.io/gorm"
)

type ProgressRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ConceptualGapMapper
}

func NewProgressRepository(db *gorm.DB) contract.ProgressRepository {
	return &ProgressRepositoryImpl{
		db:     db,
		mapper: mapper.NewConceptualGapMapper(),
	}
}

func (r *ProgressRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ProgressRepositoryImpl) AppendGap(ctx context.Context, gap *entity.ConceptualGap) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.ConceptualGap
		query := r.applySpecifications(tx,
			specification.ByUserID{UserID: gap.UserId},
			specification.ByConcept{Concept: gap.Concept},
			specification.Unresolved{},
		)
		err := query.First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			m := r.mapper.ToModel(gap)
			if err := tx.Create(m).Error; err != nil {
				return err
			}
			*gap = *r.mapper.ToEntity(m)
			return nil
		}
		if err != nil {
			return err
		}

		// The session ledger is authoritative for the fields it tracks
		existing.Category = gap.Category
		existing.Severity = gap.Severity
		existing.Evidence = gap.Evidence
		existing.RelatedConcepts = gap.RelatedConcepts
		existing.Occurrences = gap.Occurrences
		existing.LastSeenAt = gap.LastSeenAt
		if err := tx.Save(&existing).Error; err != nil {
			return err
		}
		*gap = *r.mapper.ToEntity(&existing)
		return nil
	})
}

func (r *ProgressRepositoryImpl) ListGaps(ctx context.Context, specs ...specification.Specification) ([]*entity.ConceptualGap, error) {
	var models []*model.ConceptualGap
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *ProgressRepositoryImpl) MarkResolved(ctx context.Context, userID, concept string, at time.Time) (bool, error) {
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ConceptualGap{}),
		specification.ByUserID{UserID: userID},
		specification.ByConcept{Concept: concept},
		specification.Unresolved{},
	)
	res := query.Update("resolved_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
