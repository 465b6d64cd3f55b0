package specification

import "gorm.io/gorm"

// ByUserID filters gaps by learner id
type ByUserID struct {
	UserID string
}

func (s ByUserID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

type ByConcept struct {
	Concept string
}

func (s ByConcept) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("concept = ?", s.Concept)
}

// Unresolved keeps gaps without an explicit resolution
type Unresolved struct{}

func (s Unresolved) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("resolved_at IS NULL")
}

// BySeverityRank orders critical gaps first, then by recency
type BySeverityRank struct{}

func (s BySeverityRank) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("CASE severity WHEN 'critical' THEN 3 WHEN 'moderate' THEN 2 ELSE 1 END DESC").
		Order("last_seen_at DESC")
}
