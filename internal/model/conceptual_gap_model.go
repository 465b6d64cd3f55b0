package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ConceptualGap is the Progress Store record of a learner gap. At most one
// open record exists per user and concept.
type ConceptualGap struct {
	Id              uuid.UUID                   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId          string                      `gorm:"type:varchar(64);not null;index;uniqueIndex:idx_conceptual_gaps_open,where:resolved_at IS NULL"`
	Concept         string                      `gorm:"type:varchar(200);not null;uniqueIndex:idx_conceptual_gaps_open,where:resolved_at IS NULL"`
	Category        string                      `gorm:"type:varchar(100);not null;index"`
	Severity        string                      `gorm:"type:varchar(20);not null"`
	Evidence        datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	RelatedConcepts datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	DetectedFrom    string                      `gorm:"type:varchar(20);not null"`
	Occurrences     int                         `gorm:"not null;default:1"`
	FirstDetectedAt time.Time                   `gorm:"not null"`
	LastSeenAt      time.Time                   `gorm:"not null;index"`
	ResolvedAt      *time.Time                  `gorm:"index"`
	CreatedAt       time.Time                   `gorm:"autoCreateTime"`
	UpdatedAt       time.Time                   `gorm:"autoUpdateTime"`
}

func (ConceptualGap) TableName() string {
	return "conceptual_gaps"
}
