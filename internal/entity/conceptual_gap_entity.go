package entity

import (
	"time"

	"github.com/google/uuid"
)

type ConceptualGap struct {
	Id              uuid.UUID
	UserId          string
	Concept         string
	Category        string
	Severity        string
	Evidence        []string
	RelatedConcepts []string
	DetectedFrom    string
	Occurrences     int
	FirstDetectedAt time.Time
	LastSeenAt      time.Time
	ResolvedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       *time.Time
}
