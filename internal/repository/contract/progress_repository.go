package contract

import (
	"context"
	"time"

	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/repository/specification"
)

// ProgressRepository is the long-lived record of learner gaps
type ProgressRepository interface {
	// AppendGap inserts the gap or merges it into the open record for the
	// same user and concept.
	AppendGap(ctx context.Context, gap *entity.ConceptualGap) error
	ListGaps(ctx context.Context, specs ...specification.Specification) ([]*entity.ConceptualGap, error)
	// MarkResolved closes the open gap. It reports false when none is open.
	MarkResolved(ctx context.Context, userID, concept string, at time.Time) (bool, error)
}
