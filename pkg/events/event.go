package events

import (
	"errors"
	"strings"
	"time"

	"ai-tutor-be/pkg/learning"
)

const (
	EventGapRecorded = "GAP_RECORDED"
	EventGapResolved = "GAP_RESOLVED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "GAP_RECORDED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewGapRecorded announces a gap that reached the Progress Store
func NewGapRecorded(g learning.ConceptualGap, at time.Time) BaseEvent {
	return BaseEvent{
		Type: EventGapRecorded,
		Data: map[string]interface{}{
			"user_id":     g.Key.UserID,
			"concept":     g.Key.Concept,
			"category":    g.Category,
			"severity":    string(g.Severity),
			"source":      string(g.DetectedFrom),
			"occurrences": g.Occurrences,
			"occurred_at": at.UTC().Format(time.RFC3339),
		},
		OccurredAt: at,
	}
}

// NewGapResolved announces an explicit resolution
func NewGapResolved(userID, concept string, at time.Time) BaseEvent {
	return BaseEvent{
		Type: EventGapResolved,
		Data: map[string]interface{}{
			"user_id":     userID,
			"concept":     learning.NormalizeConcept(concept),
			"occurred_at": at.UTC().Format(time.RFC3339),
		},
		OccurredAt: at,
	}
}

// GapResolution extracts the resolved key from a GAP_RESOLVED event
func GapResolution(e Event) (learning.GapKey, error) {
	data := e.Payload()
	userID, _ := data["user_id"].(string)
	concept, _ := data["concept"].(string)
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(concept) == "" {
		return learning.GapKey{}, errors.New("gap resolution event needs user_id and concept")
	}
	return learning.NewGapKey(userID, concept), nil
}
