package learning

import (
	"encoding/json"
	"time"
)

// Session is the per-learner aggregate. The orchestration core borrows it
// for the duration of one query and must not keep a reference afterwards.
type Session struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Mode   Mode   `json:"mode"`

	// Bounded, most recent last
	Window []Interaction `json:"window"`

	GapLedger GapLedger `json:"-"`
	// Gaps mirrors GapLedger for serialization since struct keys cannot be JSON keys
	Gaps []ConceptualGap `json:"gaps,omitempty"`

	// Revision grows with every saved change, so copies can be ordered
	// without relying on clocks
	Revision uint64 `json:"revision"`

	QueryCount     int        `json:"query_count"`
	CreatedAt      time.Time  `json:"created_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// NewSession creates a session in the default mode
func NewSession(id, userID string, now time.Time) *Session {
	return &Session{
		ID:             id,
		UserID:         userID,
		Mode:           DefaultMode,
		Window:         make([]Interaction, 0),
		GapLedger:      make(GapLedger),
		CreatedAt:      now,
		LastActivityAt: now,
	}
}

// Snapshot is a read-only view handed to analyzers
type Snapshot struct {
	SessionID string
	UserID    string
	Mode      Mode
	Window    []Interaction
	OpenGaps  []ConceptualGap
}

// Snapshot copies the parts of the session analyzers may read
func (s *Session) Snapshot() Snapshot {
	window := make([]Interaction, len(s.Window))
	copy(window, s.Window)

	open := make([]ConceptualGap, 0, len(s.GapLedger))
	for _, g := range s.GapLedger.Ranked() {
		if g.IsOpen() {
			open = append(open, g)
		}
	}
	return Snapshot{
		SessionID: s.ID,
		UserID:    s.UserID,
		Mode:      s.Mode,
		Window:    window,
		OpenGaps:  open,
	}
}

// PrepareForStore flattens the ledger into the serializable form
func (s *Session) PrepareForStore() {
	s.Gaps = s.GapLedger.Ranked()
}

// RestoreFromStore rebuilds the ledger after deserialization
func (s *Session) RestoreFromStore() {
	s.GapLedger = make(GapLedger, len(s.Gaps))
	for i := range s.Gaps {
		g := s.Gaps[i]
		s.GapLedger[g.Key] = &g
	}
	if s.Window == nil {
		s.Window = make([]Interaction, 0)
	}
	if s.Mode == "" {
		s.Mode = DefaultMode
	}
}

// MarshalForStore encodes the session with its ledger flattened.
// The receiver is not modified.
func (s *Session) MarshalForStore() ([]byte, error) {
	c := *s
	c.Gaps = s.GapLedger.Ranked()
	return json.Marshal(&c)
}

// UnmarshalSession decodes a stored session and rebuilds its ledger
func UnmarshalSession(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	s.RestoreFromStore()
	return &s, nil
}

// ClearSensitive drops learner content while keeping aggregate metrics
func (s *Session) ClearSensitive(now time.Time) {
	s.Window = make([]Interaction, 0)
	for _, g := range s.GapLedger {
		g.Evidence = nil
	}
	s.Gaps = nil
	s.EndedAt = &now
}

// OpenGapCount counts unresolved gaps
func (s *Session) OpenGapCount() int {
	n := 0
	for _, g := range s.GapLedger {
		if g.IsOpen() {
			n++
		}
	}
	return n
}
