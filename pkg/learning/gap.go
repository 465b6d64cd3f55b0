package learning

import (
	"sort"
	"strings"
	"time"
	"unicode"
)

// Severity of a conceptual gap. Ordered: minor < moderate < critical.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeverityCritical Severity = "critical"
)

func (s Severity) rank() int {
	switch s {
	case SeverityMinor:
		return 1
	case SeverityModerate:
		return 2
	case SeverityCritical:
		return 3
	}
	return 0
}

// Valid reports whether s is a known severity
func (s Severity) Valid() bool { return s.rank() > 0 }

// AtLeast reports whether s is as severe as other
func (s Severity) AtLeast(other Severity) bool { return s.rank() >= other.rank() }

// Max returns the more severe of the two
func (s Severity) Max(other Severity) Severity {
	if other.rank() > s.rank() {
		return other
	}
	return s
}

// Bump raises severity by n levels, capped at critical
func (s Severity) Bump(n int) Severity {
	order := []Severity{SeverityMinor, SeverityModerate, SeverityCritical}
	idx := s.rank() - 1 + n
	if idx < 0 {
		idx = 0
	}
	if idx >= len(order) {
		idx = len(order) - 1
	}
	return order[idx]
}

// GapSource identifies which analyzer family produced a gap signal
type GapSource string

const (
	SourceExplanation GapSource = "explanation"
	SourceCode        GapSource = "code"
	SourceQuiz        GapSource = "quiz"
)

// GapKey is the natural identity of a gap. Comparable, usable as a map key.
type GapKey struct {
	UserID  string `json:"user_id"`
	Concept string `json:"concept"`
}

// NewGapKey builds a key with a normalized concept
func NewGapKey(userID, concept string) GapKey {
	return GapKey{UserID: userID, Concept: NormalizeConcept(concept)}
}

func (k GapKey) String() string { return k.UserID + "/" + k.Concept }

// NormalizeConcept lower-cases, trims punctuation and collapses whitespace
func NormalizeConcept(concept string) string {
	trimmed := strings.TrimFunc(concept, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	return strings.Join(strings.Fields(strings.ToLower(trimmed)), " ")
}

// GapSignal is raw evidence from an analyzer suggesting a misunderstanding
type GapSignal struct {
	Concept         string    `json:"concept"`
	Evidence        string    `json:"evidence"`
	Source          GapSource `json:"source"`
	Strong          bool      `json:"strong"` // Explicit error or miss rather than a hint
	Category        string    `json:"category,omitempty"`
	RelatedConcepts []string  `json:"related_concepts,omitempty"`
}

// ConceptualGap is a deduplicated, categorized learner gap
type ConceptualGap struct {
	Key             GapKey     `json:"key"`
	Category        string     `json:"category"`
	Severity        Severity   `json:"severity"`
	Evidence        []string   `json:"evidence"`
	RelatedConcepts []string   `json:"related_concepts"` // Sorted set
	DetectedFrom    GapSource  `json:"detected_from"`
	Occurrences     int        `json:"occurrences"`
	FirstDetectedAt time.Time  `json:"first_detected_at"`
	LastSeenAt      time.Time  `json:"last_seen_at"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

// IsOpen reports whether the gap has not been explicitly resolved
func (g *ConceptualGap) IsOpen() bool { return g.ResolvedAt == nil }

// Categorized reports whether the gap can be surfaced
func (g *ConceptualGap) Categorized() bool {
	return strings.TrimSpace(g.Category) != "" && g.Severity.Valid()
}

// Clone returns a deep copy
func (g *ConceptualGap) Clone() *ConceptualGap {
	c := *g
	c.Evidence = append([]string(nil), g.Evidence...)
	c.RelatedConcepts = append([]string(nil), g.RelatedConcepts...)
	if g.ResolvedAt != nil {
		t := *g.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}

// AddEvidence appends evidence that is not already recorded
func (g *ConceptualGap) AddEvidence(evidence string) {
	evidence = strings.TrimSpace(evidence)
	if evidence == "" {
		return
	}
	for _, e := range g.Evidence {
		if e == evidence {
			return
		}
	}
	g.Evidence = append(g.Evidence, evidence)
}

// AddRelated unions concepts into the related set
func (g *ConceptualGap) AddRelated(concepts ...string) {
	set := make(map[string]bool, len(g.RelatedConcepts)+len(concepts))
	for _, c := range g.RelatedConcepts {
		set[c] = true
	}
	for _, c := range concepts {
		n := NormalizeConcept(c)
		if n != "" && n != g.Key.Concept {
			set[n] = true
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	g.RelatedConcepts = out
}

// GapLedger holds at most one gap per key
type GapLedger map[GapKey]*ConceptualGap

// Ranked returns ledger gaps ordered by severity then recency
func (l GapLedger) Ranked() []ConceptualGap {
	out := make([]ConceptualGap, 0, len(l))
	for _, g := range l {
		out = append(out, *g.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity.rank() != out[j].Severity.rank() {
			return out[i].Severity.rank() > out[j].Severity.rank()
		}
		if !out[i].LastSeenAt.Equal(out[j].LastSeenAt) {
			return out[i].LastSeenAt.After(out[j].LastSeenAt)
		}
		return out[i].Key.Concept < out[j].Key.Concept
	})
	return out
}
