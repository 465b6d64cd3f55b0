package learning

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		raw     string
		want    Mode
		wantErr bool
	}{
		{"exam", ModeExam, false},
		{" Concept ", ModeConcept, false},
		{"BUILD", ModeBuild, false},
		{"speedrun", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseMode(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, KindInput, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQueryValidate(t *testing.T) {
	tests := []struct {
		name     string
		query    Query
		wantCode string
	}{
		{"text only", Query{Text: "what is a closure?"}, ""},
		{"code only", Query{Code: "for {}", Language: "go"}, ""},
		{"empty", Query{Text: "   "}, CodeMalformedQuery},
		{"too long", Query{Text: strings.Repeat("a", maxQueryText+1)}, CodeMalformedQuery},
		{"bad language", Query{Text: "check", Code: "x", Language: "cobol"}, CodeUnsupportedLanguage},
		{"language case", Query{Text: "check", Code: "x", Language: "Python"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			var e *Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Equal(t, KindInput, e.Kind)
		})
	}
}

func TestSeverityOrdering(t *testing.T) {
	assert.Equal(t, SeverityModerate, SeverityMinor.Max(SeverityModerate))
	assert.Equal(t, SeverityCritical, SeverityCritical.Max(SeverityMinor))
	assert.Equal(t, SeverityModerate, SeverityMinor.Bump(1))
	assert.Equal(t, SeverityCritical, SeverityMinor.Bump(5))
	assert.Equal(t, SeverityMinor, SeverityMinor.Bump(0))
	assert.True(t, SeverityCritical.AtLeast(SeverityModerate))
	assert.False(t, SeverityMinor.AtLeast(SeverityModerate))
	assert.False(t, Severity("huge").Valid())
}

func TestNormalizeConcept(t *testing.T) {
	assert.Equal(t, "loop termination", NormalizeConcept("  Loop   Termination. "))
	assert.Equal(t, NewGapKey("u1", "Recursion!"), NewGapKey("u1", "recursion"))
}

func TestConceptualGapHelpers(t *testing.T) {
	g := &ConceptualGap{Key: NewGapKey("u1", "recursion"), Category: "recursion", Severity: SeverityMinor}
	g.AddEvidence("missed base case")
	g.AddEvidence("missed base case")
	g.AddEvidence("  ")
	g.AddRelated("Stack Frames", "recursion", "call stack", "stack frames")

	assert.Equal(t, []string{"missed base case"}, g.Evidence)
	assert.Equal(t, []string{"call stack", "stack frames"}, g.RelatedConcepts)
	assert.True(t, g.Categorized())

	c := g.Clone()
	c.Evidence[0] = "changed"
	assert.Equal(t, "missed base case", g.Evidence[0])
}

func TestGapLedgerRanked(t *testing.T) {
	now := time.Now()
	ledger := GapLedger{}
	for i, sev := range []Severity{SeverityMinor, SeverityCritical, SeverityModerate} {
		key := NewGapKey("u1", fmt.Sprintf("c%d", i))
		ledger[key] = &ConceptualGap{Key: key, Category: "x", Severity: sev, LastSeenAt: now}
	}

	ranked := ledger.Ranked()
	require.Len(t, ranked, 3)
	assert.Equal(t, SeverityCritical, ranked[0].Severity)
	assert.Equal(t, SeverityModerate, ranked[1].Severity)
	assert.Equal(t, SeverityMinor, ranked[2].Severity)
}

func TestSessionStoreRoundTrip(t *testing.T) {
	s := NewSession("s1", "u1", time.Now())
	key := NewGapKey("u1", "recursion")
	s.GapLedger[key] = &ConceptualGap{Key: key, Category: "recursion", Severity: SeverityModerate}

	s.PrepareForStore()
	restored := &Session{ID: s.ID, Gaps: s.Gaps}
	restored.RestoreFromStore()

	assert.Equal(t, DefaultMode, restored.Mode)
	require.Contains(t, restored.GapLedger, key)
	assert.Equal(t, SeverityModerate, restored.GapLedger[key].Severity)
}

func TestClearSensitive(t *testing.T) {
	s := NewSession("s1", "u1", time.Now())
	s.QueryCount = 4
	s.Window = append(s.Window, Interaction{Query: Query{Text: "secret"}})
	key := NewGapKey("u1", "loops")
	s.GapLedger[key] = &ConceptualGap{Key: key, Evidence: []string{"for {}"}}

	s.ClearSensitive(time.Now())

	assert.Empty(t, s.Window)
	assert.Nil(t, s.GapLedger[key].Evidence)
	assert.Equal(t, 4, s.QueryCount)
	assert.Equal(t, 1, s.OpenGapCount())
	assert.NotNil(t, s.EndedAt)
}

func TestPublicHidesInternals(t *testing.T) {
	wrapped := ErrDownstreamUnavailable.Wrap(fmt.Errorf("dial tcp 10.0.0.3:11434: refused"))
	p := Public(wrapped)
	assert.Equal(t, CodeDownstreamUnavailable, p.Error)
	assert.NotContains(t, p.Message, "10.0.0.3")
	assert.True(t, errors.Is(wrapped, ErrDownstreamUnavailable))

	p = Public(errors.New("pq: relation does not exist"))
	assert.Equal(t, "internal_error", p.Error)
	assert.NotEmpty(t, p.Suggestion)
}
