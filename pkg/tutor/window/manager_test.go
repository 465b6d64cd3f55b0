package window

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/learning"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSummarizer struct {
	text  string
	err   error
	calls int
	got   int
}

func (s *stubSummarizer) Summarize(ctx context.Context, entries []learning.Interaction) (string, error) {
	s.calls++
	s.got = len(entries)
	return s.text, s.err
}

func interaction(id, text string) learning.Interaction {
	return learning.Interaction{
		Query:     learning.Query{ID: id, Text: text},
		Response:  learning.Response{Content: "answer to " + text},
		Timestamp: time.Now(),
	}
}

func TestAppendEvictsOldestAtCapacity(t *testing.T) {
	for _, k := range []int{5, 8, 10} {
		t.Run(fmt.Sprintf("K=%d", k), func(t *testing.T) {
			m := NewManager(k, 0, 2, nil, logger.NewNopLogger())
			s := learning.NewSession("s", "u", time.Now())

			for i := 0; i <= k; i++ {
				m.Append(context.Background(), s, interaction(fmt.Sprintf("q%d", i), "hello"))
			}

			w := m.Window(s)
			require.Len(t, w, k)
			assert.Equal(t, "q1", w[0].Query.ID, "oldest entry evicted")
			assert.Equal(t, fmt.Sprintf("q%d", k), w[k-1].Query.ID)
		})
	}
}

func TestCapacityClamped(t *testing.T) {
	assert.Equal(t, 5, NewManager(1, 0, 2, nil, logger.NewNopLogger()).Capacity())
	assert.Equal(t, 10, NewManager(50, 0, 2, nil, logger.NewNopLogger()).Capacity())
}

func TestAppendNeverTouchesGaps(t *testing.T) {
	m := NewManager(5, 10, 1, nil, logger.NewNopLogger())
	s := learning.NewSession("s", "u", time.Now())
	key := learning.NewGapKey("u", "recursion")
	s.GapLedger[key] = &learning.ConceptualGap{Key: key, Severity: learning.SeverityMinor}

	for i := 0; i < 12; i++ {
		m.Append(context.Background(), s, interaction(fmt.Sprintf("q%d", i), strings.Repeat("x", 100)))
	}

	require.Contains(t, s.GapLedger, key)
	assert.Len(t, s.GapLedger, 1)
}

func TestTokenBudgetSummarizes(t *testing.T) {
	sum := &stubSummarizer{text: "Earlier we covered loops."}
	m := NewManager(8, 100, 2, sum, logger.NewNopLogger())
	s := learning.NewSession("s", "u", time.Now())

	for i := 0; i < 5; i++ {
		it := interaction(fmt.Sprintf("q%d", i), strings.Repeat("y", 60))
		it.Concepts = []string{fmt.Sprintf("concept %d", i)}
		m.Append(context.Background(), s, it)
	}

	w := m.Window(s)
	require.NotEmpty(t, w)
	assert.GreaterOrEqual(t, sum.calls, 1)
	assert.LessOrEqual(t, EstimateTokens(w), 100)
	assert.Equal(t, "q4", w[len(w)-1].Query.ID, "newest entry always kept")
}

func TestSummarizerFailureFallsBackToFIFO(t *testing.T) {
	sum := &stubSummarizer{err: errors.New("timeout")}
	m := NewManager(8, 100, 2, sum, logger.NewNopLogger())
	s := learning.NewSession("s", "u", time.Now())

	for i := 0; i < 5; i++ {
		m.Append(context.Background(), s, interaction(fmt.Sprintf("q%d", i), strings.Repeat("z", 120)))
	}

	w := m.Window(s)
	assert.LessOrEqual(t, EstimateTokens(w), 100)
	for _, it := range w {
		assert.False(t, it.Summary)
	}
	assert.Equal(t, "q4", w[len(w)-1].Query.ID)
}

func TestSummaryEntryKeepsConcepts(t *testing.T) {
	sum := &stubSummarizer{text: "Short."}
	m := NewManager(8, 50, 1, sum, logger.NewNopLogger())
	s := learning.NewSession("s", "u", time.Now())

	first := interaction("q0", strings.Repeat("a", 30))
	first.Concepts = []string{"closures"}
	m.Append(context.Background(), s, first)
	m.Append(context.Background(), s, interaction("q1", strings.Repeat("b", 30)))
	m.Append(context.Background(), s, interaction("q2", strings.Repeat("c", 30)))

	w := m.Window(s)
	require.Len(t, w, 2)
	assert.True(t, w[0].Summary)
	assert.Equal(t, 2, sum.got)

	e, err := m.ResolveReference(s, Mention{Kind: MentionConcept})
	require.NoError(t, err)
	assert.Equal(t, "closures", e.Concept)
}

func TestResolveReference(t *testing.T) {
	m := NewManager(8, 0, 2, nil, logger.NewNopLogger())
	s := learning.NewSession("s", "u", time.Now())

	_, err := m.ResolveReference(s, Mention{Kind: MentionCode})
	assert.ErrorIs(t, err, ErrReferenceNotFound)

	older := interaction("q1", "check this")
	older.Query.Code, older.Query.Language = "for i := 0; i < 3; i++ {}", "go"
	newer := interaction("q2", "and this one")
	newer.Query.Code, newer.Query.Language = "while True: pass", "python"
	plain := interaction("q3", "what is a loop")
	plain.Concepts = []string{"loops"}

	for _, it := range []learning.Interaction{older, newer, plain} {
		m.Append(context.Background(), s, it)
	}

	code, err := m.ResolveReference(s, Mention{Kind: MentionCode, Raw: "the code above"})
	require.NoError(t, err)
	assert.Equal(t, "q2", code.QueryID, "latest code wins")
	assert.Equal(t, "python", code.Language)

	concept, err := m.ResolveReference(s, Mention{Kind: MentionConcept})
	require.NoError(t, err)
	assert.Equal(t, "loops", concept.Concept)
}

func TestWindowReturnsCopy(t *testing.T) {
	m := NewManager(5, 0, 2, nil, logger.NewNopLogger())
	s := learning.NewSession("s", "u", time.Now())
	m.Append(context.Background(), s, interaction("q0", "hi"))

	w := m.Window(s)
	w[0].Query.Text = "changed"
	assert.Equal(t, "hi", s.Window[0].Query.Text)
}
