package window

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/learning"
	"ai-tutor-be/pkg/llm"
)

// MentionKind says what a pronoun style reference points at
type MentionKind string

const (
	MentionCode    MentionKind = "code"
	MentionConcept MentionKind = "concept"
)

// Mention is a reference like "the code above" found in a query
type Mention struct {
	Kind MentionKind
	Raw  string // The matched phrase
}

// Entity is what a mention resolved to
type Entity struct {
	Kind     MentionKind
	Code     string
	Language string
	Concept  string
	QueryID  string
}

var ErrReferenceNotFound = errors.New("reference not found in context window")

// Summarizer condenses old window entries into a single paragraph
type Summarizer interface {
	Summarize(ctx context.Context, entries []learning.Interaction) (string, error)
}

// Manager keeps the bounded per-session interaction window.
// It never reads or writes the gap ledger.
type Manager struct {
	capacity    int
	tokenBudget int
	keepRecent  int
	summarizer  Summarizer // Optional
	logger      logger.ILogger
}

// NewManager creates a window manager. capacity is clamped to 5..10.
func NewManager(capacity, tokenBudget, keepRecent int, summarizer Summarizer, log logger.ILogger) *Manager {
	if capacity < 5 {
		capacity = 5
	}
	if capacity > 10 {
		capacity = 10
	}
	if keepRecent < 1 {
		keepRecent = 1
	}
	return &Manager{
		capacity:    capacity,
		tokenBudget: tokenBudget,
		keepRecent:  keepRecent,
		summarizer:  summarizer,
		logger:      log,
	}
}

// Capacity returns K
func (m *Manager) Capacity() int { return m.capacity }

// Append adds interaction as the newest entry, evicting the oldest when
// full and summarizing when the token budget is exceeded.
func (m *Manager) Append(ctx context.Context, session *learning.Session, interaction learning.Interaction) {
	session.Window = append(session.Window, interaction)
	if over := len(session.Window) - m.capacity; over > 0 {
		session.Window = append([]learning.Interaction(nil), session.Window[over:]...)
	}

	if m.tokenBudget <= 0 || EstimateTokens(session.Window) <= m.tokenBudget {
		return
	}
	m.compact(ctx, session)
}

func (m *Manager) compact(ctx context.Context, session *learning.Session) {
	cut := len(session.Window) - m.keepRecent
	if cut >= 2 && m.summarizer != nil {
		old := session.Window[:cut]
		text, err := m.summarizer.Summarize(ctx, old)
		if err == nil && strings.TrimSpace(text) != "" {
			summary := summaryEntry(old, strings.TrimSpace(text))
			session.Window = append([]learning.Interaction{summary}, session.Window[cut:]...)
			m.logger.Debug("WINDOW", "Summarized older entries", map[string]interface{}{
				"session_id": session.ID,
				"summarized": len(old),
			})
		} else {
			if err == nil {
				err = fmt.Errorf("empty summary")
			}
			m.logger.Warn("WINDOW", "Summarizer failed, falling back to FIFO eviction", map[string]interface{}{
				"session_id": session.ID,
				"error":      err.Error(),
			})
		}
	}

	// Drop oldest until under budget, always keeping the newest entry
	for len(session.Window) > 1 && EstimateTokens(session.Window) > m.tokenBudget {
		session.Window = session.Window[1:]
	}
	session.Window = append([]learning.Interaction(nil), session.Window...)
}

func summaryEntry(old []learning.Interaction, text string) learning.Interaction {
	seen := make(map[string]bool)
	concepts := make([]string, 0)
	// Newest concepts first so concept references keep resolving
	for i := len(old) - 1; i >= 0; i-- {
		for _, c := range old[i].Concepts {
			if !seen[c] {
				seen[c] = true
				concepts = append(concepts, c)
			}
		}
	}
	last := old[len(old)-1]
	return learning.Interaction{
		Query: learning.Query{
			SessionID: last.Query.SessionID,
			UserID:    last.Query.UserID,
			Text:      "Summary of earlier conversation",
			Timestamp: last.Query.Timestamp,
		},
		Response:  learning.Response{Content: text, Mode: last.Response.Mode},
		Concepts:  concepts,
		Summary:   true,
		Timestamp: last.Timestamp,
	}
}

// Window returns a copy of the window, oldest first
func (m *Manager) Window(session *learning.Session) []learning.Interaction {
	out := make([]learning.Interaction, len(session.Window))
	copy(out, session.Window)
	return out
}

// ResolveReference scans newest first for the entity a mention points at
func (m *Manager) ResolveReference(session *learning.Session, mention Mention) (Entity, error) {
	for i := len(session.Window) - 1; i >= 0; i-- {
		it := session.Window[i]
		switch mention.Kind {
		case MentionCode:
			if it.Query.HasCode() {
				return Entity{
					Kind:     MentionCode,
					Code:     it.Query.Code,
					Language: it.Query.Language,
					QueryID:  it.Query.ID,
				}, nil
			}
		case MentionConcept:
			if len(it.Concepts) > 0 {
				return Entity{
					Kind:    MentionConcept,
					Concept: it.Concepts[0],
					QueryID: it.Query.ID,
				}, nil
			}
		}
	}
	return Entity{}, ErrReferenceNotFound
}

// EstimateTokens approximates model tokens at four characters per token
func EstimateTokens(entries []learning.Interaction) int {
	chars := 0
	for _, it := range entries {
		chars += len(it.Query.Text) + len(it.Query.Code) + len(it.Response.Content)
	}
	return (chars + 3) / 4
}

// AISummarizer summarizes through the AI Service Layer
type AISummarizer struct {
	ai llm.Completer
}

func NewAISummarizer(ai llm.Completer) *AISummarizer {
	return &AISummarizer{ai: ai}
}

func (s *AISummarizer) Summarize(ctx context.Context, entries []learning.Interaction) (string, error) {
	var b strings.Builder
	b.WriteString("Summarize this tutoring conversation in at most 80 words. Keep concept names and mention any code the learner shared.\n\n")
	for _, it := range entries {
		fmt.Fprintf(&b, "LEARNER: %s\n", it.Query.Text)
		if it.Query.HasCode() {
			fmt.Fprintf(&b, "CODE (%s):\n%s\n", it.Query.Language, it.Query.Code)
		}
		fmt.Fprintf(&b, "TUTOR: %s\n\n", it.Response.Content)
	}
	return s.ai.Complete(ctx, b.String(), learning.ModeConcept, 160)
}
