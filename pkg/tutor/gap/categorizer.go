package gap

import (
	"context"
	"fmt"
	"strings"

	"ai-tutor-be/pkg/learning"
	"ai-tutor-be/pkg/llm"
)

// Categorizer assigns a learning category to a gap signal
type Categorizer interface {
	Categorize(ctx context.Context, signal learning.GapSignal) (string, error)
}

// categoryKeywords is checked in order, first match wins
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"control flow", []string{"loop", "termination", "branch", "condition", "break", "iteration"}},
	{"recursion", []string{"recursion", "recursive", "base case", "stack overflow"}},
	{"data structures", []string{"array", "index", "slice", "list", "map", "hash", "queue", "stack", "tree", "graph"}},
	{"memory and references", []string{"pointer", "null", "nil", "reference", "memory", "allocation"}},
	{"variables and scope", []string{"scope", "variable", "closure", "shadow", "global"}},
	{"types", []string{"type", "interface", "generic", "cast", "conversion"}},
	{"concurrency", []string{"concurren", "goroutine", "thread", "async", "await", "race", "deadlock", "mutex", "channel"}},
	{"algorithms", []string{"complexity", "big o", "sort", "search", "algorithm", "dynamic programming"}},
	{"object-oriented design", []string{"class", "object", "inheritance", "polymorphism", "encapsulation"}},
	{"functions", []string{"function", "parameter", "argument", "return value"}},
	{"error handling", []string{"error", "exception", "panic"}},
}

// KeywordCategory looks the concept up in the static keyword table
func KeywordCategory(concept string) (string, bool) {
	c := learning.NormalizeConcept(concept)
	if c == "" {
		return "", false
	}
	for _, entry := range categoryKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(c, kw) {
				return entry.category, true
			}
		}
	}
	return "", false
}

// AICategorizer asks the AI Service Layer for a category
type AICategorizer struct {
	ai llm.Completer
}

func NewAICategorizer(ai llm.Completer) *AICategorizer {
	return &AICategorizer{ai: ai}
}

func (c *AICategorizer) Categorize(ctx context.Context, signal learning.GapSignal) (string, error) {
	prompt := fmt.Sprintf(`Classify the programming concept below into one short learning category (two or three words, lower case).
Reply with the category only.

CONCEPT: %s
EVIDENCE: %s`, signal.Concept, signal.Evidence)

	reply, err := c.ai.Complete(ctx, prompt, learning.ModeExam, 16)
	if err != nil {
		return "", err
	}
	category := strings.ToLower(strings.TrimSpace(strings.SplitN(reply, "\n", 2)[0]))
	category = strings.Trim(category, ".\"'` ")
	if category == "" || len(category) > 40 {
		return "", fmt.Errorf("unusable category %q", reply)
	}
	return category, nil
}
