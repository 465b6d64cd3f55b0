package mode

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/learning"
	"ai-tutor-be/pkg/llm"
)

const conceptHeading = "## Explanation"

const bestPracticesNote = "**Best practices:** keep functions small and single-purpose, handle errors explicitly, and cover edge cases with tests."

var (
	fencePattern = regexp.MustCompile("(?s)```.*?```")

	analogyMarkers = []string{"analogy", "think of it as", "imagine", "it's like", "is like a", "similar to how"}
	exampleMarkers = []string{"example", "for instance", "e.g.", "```"}
)

// Adapter shapes combined analyzer output for the active mode.
// Apply never fails: any transformation problem yields the untransformed
// content tagged with the Concept structure.
type Adapter struct {
	ai                llm.Completer // Optional, used for Concept expansion
	examWordLimit     int
	conceptWordTarget int
	logger            logger.ILogger
}

func NewAdapter(ai llm.Completer, examWordLimit, conceptWordTarget int, log logger.ILogger) *Adapter {
	if examWordLimit <= 0 {
		examWordLimit = 200
	}
	if conceptWordTarget <= 0 {
		conceptWordTarget = 300
	}
	return &Adapter{
		ai:                ai,
		examWordLimit:     examWordLimit,
		conceptWordTarget: conceptWordTarget,
		logger:            log,
	}
}

// Apply transforms content for mode. query is the query that produced it.
func (a *Adapter) Apply(ctx context.Context, content string, mode learning.Mode, query learning.Query) string {
	switch mode {
	case learning.ModeExam:
		return a.exam(content)
	case learning.ModeBuild:
		return a.build(content, query)
	case learning.ModeConcept:
		out, err := a.concept(ctx, content)
		if err != nil {
			a.logger.Warn("MODE", "Concept expansion failed, using tagged content", map[string]interface{}{
				"query_id":   query.ID,
				"session_id": query.SessionID,
				"error":      err.Error(),
			})
			return tagConcept(content)
		}
		return out
	default:
		return tagConcept(content)
	}
}

func (a *Adapter) exam(content string) string {
	kept := make([]unit, 0)
	for _, u := range parseUnits(content) {
		if !u.code && containsAny(u.text, analogyMarkers) {
			continue
		}
		kept = append(kept, u)
	}

	out := make([]unit, 0, len(kept))
	words := 0
	for _, u := range kept {
		n := len(strings.Fields(u.text))
		if words+n <= a.examWordLimit {
			out = append(out, u)
			words += n
			continue
		}
		// An oversized code block is skipped so the prose after it still fits
		if u.code {
			continue
		}
		if len(out) == 0 {
			u.text = firstWords(u.text, a.examWordLimit)
			out = append(out, u)
		}
		break
	}
	if len(out) == 0 {
		return firstWords(strings.TrimSpace(content), a.examWordLimit)
	}
	return render(out)
}

func (a *Adapter) concept(ctx context.Context, content string) (string, error) {
	hasExample := containsAny(content, exampleMarkers)
	hasAnalogy := containsAny(content, analogyMarkers)
	if (hasExample && hasAnalogy) || a.ai == nil {
		return tagConcept(content), nil
	}

	prompt := fmt.Sprintf(`Rewrite the following explanation for a learner.
Keep every fact. Add one concrete example and one analogy where they are missing.
Aim for roughly %d words, but do not pad.

EXPLANATION:
%s`, a.conceptWordTarget, content)

	expanded, err := a.ai.Complete(ctx, prompt, learning.ModeConcept, 0)
	if err != nil {
		return "", err
	}
	expanded = strings.TrimSpace(expanded)
	if expanded == "" {
		return "", fmt.Errorf("empty expansion")
	}
	return tagConcept(expanded), nil
}

func (a *Adapter) build(content string, query learning.Query) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(content))

	if !fencePattern.MatchString(content) && query.HasCode() {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "```%s\n%s\n```", query.Language, strings.TrimRight(query.Code, "\n"))
	}
	if !strings.Contains(strings.ToLower(content), "best practices") {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(bestPracticesNote)
	}
	return b.String()
}

func tagConcept(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "#") {
		return trimmed
	}
	if trimmed == "" {
		return conceptHeading
	}
	return conceptHeading + "\n\n" + trimmed
}

// unit is a sentence or a fenced code block
type unit struct {
	text    string
	code    bool
	newPara bool
}

func parseUnits(content string) []unit {
	units := make([]unit, 0)
	last := 0
	for _, loc := range fencePattern.FindAllStringIndex(content, -1) {
		units = append(units, textUnits(content[last:loc[0]])...)
		units = append(units, unit{text: content[loc[0]:loc[1]], code: true, newPara: true})
		last = loc[1]
	}
	return append(units, textUnits(content[last:])...)
}

func textUnits(text string) []unit {
	units := make([]unit, 0)
	for _, para := range strings.Split(text, "\n\n") {
		for i, s := range splitSentences(para) {
			units = append(units, unit{text: s, newPara: i == 0})
		}
	}
	return units
}

func splitSentences(para string) []string {
	para = strings.Join(strings.Fields(para), " ")
	sentences := make([]string, 0)
	start := 0
	for i := 0; i < len(para); i++ {
		switch para[i] {
		case '.', '!', '?':
			if i+1 == len(para) || para[i+1] == ' ' {
				if s := strings.TrimSpace(para[start : i+1]); s != "" {
					sentences = append(sentences, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(para[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func render(units []unit) string {
	var b strings.Builder
	for _, u := range units {
		if b.Len() > 0 {
			if u.newPara {
				b.WriteString("\n\n")
			} else {
				b.WriteString(" ")
			}
		}
		b.WriteString(u.text)
	}
	return b.String()
}

func firstWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ")
}

func containsAny(s string, markers []string) bool {
	lower := strings.ToLower(s)
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// WordCount counts whitespace separated words
func WordCount(s string) int {
	return len(strings.Fields(s))
}
