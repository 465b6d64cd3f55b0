package analyzer

import (
	"regexp"
	"strings"

	"ai-tutor-be/pkg/learning"
)

var (
	conceptLeadPattern = regexp.MustCompile(`(?i)^(please\s+)?(can you\s+|could you\s+)?(explain|describe|define|what\s+(is|are)|how\s+(does|do)|why\s+(does|do|is)|tell me about|quiz me on|test me on|test my knowledge of|draw|diagram|visualize|show me)\s+`)
	conceptTailPattern = regexp.MustCompile(`(?i)\s+(work|works|mean|means|in (go|python|javascript|typescript|java|rust|c\+\+|c))$`)
	confusionPattern   = regexp.MustCompile(`(?i)(?:don'?t|do not|didn'?t)\s+(?:really\s+)?(?:understand|get)\s+([a-z][a-z0-9 \-]{2,40})|confused (?:about|by)\s+([a-z][a-z0-9 \-]{2,40})`)
)

var leadingArticles = []string{"the ", "a ", "an "}

// ExtractConcept guesses the main concept named in a question.
// Returns "" when nothing concept-like is left.
func ExtractConcept(text string) string {
	s := strings.TrimSpace(text)
	s = strings.TrimRight(s, "?.! ")
	s = conceptLeadPattern.ReplaceAllString(s, "")
	for conceptTailPattern.MatchString(s) {
		s = conceptTailPattern.ReplaceAllString(s, "")
	}

	lower := strings.ToLower(s)
	for _, a := range leadingArticles {
		if strings.HasPrefix(lower, a) {
			s = s[len(a):]
			break
		}
	}
	if i := strings.IndexAny(s, ",;:"); i > 0 {
		s = s[:i]
	}

	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}
	if len(words) > 4 {
		words = words[:4]
	}
	return learning.NormalizeConcept(strings.Join(words, " "))
}

// ConfusionSignals finds explicit statements of confusion in a query
func ConfusionSignals(text string) []learning.GapSignal {
	signals := make([]learning.GapSignal, 0)
	for _, m := range confusionPattern.FindAllStringSubmatch(text, -1) {
		concept := m[1]
		if concept == "" {
			concept = m[2]
		}
		concept = ExtractConcept(concept)
		if concept == "" {
			continue
		}
		signals = append(signals, learning.GapSignal{
			Concept:  concept,
			Evidence: strings.TrimSpace(m[0]),
			Source:   learning.SourceExplanation,
		})
	}
	return signals
}
