package router

import (
	"regexp"
	"strings"

	"ai-tutor-be/pkg/learning"
)

// Directive prefixes force a query type and skip signal detection
const (
	PrefixCode    = "/code"
	PrefixVisual  = "/visual"
	PrefixQuiz    = "/quiz"
	PrefixConcept = "/concept"
	PrefixAsk     = "/ask"
)

var directives = []struct {
	prefix    string
	queryType learning.QueryType
}{
	{PrefixConcept, learning.QueryConceptQuestion},
	{PrefixVisual, learning.QueryVisualRequest},
	{PrefixCode, learning.QueryCodeAnalysis},
	{PrefixQuiz, learning.QueryGapAssessment},
	{PrefixAsk, learning.QueryGeneralQuestion},
}

// ParsedPrompt contains routing information extracted from the query text
type ParsedPrompt struct {
	OriginalPrompt string
	CleanPrompt    string             // Prompt without directive
	Directive      learning.QueryType // Empty when no directive was given
}

// Parse extracts a leading directive from prompt
// Supports:
//   - /code <prompt>    → code_analysis
//   - /visual <prompt>  → visual_request
//   - /quiz <prompt>    → gap_assessment
//   - /concept <prompt> → concept_question
//   - /ask <prompt>     → general_question
//   - <prompt>          → classified from signals
func Parse(prompt string) *ParsedPrompt {
	trimmed := strings.TrimSpace(prompt)
	lower := strings.ToLower(trimmed)

	for _, d := range directives {
		if !strings.HasPrefix(lower, d.prefix) {
			continue
		}
		rest := trimmed[len(d.prefix):]
		if rest == "" || rest[0] == ' ' {
			return &ParsedPrompt{
				OriginalPrompt: prompt,
				CleanPrompt:    strings.TrimSpace(rest),
				Directive:      d.queryType,
			}
		}
	}

	return &ParsedPrompt{
		OriginalPrompt: prompt,
		CleanPrompt:    trimmed,
	}
}

// IsEmpty returns true if the clean prompt is empty
func (p *ParsedPrompt) IsEmpty() bool {
	return strings.TrimSpace(p.CleanPrompt) == ""
}

// Classification is the single primary type assigned to a query
type Classification struct {
	Type       learning.QueryType
	Confidence float64
	// Signals holds every detected type with its confidence
	Signals map[learning.QueryType]float64
}

type signalPattern struct {
	pattern    *regexp.Regexp
	confidence float64
}

var (
	fencedCodePattern = regexp.MustCompile("```")

	signalPatterns = map[learning.QueryType][]signalPattern{
		learning.QueryCodeAnalysis: {
			{regexp.MustCompile(`(?i)\b(my|this) (code|function|program|script|snippet)\b`), 0.7},
			{regexp.MustCompile(`(?i)\b(debug|bug|doesn'?t compile|won'?t compile|stack ?trace|traceback|segfault|compiler error)\b`), 0.75},
		},
		learning.QueryVisualRequest: {
			{regexp.MustCompile(`(?i)\b(draw|diagram|visuali[sz]e|flowchart|flow chart|illustrate|sketch)\b`), 0.85},
			{regexp.MustCompile(`(?i)\bshow me (a |an )?(picture|chart|graph|visual)\b`), 0.85},
		},
		learning.QueryGapAssessment: {
			{regexp.MustCompile(`(?i)\b(quiz me|test me|test my (knowledge|understanding)|check my (understanding|answers?)|assess me|what am i missing)\b`), 0.8},
			{regexp.MustCompile(`(?i)\b(my gaps|weak spots|weak areas)\b`), 0.7},
		},
		learning.QueryConceptQuestion: {
			{regexp.MustCompile(`(?i)^(please )?(can you |could you )?(explain|define|describe)\b`), 0.85},
			{regexp.MustCompile(`(?i)\b(what (is|are)|how (does|do)|why (does|do|is|are)|difference between|meaning of)\b`), 0.75},
		},
	}
)

// Classifier assigns query types deterministically: the same text and
// code always produce the same classification.
type Classifier struct {
	threshold float64
}

func NewClassifier(threshold float64) *Classifier {
	return &Classifier{threshold: threshold}
}

// Threshold returns the minimum confidence for dispatch
func (c *Classifier) Threshold() float64 { return c.threshold }

// Classify detects all signals and picks the primary type by precedence
func (c *Classifier) Classify(q learning.Query) Classification {
	parsed := Parse(q.Text)
	if parsed.Directive != "" {
		conf := 1.0
		if parsed.IsEmpty() && !q.HasCode() {
			conf = 0
		}
		return Classification{
			Type:       parsed.Directive,
			Confidence: conf,
			Signals:    map[learning.QueryType]float64{parsed.Directive: conf},
		}
	}

	text := parsed.CleanPrompt
	signals := make(map[learning.QueryType]float64)

	if q.HasCode() {
		signals[learning.QueryCodeAnalysis] = 0.95
	} else if fencedCodePattern.MatchString(text) {
		signals[learning.QueryCodeAnalysis] = 0.9
	}
	for t, patterns := range signalPatterns {
		for _, p := range patterns {
			if p.pattern.MatchString(text) && p.confidence > signals[t] {
				signals[t] = p.confidence
			}
		}
	}
	signals[learning.QueryGeneralQuestion] = generalConfidence(text)

	for _, t := range learning.Precedence {
		if conf, ok := signals[t]; ok && conf > 0 {
			return Classification{Type: t, Confidence: conf, Signals: signals}
		}
	}
	return Classification{Type: learning.QueryGeneralQuestion, Signals: signals}
}

// Ambiguous reports whether cls falls below the dispatch threshold
func (c *Classifier) Ambiguous(cls Classification) bool {
	return cls.Confidence < c.threshold
}

// generalConfidence scores free-form text. Very short or vague text
// stays below the default threshold so the learner is asked to clarify.
func generalConfidence(text string) float64 {
	words := len(strings.Fields(text))
	switch {
	case words >= 3 && strings.HasSuffix(strings.TrimSpace(text), "?"):
		return 0.6
	case words >= 4:
		return 0.55
	case words == 0:
		return 0
	default:
		return 0.3
	}
}

// clarificationSuggestions proposes rephrasings for ambiguous queries
func clarificationSuggestions(text string) []string {
	suggestions := []string{
		"Paste the code you are working on and say what it should do.",
		"Name the concept you want explained, for example \"explain recursion\".",
		"Ask for a diagram, for example \"draw a binary tree\".",
		"Say \"quiz me on <topic>\" to check your understanding.",
	}
	if strings.TrimSpace(text) == "" {
		return suggestions[:2]
	}
	return suggestions
}
