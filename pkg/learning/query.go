package learning

import (
	"strings"
	"time"
)

// Mode represents the session-scoped response shaping state
type Mode string

const (
	ModeExam    Mode = "EXAM"    // Short, fact-only answers
	ModeConcept Mode = "CONCEPT" // Default: examples and analogies
	ModeBuild   Mode = "BUILD"   // Code-first answers with best practices
)

// DefaultMode is the mode every new session starts in
const DefaultMode = ModeConcept

// ParseMode normalizes a user supplied mode string
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToUpper(strings.TrimSpace(raw))) {
	case ModeExam:
		return ModeExam, nil
	case ModeConcept:
		return ModeConcept, nil
	case ModeBuild:
		return ModeBuild, nil
	}
	return "", NewInputError(CodeUnsupportedMode, "unsupported mode: "+raw,
		"Use one of EXAM, CONCEPT or BUILD.")
}

// QueryType is the primary classification assigned to every query
type QueryType string

const (
	QueryCodeAnalysis    QueryType = "code_analysis"
	QueryVisualRequest   QueryType = "visual_request"
	QueryGapAssessment   QueryType = "gap_assessment"
	QueryConceptQuestion QueryType = "concept_question"
	QueryGeneralQuestion QueryType = "general_question"
)

// Precedence lists query types from strongest to weakest tie-break
var Precedence = []QueryType{
	QueryCodeAnalysis,
	QueryVisualRequest,
	QueryGapAssessment,
	QueryConceptQuestion,
	QueryGeneralQuestion,
}

const maxQueryText = 8000

// SupportedLanguages are the code languages analyzers accept
var SupportedLanguages = map[string]bool{
	"go":         true,
	"python":     true,
	"javascript": true,
	"typescript": true,
	"java":       true,
	"c":          true,
	"cpp":        true,
	"rust":       true,
}

// Query is a learner submission. It is passed by value and never modified.
type Query struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	Code      string    `json:"code,omitempty"`
	Language  string    `json:"language,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HasCode reports whether the query carries a code payload
func (q Query) HasCode() bool {
	return strings.TrimSpace(q.Code) != ""
}

// WithCode returns a copy of the query carrying the given code
func (q Query) WithCode(code, language string) Query {
	q.Code = code
	if q.Language == "" {
		q.Language = language
	}
	return q
}

// Validate rejects malformed queries before any dispatch
func (q Query) Validate() error {
	if strings.TrimSpace(q.Text) == "" && !q.HasCode() {
		return NewInputError(CodeMalformedQuery, "query has neither text nor code",
			"Type a question or paste the code you want to discuss.")
	}
	if len(q.Text) > maxQueryText {
		return NewInputError(CodeMalformedQuery, "query text too long",
			"Shorten your question to under 8000 characters.")
	}
	if q.Language != "" && !SupportedLanguages[strings.ToLower(q.Language)] {
		return NewInputError(CodeUnsupportedLanguage, "unsupported language: "+q.Language,
			"Supported languages are Go, Python, JavaScript, TypeScript, Java, C, C++ and Rust.")
	}
	return nil
}
