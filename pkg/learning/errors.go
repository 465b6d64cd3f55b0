package learning

import (
	"errors"
	"fmt"
)

// Kind groups failures by how the orchestration core reacts to them
type Kind string

const (
	KindInput      Kind = "input"      // Rejected before dispatch, no side effects
	KindProcessing Kind = "processing" // Degrade, do not fail the query
	KindSystem     Kind = "system"     // Best effort, answer from memory
	KindFatal      Kind = "fatal"      // Surfaces to the caller
)

// Error codes shown to clients. Never contain identifiers.
const (
	CodeMalformedQuery          = "malformed_query"
	CodeUnsupportedMode         = "unsupported_mode"
	CodeUnsupportedLanguage     = "unsupported_language"
	CodeClassificationAmbiguous = "classification_ambiguous"
	CodeDownstreamUnavailable   = "downstream_unavailable"
	CodeSessionNotFound         = "session_not_found"
	CodeSessionStore            = "session_store_unavailable"
	CodeGapRejected             = "gap_rejected"
	CodeQueryCancelled          = "query_cancelled"
)

// Error carries a user safe message and one actionable suggestion
// alongside the upstream cause, which is only ever logged.
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	Suggestion string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches errors by code so sentinels work with errors.Is
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// NewInputError builds an Input error
func NewInputError(code, message, suggestion string) *Error {
	return &Error{Kind: KindInput, Code: code, Message: message, Suggestion: suggestion}
}

// Wrap attaches an upstream cause to a copy of e
func (e *Error) Wrap(err error) *Error {
	c := *e
	c.Err = err
	return &c
}

var (
	ErrClassificationAmbiguous = &Error{
		Kind:       KindProcessing,
		Code:       CodeClassificationAmbiguous,
		Message:    "We could not tell what kind of help you need.",
		Suggestion: "Add a little more detail, for example paste your code or name the concept.",
	}
	ErrDownstreamUnavailable = &Error{
		Kind:       KindProcessing,
		Code:       CodeDownstreamUnavailable,
		Message:    "Our explanation services are unavailable right now.",
		Suggestion: "Please try again in a minute.",
	}
	ErrSessionNotFound = &Error{
		Kind:       KindInput,
		Code:       CodeSessionNotFound,
		Message:    "This learning session does not exist or has ended.",
		Suggestion: "Start a new session.",
	}
	ErrSessionStoreUnavailable = &Error{
		Kind:       KindFatal,
		Code:       CodeSessionStore,
		Message:    "We could not start a learning session.",
		Suggestion: "Please try again shortly.",
	}
	ErrQueryCancelled = &Error{
		Kind:       KindProcessing,
		Code:       CodeQueryCancelled,
		Message:    "This question was stopped because the session ended.",
		Suggestion: "Start a new session and ask again.",
	}
	ErrGapRejected = &Error{
		Kind:       KindProcessing,
		Code:       CodeGapRejected,
		Message:    "A learning gap could not be categorized.",
		Suggestion: "No action needed.",
	}
)

// KindOf returns the kind of err, defaulting to System for foreign errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindSystem
}

// Payload is the user visible error or warning shape
type Payload struct {
	Error      string `json:"error,omitempty"`
	Warning    string `json:"warning,omitempty"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
}

// Public converts any error into a payload safe to show to learners
func Public(err error) Payload {
	var e *Error
	if errors.As(err, &e) {
		return Payload{Error: e.Code, Message: e.Message, Suggestion: e.Suggestion}
	}
	return Payload{
		Error:      "internal_error",
		Message:    "Something went wrong while preparing your answer.",
		Suggestion: "Please try again.",
	}
}
