package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind categorizes AI service failures
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindUnavailable ErrorKind = "unavailable"
	KindRateLimited ErrorKind = "rate_limited"
)

// Error is returned by every AI service call that fails
type Error struct {
	Kind      ErrorKind
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ai service %s: %v", e.Kind, e.Err)
	}
	return "ai service " + string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind so callers can use the sentinels below
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

var (
	ErrTimeout     = &Error{Kind: KindTimeout}
	ErrUnavailable = &Error{Kind: KindUnavailable, Retryable: true}
	ErrRateLimited = &Error{Kind: KindRateLimited, Retryable: true}
)

// NewError wraps err with the given kind. Nil stays nil.
func NewError(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}
	return &Error{Kind: kind, Retryable: kind != KindTimeout, Err: err}
}

// Classify maps arbitrary provider errors onto the taxonomy
func Classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewError(KindTimeout, err)
	}
	return NewError(KindUnavailable, err)
}
