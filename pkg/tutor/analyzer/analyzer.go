package analyzer

import (
	"context"

	"ai-tutor-be/pkg/learning"
)

// Kind separates text producing analyzers from visual ones.
// Visual analyzers get the longer router deadline.
type Kind string

const (
	KindText   Kind = "text"
	KindVisual Kind = "visual"
)

// Context is the read-only view an analyzer gets of the session
type Context struct {
	Snapshot learning.Snapshot
	// Concept is set when the query referred to an earlier concept
	Concept string
}

// Result is what one analyzer contributes to a response
type Result struct {
	Content     string
	VisualAids  []learning.VisualAid
	Signals     []learning.GapSignal
	Errors      []string // Raw error output, mined for gap signals
	Suggestions []string
	Concepts    []string
}

// Analyzer is an external processor the router fans out to
type Analyzer interface {
	Name() string
	Kind() Kind
	Analyze(ctx context.Context, query learning.Query, actx Context) (*Result, error)
}
