package analyzer

import (
	"context"
	"regexp"
	"strings"

	"ai-tutor-be/pkg/learning"
)

var unboundedLoopPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*while\s*\(?\s*(True|true|1)\s*\)?\s*[:{]`),
	regexp.MustCompile(`(?m)^\s*for\s*\{`),
	regexp.MustCompile(`(?m)^\s*for\s*\(\s*;\s*;\s*\)`),
	regexp.MustCompile(`(?m)^\s*loop\s*\{`),
}

var loopExitPattern = regexp.MustCompile(`\b(break|return|os\.Exit|sys\.exit|panic|throw)\b`)

// LoopCheck flags loops that have no visible exit. It needs no network
// and so still produces a signal when the code analyzer is down.
type LoopCheck struct{}

func NewLoopCheck() *LoopCheck { return &LoopCheck{} }

func (a *LoopCheck) Name() string { return "loop_check" }
func (a *LoopCheck) Kind() Kind   { return KindText }

func (a *LoopCheck) Analyze(ctx context.Context, q learning.Query, actx Context) (*Result, error) {
	res := &Result{}
	if !q.HasCode() {
		return res, nil
	}
	for _, p := range unboundedLoopPatterns {
		loc := p.FindStringIndex(q.Code)
		if loc == nil {
			continue
		}
		body := q.Code[loc[1]:]
		if loopExitPattern.MatchString(body) {
			continue
		}
		header := strings.TrimSpace(q.Code[loc[0]:loc[1]])
		res.Errors = append(res.Errors, "possible infinite loop: `"+header+"` has no break or return")
		res.Signals = append(res.Signals, learning.GapSignal{
			Concept:  "loop termination",
			Evidence: "loop `" + header + "` never exits",
			Source:   learning.SourceCode,
			Strong:   true,
		})
		res.Suggestions = append(res.Suggestions, "Check that every loop has a condition that eventually becomes false.")
		break
	}
	return res, nil
}
