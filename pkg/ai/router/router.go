package router

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/ai/mode"
	"ai-tutor-be/pkg/learning"
	"ai-tutor-be/pkg/llm"
	"ai-tutor-be/pkg/tutor/analyzer"
	"ai-tutor-be/pkg/tutor/gap"
	"ai-tutor-be/pkg/tutor/window"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// errorPatterns turn raw analyzer error output into gap concepts.
// Checked in order, first match wins.
var errorPatterns = []struct {
	pattern *regexp.Regexp
	concept string
}{
	{regexp.MustCompile(`(?i)infinite loop|never terminates|loop never (ends|exits)`), "loop termination"},
	{regexp.MustCompile(`(?i)index out of (range|bounds)|off-by-one|out of bounds`), "array indexing"},
	{regexp.MustCompile(`(?i)stack overflow|maximum recursion|recursion depth`), "recursion base case"},
	{regexp.MustCompile(`(?i)nil pointer|null (pointer|reference)|nonetype|undefined is not`), "null handling"},
	{regexp.MustCompile(`(?i)\bundefined\b|not defined|undeclared|cannot find symbol`), "variable scope"},
	{regexp.MustCompile(`(?i)type mismatch|incompatible types|typeerror|cannot use .+ as`), "type conversion"},
	{regexp.MustCompile(`(?i)deadlock|data race|race condition`), "concurrency safety"},
}

// Deadlines bounds a route from receipt to response
type Deadlines struct {
	Text   time.Duration
	Visual time.Duration
}

// Router classifies queries, fans them out to analyzers and assembles
// one mode shaped response. Callers hold the session lock for the
// duration of Route.
type Router struct {
	classifier *Classifier
	registry   *Registry
	window     *window.Manager
	gaps       *gap.Pipeline
	modes      *mode.Machine
	adapter    *mode.Adapter
	deadlines  Deadlines
	metrics    *Metrics
	tracer     trace.Tracer
	logger     logger.ILogger
}

// NewRouter creates a new query router
func NewRouter(
	classifier *Classifier,
	registry *Registry,
	windowManager *window.Manager,
	gaps *gap.Pipeline,
	modes *mode.Machine,
	adapter *mode.Adapter,
	deadlines Deadlines,
	metrics *Metrics,
	log logger.ILogger,
) *Router {
	if deadlines.Text <= 0 {
		deadlines.Text = 10 * time.Second
	}
	if deadlines.Visual <= 0 {
		deadlines.Visual = 30 * time.Second
	}
	return &Router{
		classifier: classifier,
		registry:   registry,
		window:     windowManager,
		gaps:       gaps,
		modes:      modes,
		adapter:    adapter,
		deadlines:  deadlines,
		metrics:    metrics,
		tracer:     otel.Tracer("ai-tutor-be/router"),
		logger:     log,
	}
}

// Route answers q within the session. Input errors are returned before
// any side effect. Analyzer failures degrade the response; only a query
// with no usable text at all fails with ErrDownstreamUnavailable.
func (r *Router) Route(ctx context.Context, q learning.Query, session *learning.Session) (*learning.Response, error) {
	start := time.Now()

	if err := q.Validate(); err != nil {
		r.logger.Warn("ROUTER", "Query rejected", r.details(q, map[string]interface{}{"error": err.Error()}))
		return nil, err
	}

	// Captured once: a mode change requested now applies to the next query
	currentMode := r.modes.Current(session)

	ctx, span := r.tracer.Start(ctx, "router.Route")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.mode", string(currentMode)),
		attribute.String("query.id", q.ID),
	)

	refs := r.resolveReferences(session, q)
	if len(refs.Unresolved) > 0 {
		r.logger.Info("ROUTER", "Reference not found, asking for clarification", r.details(q, nil))
		return clarification(currentMode, "", referenceSuggestions(refs.Unresolved), &learning.Notice{
			Warning:    "reference_not_found",
			Message:    "I couldn't find what you are referring to in this session.",
			Suggestion: "Include the code or name the concept directly.",
		}), nil
	}

	dq := refs.Query
	cls := r.classifier.Classify(dq)
	if parsed := Parse(dq.Text); parsed.Directive != "" {
		dq.Text = parsed.CleanPrompt
	}
	span.SetAttributes(
		attribute.String("query.type", string(cls.Type)),
		attribute.Float64("query.confidence", cls.Confidence),
	)

	if r.classifier.Ambiguous(cls) {
		r.metrics.Ambiguous.Inc()
		r.logger.Info("ROUTER", "Classification below threshold", r.details(q, map[string]interface{}{
			"error":      learning.ErrClassificationAmbiguous.Error(),
			"best_type":  cls.Type,
			"confidence": cls.Confidence,
			"threshold":  r.classifier.Threshold(),
		}))
		payload := learning.Public(learning.ErrClassificationAmbiguous)
		return clarification(currentMode, cls.Type, clarificationSuggestions(dq.Text), &learning.Notice{
			Warning:    payload.Error,
			Message:    payload.Message,
			Suggestion: payload.Suggestion,
		}), nil
	}

	plan := r.registry.Plan(cls.Type)
	if len(plan) == 0 {
		err := learning.ErrDownstreamUnavailable.Wrap(fmt.Errorf("no analyzers registered for %s", cls.Type))
		r.logger.Error("ROUTER", "Empty plan", r.details(q, map[string]interface{}{"error": err.Error()}))
		return nil, err
	}

	actx := analyzer.Context{Snapshot: session.Snapshot(), Concept: refs.Concept}
	actx.Snapshot.Mode = currentMode

	// One budget from receipt to return. Every later AI call gets what is left.
	dctx, cancel := context.WithDeadline(ctx, start.Add(r.deadlineFor(plan)))
	defer cancel()
	results, failures := r.fanOut(dctx, plan, dq, actx)

	// Session ended while analyzers ran: nothing may be recorded
	if err := ctx.Err(); err != nil {
		r.logger.Warn("ROUTER", "Query cancelled before join", r.details(q, map[string]interface{}{"error": err.Error()}))
		return nil, learning.ErrQueryCancelled.Wrap(err)
	}
	deadlineHit := errors.Is(dctx.Err(), context.DeadlineExceeded)

	c := combine(results)
	textFailed, visualFailed := false, false
	failedCount := 0
	for i, a := range plan {
		if failures[i] == nil {
			continue
		}
		failedCount++
		if a.Kind() == analyzer.KindVisual {
			visualFailed = true
		} else {
			textFailed = true
		}
	}

	content := c.content
	if content == "" && len(c.errors) > 0 {
		content = "I found possible problems:\n- " + strings.Join(c.errors, "\n- ")
	}
	if content == "" {
		cause := errors.Join(failures...)
		if cause == nil {
			cause = errors.New("analyzers returned no content")
		}
		err := learning.ErrDownstreamUnavailable.Wrap(cause)
		span.RecordError(err)
		span.SetStatus(codes.Error, "downstream unavailable")
		r.logger.Error("ROUTER", "No analyzer produced content", r.details(q, map[string]interface{}{
			"error":     cause.Error(),
			"type":      cls.Type,
			"failed":    failedCount,
			"plan_size": len(plan),
			"deadline":  deadlineHit,
		}))
		return nil, err
	}

	resp := &learning.Response{
		Mode:        currentMode,
		QueryType:   cls.Type,
		VisualAids:  c.visualAids,
		Suggestions: c.suggestions,
	}

	switch {
	case visualFailed && (textFailed || deadlineHit):
		resp.VisualAids = []learning.VisualAid{}
		resp.Degraded = true
		resp.Notice = &learning.Notice{
			Warning:    "visual_unavailable",
			Message:    "The diagram could not be generated and part of the text answer could not be prepared in time.",
			Suggestion: "Ask again in a moment for the diagram and a more complete answer.",
		}
		r.metrics.Degraded.WithLabelValues("visual_unavailable").Inc()
		r.metrics.Degraded.WithLabelValues(degradeReason(deadlineHit)).Inc()
	case visualFailed:
		resp.VisualAids = []learning.VisualAid{}
		resp.Degraded = true
		resp.Notice = &learning.Notice{
			Warning:    "visual_unavailable",
			Message:    "The diagram could not be generated right now, so this answer is text only.",
			Suggestion: "Ask again in a moment if you still want the diagram.",
		}
		r.metrics.Degraded.WithLabelValues("visual_unavailable").Inc()
	case textFailed || deadlineHit:
		resp.Degraded = true
		resp.Notice = &learning.Notice{
			Warning:    "degraded_response",
			Message:    "Part of this answer could not be prepared in time.",
			Suggestion: "Ask again for a more complete answer.",
		}
		r.metrics.Degraded.WithLabelValues(degradeReason(deadlineHit)).Inc()
	}

	r.ingestGaps(dctx, session, q, dedupeSignals(append(c.signals, deriveSignals(c.errors)...)), resp)

	resp.Content = r.adapter.Apply(dctx, content, currentMode, dq)

	concepts := c.concepts
	if len(concepts) == 0 && refs.Concept != "" {
		concepts = []string{refs.Concept}
	}
	if ctx.Err() == nil {
		now := time.Now()
		r.window.Append(dctx, session, learning.Interaction{
			Query:     dq,
			Response:  *resp,
			Concepts:  concepts,
			Timestamp: now,
		})
		session.QueryCount++
		session.LastActivityAt = now
	}

	r.metrics.Queries.WithLabelValues(string(cls.Type), string(currentMode)).Inc()
	r.metrics.Latency.WithLabelValues(string(cls.Type)).Observe(time.Since(start).Seconds())
	r.logger.Info("ROUTER", "Query routed", r.details(q, map[string]interface{}{
		"type":     cls.Type,
		"mode":     currentMode,
		"failed":   failedCount,
		"degraded": resp.Degraded,
		"gaps":     len(resp.DetectedGaps),
		"duration": time.Since(start).String(),
	}))
	return resp, nil
}

func degradeReason(deadlineHit bool) string {
	if deadlineHit {
		return "deadline"
	}
	return "analyzer_failed"
}

func (r *Router) deadlineFor(plan []analyzer.Analyzer) time.Duration {
	for _, a := range plan {
		if a.Kind() == analyzer.KindVisual {
			return r.deadlines.Visual
		}
	}
	return r.deadlines.Text
}

// slots collects analyzer results by plan index. Writes after close are
// dropped so late analyzers cannot race with the join.
type slots struct {
	mu      sync.Mutex
	closed  bool
	results []*analyzer.Result
	errs    []error
}

func (s *slots) set(i int, res *analyzer.Result, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.results[i], s.errs[i] = res, err
}

func (s *slots) close(deadlineErr error) ([]*analyzer.Result, []error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for i := range s.results {
		if s.results[i] == nil && s.errs[i] == nil {
			s.errs[i] = deadlineErr
		}
	}
	return s.results, s.errs
}

// fanOut runs every analyzer of the plan concurrently and joins at the
// deadline. Analyzer errors never fail the group.
func (r *Router) fanOut(ctx context.Context, plan []analyzer.Analyzer, q learning.Query, actx analyzer.Context) ([]*analyzer.Result, []error) {
	s := &slots{
		results: make([]*analyzer.Result, len(plan)),
		errs:    make([]error, len(plan)),
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range plan {
		g.Go(func() error {
			res, err := a.Analyze(gctx, q, actx)
			if err != nil {
				r.metrics.AnalyzerFails.WithLabelValues(a.Name()).Inc()
				r.logger.Warn("ROUTER", "Analyzer failed", r.details(q, map[string]interface{}{
					"analyzer": a.Name(),
					"error":    llm.Classify(gctx, err).Error(),
				}))
				s.set(i, nil, err)
				return nil // Don't fail the group on analyzer error
			}
			if res == nil {
				res = &analyzer.Result{}
			}
			s.set(i, res, nil)
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("ROUTER", "Deadline reached before all analyzers finished", r.details(q, nil))
	}
	return s.close(llm.NewError(llm.KindTimeout, ctx.Err()))
}

type combined struct {
	content     string
	visualAids  []learning.VisualAid
	signals     []learning.GapSignal
	errors      []string
	suggestions []string
	concepts    []string
}

// combine joins results in plan order. Suggestions and concepts are
// de-duplicated, first occurrence wins.
func combine(results []*analyzer.Result) combined {
	c := combined{visualAids: make([]learning.VisualAid, 0)}
	sections := make([]string, 0, len(results))
	seenSuggestion := make(map[string]bool)
	seenConcept := make(map[string]bool)

	for _, res := range results {
		if res == nil {
			continue
		}
		if text := strings.TrimSpace(res.Content); text != "" {
			sections = append(sections, text)
		}
		c.visualAids = append(c.visualAids, res.VisualAids...)
		c.signals = append(c.signals, res.Signals...)
		c.errors = append(c.errors, res.Errors...)
		for _, s := range res.Suggestions {
			if !seenSuggestion[s] {
				seenSuggestion[s] = true
				c.suggestions = append(c.suggestions, s)
			}
		}
		for _, concept := range res.Concepts {
			n := learning.NormalizeConcept(concept)
			if n != "" && !seenConcept[n] {
				seenConcept[n] = true
				c.concepts = append(c.concepts, n)
			}
		}
	}
	c.content = strings.Join(sections, "\n\n")
	return c
}

// deriveSignals maps analyzer error output onto gap concepts
func deriveSignals(errs []string) []learning.GapSignal {
	signals := make([]learning.GapSignal, 0)
	for _, e := range errs {
		for _, p := range errorPatterns {
			if p.pattern.MatchString(e) {
				signals = append(signals, learning.GapSignal{
					Concept:  p.concept,
					Evidence: e,
					Source:   learning.SourceCode,
					Strong:   true,
				})
				break
			}
		}
	}
	return signals
}

// dedupeSignals keeps the first signal per concept so one query counts
// as one occurrence
func dedupeSignals(signals []learning.GapSignal) []learning.GapSignal {
	seen := make(map[string]bool, len(signals))
	out := make([]learning.GapSignal, 0, len(signals))
	for _, s := range signals {
		key := learning.NormalizeConcept(s.Concept)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func (r *Router) ingestGaps(ctx context.Context, session *learning.Session, q learning.Query, signals []learning.GapSignal, resp *learning.Response) {
	for _, sig := range signals {
		out := r.gaps.Ingest(ctx, session.GapLedger, session.UserID, sig)
		if out.Err != nil {
			r.logger.Warn("ROUTER", "Gap signal dropped", r.details(q, map[string]interface{}{
				"concept": sig.Concept,
				"error":   out.Err.Error(),
			}))
			continue
		}
		resp.DetectedGaps = append(resp.DetectedGaps, *out.Gap)
		resp.Recommendations = append(resp.Recommendations, out.Recommendations...)
	}
}

func clarification(m learning.Mode, t learning.QueryType, suggestions []string, notice *learning.Notice) *learning.Response {
	return &learning.Response{
		Content:     notice.Message,
		Mode:        m,
		QueryType:   t,
		VisualAids:  []learning.VisualAid{},
		Suggestions: suggestions,
		Notice:      notice,
	}
}

func (r *Router) details(q learning.Query, extra map[string]interface{}) map[string]interface{} {
	d := map[string]interface{}{
		"session_id": q.SessionID,
		"query_id":   q.ID,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range extra {
		d[k] = v
	}
	return d
}
