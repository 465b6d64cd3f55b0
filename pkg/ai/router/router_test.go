package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/ai/mode"
	"ai-tutor-be/pkg/learning"
	"ai-tutor-be/pkg/llm"
	"ai-tutor-be/pkg/tutor/analyzer"
	"ai-tutor-be/pkg/tutor/gap"
	"ai-tutor-be/pkg/tutor/window"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAnalyzer struct {
	name   string
	kind   analyzer.Kind
	result *analyzer.Result
	err    error
	block  bool // Wait for cancellation

	mu        sync.Mutex
	calls     int
	lastQuery learning.Query
	lastCtx   analyzer.Context
}

func (f *fakeAnalyzer) Name() string        { return f.name }
func (f *fakeAnalyzer) Kind() analyzer.Kind { return f.kind }

func (f *fakeAnalyzer) Analyze(ctx context.Context, q learning.Query, actx analyzer.Context) (*analyzer.Result, error) {
	f.mu.Lock()
	f.calls++
	f.lastQuery = q
	f.lastCtx = actx
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.result, f.err
}

func (f *fakeAnalyzer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func textAnalyzer(name, content string) *fakeAnalyzer {
	return &fakeAnalyzer{name: name, kind: analyzer.KindText, result: &analyzer.Result{Content: content}}
}

type fixture struct {
	router  *Router
	window  *window.Manager
	modes   *mode.Machine
	session *learning.Session
}

// slowCompleter answers after delay unless the context ends first
type slowCompleter struct {
	delay time.Duration
}

func (s slowCompleter) Complete(ctx context.Context, prompt string, m learning.Mode, maxTokens int) (string, error) {
	select {
	case <-time.After(s.delay):
		return "late reply", nil
	case <-ctx.Done():
		return "", llm.Classify(ctx, ctx.Err())
	}
}

func newFixture(reg *Registry, d Deadlines) *fixture {
	return newFixtureWithAI(reg, d, nil)
}

// newFixtureWithAI backs the adapter and the gap pipeline with ai
func newFixtureWithAI(reg *Registry, d Deadlines, ai llm.Completer) *fixture {
	log := logger.NewNopLogger()
	wm := window.NewManager(8, 0, 2, nil, log)
	modes := mode.NewMachine(log)
	pipeline := gap.NewPipeline(3, 2, log)
	if ai != nil {
		pipeline = gap.NewPipeline(3, 2, log,
			gap.WithCategorizer(gap.NewAICategorizer(ai)),
			gap.WithRecommender(gap.NewAIRecommender(ai)),
		)
	}
	r := NewRouter(
		NewClassifier(0.5),
		reg,
		wm,
		pipeline,
		modes,
		mode.NewAdapter(ai, 200, 300, log),
		d,
		NewMetrics(prometheus.NewRegistry()),
		log,
	)
	return &fixture{
		router:  r,
		window:  wm,
		modes:   modes,
		session: learning.NewSession("s1", "u1", time.Now()),
	}
}

func (f *fixture) query(text string) learning.Query {
	return learning.Query{
		ID:        uuid.NewString(),
		SessionID: f.session.ID,
		UserID:    f.session.UserID,
		Text:      text,
		Timestamp: time.Now(),
	}
}

func TestAmbiguousQueryAsksForClarification(t *testing.T) {
	general := textAnalyzer("general", "hello")
	f := newFixture(NewRegistry().Register(learning.QueryGeneralQuestion, general), Deadlines{})

	resp, err := f.router.Route(context.Background(), f.query("hmm"), f.session)

	require.NoError(t, err)
	assert.NotEmpty(t, resp.Suggestions)
	require.NotNil(t, resp.Notice)
	assert.Equal(t, learning.CodeClassificationAmbiguous, resp.Notice.Warning)
	assert.Zero(t, general.Calls(), "no dispatch")
	assert.Empty(t, f.window.Window(f.session))
}

func TestInputErrorHasNoSideEffects(t *testing.T) {
	f := newFixture(NewRegistry(), Deadlines{})
	q := f.query("check this")
	q.Code, q.Language = "x", "cobol"

	resp, err := f.router.Route(context.Background(), q, f.session)

	assert.Nil(t, resp)
	assert.Equal(t, learning.KindInput, learning.KindOf(err))
	assert.Empty(t, f.session.Window)
	assert.Zero(t, f.session.QueryCount)
}

func TestExamRecursionScenario(t *testing.T) {
	var long strings.Builder
	long.WriteString("Recursion is a function calling itself on a smaller input. ")
	long.WriteString("Think of it as Russian dolls nested inside each other. ")
	for i := 0; i < 30; i++ {
		long.WriteString("A base case stops the recursion and each call returns to its caller. ")
	}
	explainer := textAnalyzer("explainer", long.String())
	f := newFixture(NewRegistry().Register(learning.QueryConceptQuestion, explainer), Deadlines{})
	_, err := f.modes.Set(f.session, learning.ModeExam)
	require.NoError(t, err)

	resp, err := f.router.Route(context.Background(), f.query("explain recursion"), f.session)

	require.NoError(t, err)
	assert.Equal(t, learning.ModeExam, resp.Mode)
	assert.Equal(t, learning.QueryConceptQuestion, resp.QueryType)
	assert.LessOrEqual(t, mode.WordCount(resp.Content), 200)
	assert.NotContains(t, resp.Content, "Russian dolls")
	assert.Len(t, f.window.Window(f.session), 1)
}

func TestVisualUnavailableScenario(t *testing.T) {
	explainer := textAnalyzer("explainer", "A binary tree has at most two children per node.")
	visual := &fakeAnalyzer{name: "visual", kind: analyzer.KindVisual, err: llm.ErrUnavailable}
	f := newFixture(NewRegistry().Register(learning.QueryVisualRequest, explainer, visual), Deadlines{})

	resp, err := f.router.Route(context.Background(), f.query("draw a binary tree"), f.session)

	require.NoError(t, err)
	assert.NotNil(t, resp.VisualAids)
	assert.Empty(t, resp.VisualAids)
	assert.Contains(t, resp.Content, "binary tree")
	require.NotNil(t, resp.Notice)
	assert.Equal(t, "visual_unavailable", resp.Notice.Warning)
	assert.True(t, resp.Degraded)
}

func TestVisualAidsAreCombined(t *testing.T) {
	explainer := textAnalyzer("explainer", "A stack is last in, first out.")
	visual := &fakeAnalyzer{name: "visual", kind: analyzer.KindVisual, result: &analyzer.Result{
		VisualAids: []learning.VisualAid{{Kind: "mermaid", Title: "stack", Source: "graph TD; A-->B"}},
	}}
	f := newFixture(NewRegistry().Register(learning.QueryVisualRequest, explainer, visual), Deadlines{})

	resp, err := f.router.Route(context.Background(), f.query("draw a stack"), f.session)

	require.NoError(t, err)
	require.Len(t, resp.VisualAids, 1)
	assert.False(t, resp.Degraded)
	assert.Nil(t, resp.Notice)
}

func TestDeadlineReturnsPartialResults(t *testing.T) {
	fast := textAnalyzer("fast", "Here is the quick part of the answer.")
	slow := &fakeAnalyzer{name: "slow", kind: analyzer.KindText, block: true}
	f := newFixture(
		NewRegistry().Register(learning.QueryConceptQuestion, fast, slow),
		Deadlines{Text: 50 * time.Millisecond, Visual: 150 * time.Millisecond},
	)

	start := time.Now()
	resp, err := f.router.Route(context.Background(), f.query("explain closures"), f.session)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, time.Second)
	assert.True(t, resp.Degraded)
	assert.Equal(t, "degraded_response", resp.Notice.Warning)
	assert.Contains(t, resp.Content, "quick part")
}

func TestVisualPlanGetsLongerDeadline(t *testing.T) {
	slowVisual := &fakeAnalyzer{name: "visual", kind: analyzer.KindVisual, block: true}
	explainer := textAnalyzer("explainer", "Queues are first in, first out.")
	f := newFixture(
		NewRegistry().Register(learning.QueryVisualRequest, explainer, slowVisual),
		Deadlines{Text: 20 * time.Millisecond, Visual: 120 * time.Millisecond},
	)

	start := time.Now()
	resp, err := f.router.Route(context.Background(), f.query("draw a queue"), f.session)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Equal(t, "visual_unavailable", resp.Notice.Warning)
}

func TestDeadlineCoversPostProcessing(t *testing.T) {
	explainer := &fakeAnalyzer{name: "explainer", kind: analyzer.KindText, result: &analyzer.Result{
		Content: "Recursion solves a problem by solving smaller copies of it.",
		Errors:  []string{"RecursionError: maximum recursion depth exceeded"},
	}}
	f := newFixtureWithAI(
		NewRegistry().Register(learning.QueryConceptQuestion, explainer),
		Deadlines{Text: 50 * time.Millisecond, Visual: 150 * time.Millisecond},
		slowCompleter{delay: 500 * time.Millisecond},
	)

	start := time.Now()
	resp, err := f.router.Route(context.Background(), f.query("explain recursion please"), f.session)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, 300*time.Millisecond, "AI calls after the join share the route budget")
	assert.True(t, strings.HasPrefix(resp.Content, "## Explanation"), resp.Content)
	assert.Contains(t, resp.Content, "smaller copies")
	require.Len(t, resp.DetectedGaps, 1)
	assert.Equal(t, "recursion base case", resp.DetectedGaps[0].Key.Concept)
	require.Len(t, resp.Recommendations, 1)
	assert.Equal(t, gap.FallbackRecommendation(resp.DetectedGaps[0]), resp.Recommendations[0])
	assert.Len(t, f.window.Window(f.session), 1)
}

func TestVisualAndTextFailuresAreBothReported(t *testing.T) {
	explainer := textAnalyzer("explainer", "A heap keeps its smallest element on top.")
	examples := &fakeAnalyzer{name: "examples", kind: analyzer.KindText, err: llm.ErrTimeout}
	visual := &fakeAnalyzer{name: "visual", kind: analyzer.KindVisual, err: llm.ErrUnavailable}
	f := newFixture(NewRegistry().Register(learning.QueryVisualRequest, explainer, examples, visual), Deadlines{})

	resp, err := f.router.Route(context.Background(), f.query("draw a heap"), f.session)

	require.NoError(t, err)
	assert.True(t, resp.Degraded)
	assert.Empty(t, resp.VisualAids)
	require.NotNil(t, resp.Notice)
	assert.Equal(t, "visual_unavailable", resp.Notice.Warning)
	assert.Contains(t, resp.Notice.Message, "diagram")
	assert.Contains(t, resp.Notice.Message, "text answer")
}

func TestAllAnalyzersFailing(t *testing.T) {
	a := &fakeAnalyzer{name: "a", kind: analyzer.KindText, err: llm.ErrTimeout}
	b := &fakeAnalyzer{name: "b", kind: analyzer.KindText, err: llm.ErrUnavailable}
	f := newFixture(NewRegistry().Register(learning.QueryConceptQuestion, a, b), Deadlines{})

	resp, err := f.router.Route(context.Background(), f.query("explain closures"), f.session)

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, learning.ErrDownstreamUnavailable)
	assert.Equal(t, learning.KindProcessing, learning.KindOf(err))
	assert.Empty(t, f.session.Window)
}

func TestInfiniteLoopScenario(t *testing.T) {
	code := &fakeAnalyzer{name: "code", kind: analyzer.KindText, result: &analyzer.Result{
		Content: "Your loop condition never changes.",
		Errors:  []string{"infinite loop: i is never incremented"},
	}}
	f := newFixture(NewRegistry().Register(learning.QueryCodeAnalysis, code, analyzer.NewLoopCheck()), Deadlines{})

	q := f.query("why does this hang?")
	q.Code = "i = 0\nwhile True:\n    print(i)\n"
	q.Language = "python"

	resp, err := f.router.Route(context.Background(), q, f.session)

	require.NoError(t, err)
	require.Len(t, resp.DetectedGaps, 1, "one query counts once per concept")
	g := resp.DetectedGaps[0]
	assert.Equal(t, "loop termination", g.Key.Concept)
	assert.Equal(t, learning.SeverityModerate, g.Severity)
	assert.Equal(t, learning.SourceCode, g.DetectedFrom)
	assert.NotEmpty(t, resp.Recommendations)
	assert.Len(t, f.session.GapLedger, 1)
}

func TestBuildModeKeepsCode(t *testing.T) {
	code := textAnalyzer("code", "Use a guard clause:\n\n```go\nif n == 0 {\n\treturn 1\n}\n```")
	f := newFixture(NewRegistry().Register(learning.QueryCodeAnalysis, code), Deadlines{})
	_, err := f.modes.Set(f.session, learning.ModeBuild)
	require.NoError(t, err)

	q := f.query("review my factorial")
	q.Code, q.Language = "func fact(n int) int { return n * fact(n-1) }", "go"
	resp, err := f.router.Route(context.Background(), q, f.session)

	require.NoError(t, err)
	assert.Contains(t, resp.Content, "```go\nif n == 0 {\n\treturn 1\n}\n```")
}

func TestModeDoesNotLeakAcrossQueries(t *testing.T) {
	explainer := textAnalyzer("explainer", "Imagine a library. An index maps keys to locations.")
	f := newFixture(NewRegistry().Register(learning.QueryConceptQuestion, explainer), Deadlines{})

	sequence := []learning.Mode{learning.ModeExam, learning.ModeConcept, learning.ModeBuild, learning.ModeExam, learning.ModeExam}
	for _, m := range sequence {
		_, err := f.modes.Set(f.session, m)
		require.NoError(t, err)

		resp, err := f.router.Route(context.Background(), f.query("explain indexes"), f.session)
		require.NoError(t, err)
		assert.Equal(t, m, resp.Mode)
		assert.Equal(t, m, explainer.lastCtx.Snapshot.Mode)
		if m == learning.ModeExam {
			assert.NotContains(t, resp.Content, "Imagine")
		}
	}

	w := f.window.Window(f.session)
	require.Len(t, w, len(sequence))
	for i, m := range sequence {
		assert.Equal(t, m, w[i].Response.Mode)
	}
}

func TestCodeReferenceResolvesFromWindow(t *testing.T) {
	code := textAnalyzer("code", "The loop is fine.")
	f := newFixture(NewRegistry().Register(learning.QueryCodeAnalysis, code), Deadlines{})

	first := f.query("check this loop")
	first.Code, first.Language = "for i := 0; i < 3; i++ {}", "go"
	_, err := f.router.Route(context.Background(), first, f.session)
	require.NoError(t, err)

	_, err = f.router.Route(context.Background(), f.query("is the code above idiomatic?"), f.session)
	require.NoError(t, err)

	assert.Equal(t, 2, code.Calls())
	assert.Equal(t, first.Code, code.lastQuery.Code)
	assert.Equal(t, "go", code.lastQuery.Language)
}

func TestMissingReferenceAsksForClarification(t *testing.T) {
	code := textAnalyzer("code", "unused")
	f := newFixture(NewRegistry().Register(learning.QueryCodeAnalysis, code), Deadlines{})

	resp, err := f.router.Route(context.Background(), f.query("what is wrong with the code above?"), f.session)

	require.NoError(t, err)
	assert.Equal(t, "reference_not_found", resp.Notice.Warning)
	assert.NotEmpty(t, resp.Suggestions)
	assert.Zero(t, code.Calls())
}

func TestCancelledQueryIsNotRecorded(t *testing.T) {
	slow := &fakeAnalyzer{name: "slow", kind: analyzer.KindText, block: true}
	f := newFixture(NewRegistry().Register(learning.QueryConceptQuestion, slow), Deadlines{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	resp, err := f.router.Route(ctx, f.query("explain closures"), f.session)

	assert.Nil(t, resp)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.ErrorIs(t, err, learning.ErrQueryCancelled)
	assert.Equal(t, learning.CodeQueryCancelled, learning.Public(err).Error)
	assert.Empty(t, f.session.Window)
	assert.Empty(t, f.session.GapLedger)
}

func TestSuggestionsDeduplicated(t *testing.T) {
	a := &fakeAnalyzer{name: "a", kind: analyzer.KindText, result: &analyzer.Result{Content: "one", Suggestions: []string{"Try tests", "Read docs"}}}
	b := &fakeAnalyzer{name: "b", kind: analyzer.KindText, result: &analyzer.Result{Content: "two", Suggestions: []string{"Read docs", "Pair up"}}}
	f := newFixture(NewRegistry().Register(learning.QueryConceptQuestion, a, b), Deadlines{})

	resp, err := f.router.Route(context.Background(), f.query("explain testing"), f.session)

	require.NoError(t, err)
	assert.Equal(t, []string{"Try tests", "Read docs", "Pair up"}, resp.Suggestions)
	assert.True(t, strings.Index(resp.Content, "one") < strings.Index(resp.Content, "two"), "plan order kept")
}
