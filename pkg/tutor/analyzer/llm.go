package analyzer

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strings"

	"ai-tutor-be/pkg/learning"
	"ai-tutor-be/pkg/llm"
)

// ConceptExplainer answers concept questions through the AI service
type ConceptExplainer struct {
	ai llm.Completer
}

func NewConceptExplainer(ai llm.Completer) *ConceptExplainer {
	return &ConceptExplainer{ai: ai}
}

func (a *ConceptExplainer) Name() string { return "concept_explainer" }
func (a *ConceptExplainer) Kind() Kind   { return KindText }

func (a *ConceptExplainer) Analyze(ctx context.Context, q learning.Query, actx Context) (*Result, error) {
	concept := ExtractConcept(q.Text)
	if actx.Concept != "" {
		concept = actx.Concept
	}

	var b strings.Builder
	if actx.Concept != "" {
		fmt.Fprintf(&b, "The learner is referring to the concept %q from earlier.\n", actx.Concept)
	}
	writeOpenGaps(&b, actx.Snapshot)
	fmt.Fprintf(&b, "QUESTION: %s", q.Text)

	reply, err := a.ai.Complete(ctx, b.String(), actx.Snapshot.Mode, 0)
	if err != nil {
		return nil, err
	}

	res := &Result{Content: strings.TrimSpace(reply), Signals: ConfusionSignals(q.Text)}
	if concept != "" {
		res.Concepts = []string{concept}
	}
	return res, nil
}

// GeneralResponder handles everything that is not clearly a concept,
// code, visual or assessment request
type GeneralResponder struct {
	ai llm.Completer
}

func NewGeneralResponder(ai llm.Completer) *GeneralResponder {
	return &GeneralResponder{ai: ai}
}

func (a *GeneralResponder) Name() string { return "general_responder" }
func (a *GeneralResponder) Kind() Kind   { return KindText }

func (a *GeneralResponder) Analyze(ctx context.Context, q learning.Query, actx Context) (*Result, error) {
	var b strings.Builder
	writeRecentWindow(&b, actx.Snapshot, 3)
	fmt.Fprintf(&b, "LEARNER: %s", q.Text)

	reply, err := a.ai.Complete(ctx, b.String(), actx.Snapshot.Mode, 0)
	if err != nil {
		return nil, err
	}
	return &Result{Content: strings.TrimSpace(reply)}, nil
}

// QuizAssessor runs gap assessments and reports missed concepts
type QuizAssessor struct {
	ai llm.Completer
}

func NewQuizAssessor(ai llm.Completer) *QuizAssessor {
	return &QuizAssessor{ai: ai}
}

func (a *QuizAssessor) Name() string { return "quiz_assessor" }
func (a *QuizAssessor) Kind() Kind   { return KindText }

func (a *QuizAssessor) Analyze(ctx context.Context, q learning.Query, actx Context) (*Result, error) {
	var b strings.Builder
	b.WriteString(`You are assessing a learner. If the message contains answers, grade them.
Otherwise ask three short questions on the topic.
For every concept the learner got wrong add a line at the end:
GAP: <concept> | <what was wrong>
`)
	writeOpenGaps(&b, actx.Snapshot)
	writeRecentWindow(&b, actx.Snapshot, 2)
	fmt.Fprintf(&b, "LEARNER: %s", q.Text)

	reply, err := a.ai.Complete(ctx, b.String(), actx.Snapshot.Mode, 0)
	if err != nil {
		return nil, err
	}

	content, tagged := splitTaggedLines(reply, "GAP:")
	res := &Result{Content: content}
	for _, line := range tagged {
		concept, evidence, _ := strings.Cut(line, "|")
		concept = strings.TrimSpace(concept)
		if concept == "" {
			continue
		}
		res.Signals = append(res.Signals, learning.GapSignal{
			Concept:  concept,
			Evidence: strings.TrimSpace(evidence),
			Source:   learning.SourceQuiz,
			Strong:   true,
		})
		res.Concepts = append(res.Concepts, learning.NormalizeConcept(concept))
	}
	if c := ExtractConcept(q.Text); c != "" && len(res.Concepts) == 0 {
		res.Concepts = []string{c}
	}
	return res, nil
}

// CodeAnalyzer reviews submitted code through the AI service.
// It is the built-in stand-in for a remote code analysis service.
type CodeAnalyzer struct {
	ai llm.Completer
}

func NewCodeAnalyzer(ai llm.Completer) *CodeAnalyzer {
	return &CodeAnalyzer{ai: ai}
}

func (a *CodeAnalyzer) Name() string { return "code_analyzer" }
func (a *CodeAnalyzer) Kind() Kind   { return KindText }

func (a *CodeAnalyzer) Analyze(ctx context.Context, q learning.Query, actx Context) (*Result, error) {
	prompt := fmt.Sprintf(`Review the %s code below for the learner's question.
Explain problems plainly. For each bug add a line at the end:
ERROR: <short description>
Then one line naming the main concept involved:
CONCEPT: <concept>

QUESTION: %s

CODE:
%s`, languageOrDefault(q.Language), q.Text, q.Code)

	reply, err := a.ai.Complete(ctx, prompt, actx.Snapshot.Mode, 0)
	if err != nil {
		return nil, err
	}

	content, errs := splitTaggedLines(reply, "ERROR:")
	content, concepts := splitTaggedLines(content, "CONCEPT:")
	res := &Result{Content: content, Errors: errs}
	for _, c := range concepts {
		if n := learning.NormalizeConcept(c); n != "" {
			res.Concepts = append(res.Concepts, n)
		}
	}
	return res, nil
}

var mermaidBlock = regexp.MustCompile("(?s)```mermaid\\s*\\n(.*?)```")

// DiagramGenerator asks the AI service for a mermaid diagram.
// Used when no remote visual generator is configured.
type DiagramGenerator struct {
	ai llm.Completer
}

func NewDiagramGenerator(ai llm.Completer) *DiagramGenerator {
	return &DiagramGenerator{ai: ai}
}

func (a *DiagramGenerator) Name() string { return "diagram_generator" }
func (a *DiagramGenerator) Kind() Kind   { return KindVisual }

func (a *DiagramGenerator) Analyze(ctx context.Context, q learning.Query, actx Context) (*Result, error) {
	concept := ExtractConcept(q.Text)
	if actx.Concept != "" {
		concept = actx.Concept
	}
	prompt := fmt.Sprintf("Draw a mermaid diagram that explains %q. Reply with a single ```mermaid fenced block and nothing else.", concept)

	reply, err := a.ai.Complete(ctx, prompt, learning.ModeBuild, 600)
	if err != nil {
		return nil, err
	}
	m := mermaidBlock.FindStringSubmatch(reply)
	if m == nil {
		return nil, fmt.Errorf("diagram generator: no mermaid block in reply")
	}
	return &Result{
		VisualAids: []learning.VisualAid{{
			Kind:   "mermaid",
			Title:  concept,
			Source: strings.TrimSpace(m[1]),
		}},
	}, nil
}

// splitTaggedLines removes lines starting with tag and returns their payloads
func splitTaggedLines(reply, tag string) (string, []string) {
	var content []string
	var tagged []string
	scanner := bufio.NewScanner(strings.NewReader(reply))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if len(trimmed) >= len(tag) && strings.EqualFold(trimmed[:len(tag)], tag) {
			if payload := strings.TrimSpace(trimmed[len(tag):]); payload != "" {
				tagged = append(tagged, payload)
			}
			continue
		}
		content = append(content, line)
	}
	return strings.TrimSpace(strings.Join(content, "\n")), tagged
}

func writeOpenGaps(b *strings.Builder, snap learning.Snapshot) {
	if len(snap.OpenGaps) == 0 {
		return
	}
	b.WriteString("Known gaps of this learner:\n")
	for i, g := range snap.OpenGaps {
		if i == 3 {
			break
		}
		fmt.Fprintf(b, "- %s (%s)\n", g.Key.Concept, g.Severity)
	}
}

func writeRecentWindow(b *strings.Builder, snap learning.Snapshot, n int) {
	start := len(snap.Window) - n
	if start < 0 {
		start = 0
	}
	for _, it := range snap.Window[start:] {
		fmt.Fprintf(b, "LEARNER: %s\nTUTOR: %s\n", it.Query.Text, it.Response.Content)
	}
}

func languageOrDefault(lang string) string {
	if lang == "" {
		return "source"
	}
	return lang
}
