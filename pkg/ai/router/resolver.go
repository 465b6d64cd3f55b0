package router

import (
	"ai-tutor-be/pkg/learning"
	"ai-tutor-be/pkg/llm"
	"ai-tutor-be/pkg/tutor/analyzer"
)

// Registry maps each query type to the ordered analyzers that serve it.
// Plan order is also the order text sections are combined in.
type Registry struct {
	plans map[learning.QueryType][]analyzer.Analyzer
}

func NewRegistry() *Registry {
	return &Registry{plans: make(map[learning.QueryType][]analyzer.Analyzer)}
}

// Register replaces the plan for t
func (r *Registry) Register(t learning.QueryType, analyzers ...analyzer.Analyzer) *Registry {
	r.plans[t] = append([]analyzer.Analyzer(nil), analyzers...)
	return r
}

// Plan returns a copy of the plan for t, or nil
func (r *Registry) Plan(t learning.QueryType) []analyzer.Analyzer {
	plan, ok := r.plans[t]
	if !ok {
		return nil
	}
	return append([]analyzer.Analyzer(nil), plan...)
}

// RemoteEndpoints locates optional external analyzers. Empty values fall
// back to the AI backed built-ins.
type RemoteEndpoints struct {
	CodeAnalyzerURL    string
	VisualGeneratorURL string
}

// NewDefaultRegistry wires the standard plans
func NewDefaultRegistry(ai llm.Completer, remote RemoteEndpoints) *Registry {
	var code analyzer.Analyzer = analyzer.NewCodeAnalyzer(ai)
	if remote.CodeAnalyzerURL != "" {
		code = analyzer.NewRemote("code_analyzer", analyzer.KindText, remote.CodeAnalyzerURL)
	}
	var visual analyzer.Analyzer = analyzer.NewDiagramGenerator(ai)
	if remote.VisualGeneratorURL != "" {
		visual = analyzer.NewRemote("visual_generator", analyzer.KindVisual, remote.VisualGeneratorURL)
	}
	explainer := analyzer.NewConceptExplainer(ai)

	return NewRegistry().
		Register(learning.QueryCodeAnalysis, code, analyzer.NewLoopCheck()).
		Register(learning.QueryVisualRequest, explainer, visual).
		Register(learning.QueryGapAssessment, analyzer.NewQuizAssessor(ai)).
		Register(learning.QueryConceptQuestion, explainer).
		Register(learning.QueryGeneralQuestion, analyzer.NewGeneralResponder(ai))
}
