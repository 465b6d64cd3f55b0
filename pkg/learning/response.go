package learning

import "time"

// VisualAid is a rendered or renderable diagram attached to a response
type VisualAid struct {
	Kind   string `json:"kind"` // e.g. "mermaid", "svg"
	Title  string `json:"title"`
	Source string `json:"source"`
}

// Notice is the warning payload attached to degraded responses
type Notice struct {
	Warning    string `json:"warning"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
}

// Response is produced fresh for every query and never mutated after return
type Response struct {
	Content         string           `json:"content"`
	Mode            Mode             `json:"mode"`
	QueryType       QueryType        `json:"query_type,omitempty"`
	VisualAids      []VisualAid      `json:"visual_aids"`
	DetectedGaps    []ConceptualGap  `json:"detected_gaps,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	Suggestions     []string         `json:"suggestions,omitempty"`
	Notice          *Notice          `json:"notice,omitempty"`
	Degraded        bool             `json:"degraded,omitempty"`
}

// Interaction is one immutable entry of the context window
type Interaction struct {
	Query     Query     `json:"query"`
	Response  Response  `json:"response"`
	Concepts  []string  `json:"concepts,omitempty"` // Named concepts, most relevant first
	Summary   bool      `json:"summary,omitempty"`  // Synthesized placeholder
	Timestamp time.Time `json:"timestamp"`
}

// Recommendation is a learning resource bundle for a gap
type Recommendation struct {
	Title     string   `json:"title"`
	Resources []string `json:"resources"`
	Exercises []string `json:"exercises"`
}
