package gap

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ai-tutor-be/pkg/learning"
	"ai-tutor-be/pkg/llm"
)

// Recommender proposes learning resources for a gap
type Recommender interface {
	Recommend(ctx context.Context, gap learning.ConceptualGap) ([]learning.Recommendation, error)
}

// AIRecommender asks the AI Service Layer for JSON lines recommendations
type AIRecommender struct {
	ai llm.Completer
}

func NewAIRecommender(ai llm.Completer) *AIRecommender {
	return &AIRecommender{ai: ai}
}

func (r *AIRecommender) Recommend(ctx context.Context, gap learning.ConceptualGap) ([]learning.Recommendation, error) {
	prompt := fmt.Sprintf(`A learner shows a %s gap in "%s" (category: %s).
Evidence:
- %s

Reply with up to 3 lines, each a JSON object:
{"title": "...", "resources": ["..."], "exercises": ["..."]}
No other text.`, gap.Severity, gap.Key.Concept, gap.Category, strings.Join(gap.Evidence, "\n- "))

	reply, err := r.ai.Complete(ctx, prompt, learning.ModeBuild, 400)
	if err != nil {
		return nil, err
	}
	return parseRecommendations(reply), nil
}

func parseRecommendations(reply string) []learning.Recommendation {
	out := make([]learning.Recommendation, 0)
	scanner := bufio.NewScanner(strings.NewReader(reply))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var rec learning.Recommendation
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		if strings.TrimSpace(rec.Title) == "" {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// FallbackRecommendation is used whenever no tailored recommendation exists
func FallbackRecommendation(gap learning.ConceptualGap) learning.Recommendation {
	concept := gap.Key.Concept
	if concept == "" {
		concept = "this topic"
	}
	return learning.Recommendation{
		Title: "Review " + concept,
		Resources: []string{
			fmt.Sprintf("An introductory explanation of %s", concept),
			fmt.Sprintf("Worked examples that use %s", concept),
		},
		Exercises: []string{
			fmt.Sprintf("Explain %s in your own words", concept),
			fmt.Sprintf("Write a small program that exercises %s and test its edge cases", concept),
		},
	}
}
