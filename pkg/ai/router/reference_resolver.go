package router

import (
	"errors"

	"ai-tutor-be/pkg/learning"
	"ai-tutor-be/pkg/tutor/window"
)

// resolvedReferences is the outcome of resolving a query's back references
type resolvedReferences struct {
	Query      learning.Query // The query to dispatch, with referenced code attached
	Concept    string
	Unresolved []window.Mention
}

// resolveReferences looks every mention up in the session window.
// A missing referent is not an error: it is reported in Unresolved so the
// router can ask the learner to clarify.
func (r *Router) resolveReferences(session *learning.Session, q learning.Query) resolvedReferences {
	out := resolvedReferences{Query: q}

	parsed := ParseMentions(q.Text)
	if !parsed.HasMentions {
		return out
	}

	for _, m := range parsed.Mentions {
		if m.Kind == window.MentionCode && q.HasCode() {
			continue
		}
		entity, err := r.window.ResolveReference(session, m)
		if errors.Is(err, window.ErrReferenceNotFound) {
			out.Unresolved = append(out.Unresolved, m)
			continue
		}
		switch m.Kind {
		case window.MentionCode:
			out.Query = out.Query.WithCode(entity.Code, entity.Language)
			r.logger.Debug("ROUTER", "Resolved code reference", map[string]interface{}{
				"query_id":   q.ID,
				"mention":    m.Raw,
				"from_query": entity.QueryID,
				"code_len":   len(entity.Code),
				"language":   entity.Language,
			})
		case window.MentionConcept:
			out.Concept = entity.Concept
			r.logger.Debug("ROUTER", "Resolved concept reference", map[string]interface{}{
				"query_id": q.ID,
				"mention":  m.Raw,
				"concept":  entity.Concept,
			})
		}
	}
	return out
}

func referenceSuggestions(unresolved []window.Mention) []string {
	suggestions := make([]string, 0, len(unresolved))
	for _, m := range unresolved {
		switch m.Kind {
		case window.MentionCode:
			suggestions = append(suggestions, "I can't find earlier code in this session. Please paste the code again.")
		case window.MentionConcept:
			suggestions = append(suggestions, "Which concept do you mean? Please name it, for example \"explain closures\".")
		}
	}
	return suggestions
}
