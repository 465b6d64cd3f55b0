package router

import (
	"regexp"

	"ai-tutor-be/pkg/tutor/window"
)

// Reference patterns:
// "the code above", "my code", "that code", "previous code" → latest code submission
// "that concept", "this topic", "the same idea"             → latest named concept
var (
	codeMentionPattern    = regexp.MustCompile(`(?i)\b(the code above|the above code|my (previous |last |earlier )?code|that code|previous code|the (same|previous|last|earlier) code)\b`)
	conceptMentionPattern = regexp.MustCompile(`(?i)\b(that|this|the same|the previous|the last) (concept|topic|idea)\b`)
)

// MentionParseResult contains every back reference found in a query
type MentionParseResult struct {
	Mentions    []window.Mention
	HasMentions bool
}

// ParseMentions extracts references to earlier interactions from text.
// Each kind is reported at most once, code first.
func ParseMentions(text string) *MentionParseResult {
	result := &MentionParseResult{Mentions: make([]window.Mention, 0, 2)}

	if m := codeMentionPattern.FindString(text); m != "" {
		result.Mentions = append(result.Mentions, window.Mention{Kind: window.MentionCode, Raw: m})
	}
	if m := conceptMentionPattern.FindString(text); m != "" {
		result.Mentions = append(result.Mentions, window.Mention{Kind: window.MentionConcept, Raw: m})
	}

	result.HasMentions = len(result.Mentions) > 0
	return result
}
