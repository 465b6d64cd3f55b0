package llm

import (
	"context"
	"fmt"
	"time"

	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/learning"

	"golang.org/x/time/rate"
)

// Completer is the AI Service Layer contract used by the router,
// the mode adapter and the gap pipeline. The deadline travels in ctx.
type Completer interface {
	Complete(ctx context.Context, prompt string, mode learning.Mode, maxTokens int) (string, error)
}

// Service wraps an LLMProvider with mode-aware system prompts,
// client-side rate limiting and the error taxonomy.
type Service struct {
	provider         LLMProvider
	limiter          *rate.Limiter
	defaultMaxTokens int
	logger           logger.ILogger
}

var _ Completer = (*Service)(nil)

// NewService creates the AI service. rps <= 0 disables rate limiting.
func NewService(provider LLMProvider, rps float64, burst int, defaultMaxTokens int, log logger.ILogger) *Service {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &Service{
		provider:         provider,
		limiter:          limiter,
		defaultMaxTokens: defaultMaxTokens,
		logger:           log,
	}
}

// Complete sends prompt to the model framed for the given mode
func (s *Service) Complete(ctx context.Context, prompt string, mode learning.Mode, maxTokens int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", Classify(ctx, err)
	}
	// Wait fails fast when the wait would outlive the deadline
	if err := s.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return "", NewError(KindTimeout, err)
		}
		return "", NewError(KindRateLimited, err)
	}

	if maxTokens <= 0 {
		maxTokens = s.defaultMaxTokens
	}

	start := time.Now()
	history := []Message{
		{Role: "system", Content: SystemPrompt(mode)},
		{Role: "user", Content: prompt},
	}
	reply, err := s.provider.Chat(ctx, history, WithMaxTokens(maxTokens), WithTemperature(Temperature(mode)))
	if err != nil {
		classified := Classify(ctx, err)
		s.logger.Warn("AI", "completion failed", map[string]interface{}{
			"mode":     mode,
			"error":    classified.Error(),
			"duration": time.Since(start).String(),
		})
		return "", classified
	}
	if reply == "" {
		return "", NewError(KindUnavailable, fmt.Errorf("empty completion"))
	}
	return reply, nil
}

// Temperature is the sampling temperature used for a learning mode
func Temperature(mode learning.Mode) float64 {
	switch mode {
	case learning.ModeExam:
		return 0.2
	case learning.ModeBuild:
		return 0.3
	default:
		return 0.6
	}
}

// SystemPrompt returns the framing prompt for a learning mode
func SystemPrompt(mode learning.Mode) string {
	switch mode {
	case learning.ModeExam:
		return "You are a tutor helping a student revise for an exam. Answer with direct, actionable facts only. No analogies. Stay under 200 words."
	case learning.ModeBuild:
		return "You are a senior engineer mentoring a student who is building software. Prefer working code examples in fenced code blocks and mention best practices."
	default:
		return "You are a patient tutor. Explain concepts clearly with at least one concrete example and one analogy."
	}
}
