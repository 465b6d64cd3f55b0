package factory

import (
	"fmt"

	"ai-tutor-be/internal/config"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/llm"
	"ai-tutor-be/pkg/llm/huggingface"
	"ai-tutor-be/pkg/llm/ollama"
)

func NewLLMProvider(cfg config.AIConfig) (llm.LLMProvider, error) {
	switch cfg.LLMProvider {
	case "ollama":
		baseURL := cfg.OllamaBaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434" // Default
		}
		return ollama.NewOllamaProvider(baseURL, cfg.LLMModel), nil
	case "huggingface":
		return huggingface.NewHuggingFaceProvider(cfg.HuggingFaceKey, cfg.HuggingFaceBaseURL, cfg.LLMModel), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}
}

// NewAIService builds the rate limited AI Service Layer from configuration
func NewAIService(cfg config.AIConfig, log logger.ILogger) (*llm.Service, error) {
	provider, err := NewLLMProvider(cfg)
	if err != nil {
		return nil, err
	}
	return llm.NewService(provider, cfg.RequestsPerSec, cfg.Burst, cfg.DefaultMaxToken, log), nil
}
