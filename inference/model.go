package inference

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ModelConfig selects an OpenAI-compatible chat model.
type ModelConfig struct {
	// Model is the model identifier, e.g. "llama-3.3-70b-versatile".
	Model string
	// BaseURL points at an OpenAI-compatible endpoint such as
	// https://api.groq.com/openai/v1. Empty uses the OpenAI default.
	BaseURL string
	// APIKey is the bearer token. Empty falls back to OPENAI_API_KEY.
	APIKey string
}

// NewModel creates the chat model described by cfg.
func NewModel(cfg ModelConfig) (llms.Model, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("inference: model identifier is required")
	}
	opts := []openai.Option{openai.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM: %w", err)
	}
	return llm, nil
}
