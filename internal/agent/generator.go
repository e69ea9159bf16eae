package agent

import (
	"context"
	"fmt"

	"crypto-advisor-go/internal/config"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

// DisabledNotice is returned by every role when no API key is configured.
// The boundary fails open: callers always get text, never an error they
// must handle specially.
const DisabledNotice = "LLM disabled: missing API key. Set llm.api_key to enable this agent."

// Generator produces analysis text for a role. Implementations must be safe
// for sequential reuse across roles within one analysis cycle.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ChatGenerator calls an OpenAI-compatible chat completion endpoint.
type ChatGenerator struct {
	model  *openai.ChatModel
	logger *zap.Logger
}

var _ Generator = (*ChatGenerator)(nil)

// NewChatGenerator builds a generator for the configured endpoint. When the
// API key is empty it returns a disabled generator instead of an error, so
// the advisor still runs with analysis turned off.
func NewChatGenerator(ctx context.Context, cfg *config.LLM, logger *zap.Logger) (Generator, error) {
	if cfg.ApiKey == "" {
		logger.Warn("No LLM API key configured, analyst roles are disabled")
		return Disabled{}, nil
	}

	maxTokens := cfg.MaxTokens
	model, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL:   cfg.BaseURL,
		APIKey:    cfg.ApiKey,
		Model:     cfg.Model,
		MaxTokens: &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	return &ChatGenerator{model: model, logger: logger.Named("llm")}, nil
}

// Generate sends the role prompt and returns the model's text.
func (g *ChatGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(userPrompt),
	}

	response, err := g.model.Generate(ctx, messages)
	if err != nil {
		g.logger.Warn("Chat completion failed", zap.Error(err))
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	return response.Content, nil
}

// Disabled is the no-key fallback generator.
type Disabled struct{}

var _ Generator = Disabled{}

// Generate always returns the inline disabled notice.
func (Disabled) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return DisabledNotice, nil
}
