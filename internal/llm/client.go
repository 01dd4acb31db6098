// Package llm wraps the text-generation backend used for chat replies,
// summaries and reports. Every caller must cope with ErrUnavailable by
// falling back to deterministic text.
package llm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/companiond/internal/config"
)

// ErrUnavailable is returned when no backend is configured.
var ErrUnavailable = errors.New("llm unavailable")

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is the model's reply.
type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Client generates text from a conversation.
type Client interface {
	Generate(ctx context.Context, messages []Message) (Response, error)
}

// NoopClient is the client used when generation is disabled.
type NoopClient struct{}

var _ Client = NoopClient{}

// Generate always returns ErrUnavailable.
func (NoopClient) Generate(context.Context, []Message) (Response, error) {
	return Response{}, ErrUnavailable
}

// New builds the client selected by cfg.Provider.
func New(cfg config.LLMConfig, logger *zap.Logger) (Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	switch cfg.Provider {
	case "", "none":
		logger.Info("llm disabled, using fallback text")
		return NoopClient{}, nil
	case "openai":
		c, err := NewOpenAIClient(cfg, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("llm enabled", zap.String("provider", cfg.Provider), zap.String("model", c.model))
		return c, nil
	case "ollama":
		c, err := NewOllamaClient(cfg, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("llm enabled", zap.String("provider", cfg.Provider), zap.String("model", c.name))
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %q", cfg.Provider)
	}
}
