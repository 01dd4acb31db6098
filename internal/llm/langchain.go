package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/companiond/internal/config"
)

const defaultOllamaModel = "llama3.1"

// LangChainClient adapts a langchaingo model. It backs the "ollama"
// provider so conversations can stay on a self-hosted model.
type LangChainClient struct {
	model   llms.Model
	name    string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ Client = (*LangChainClient)(nil)

// NewOllamaClient creates a LangChainClient talking to an Ollama server.
// An empty BaseURL uses the library default (localhost:11434).
func NewOllamaClient(cfg config.LLMConfig, logger *zap.Logger) (*LangChainClient, error) {
	name := cfg.Model
	if name == "" {
		name = defaultOllamaModel
	}
	opts := []ollama.Option{ollama.WithModel(name)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	m, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama model: %w", err)
	}
	return NewLangChainClient(m, name, cfg, logger)
}

// NewLangChainClient wraps any langchaingo model.
func NewLangChainClient(m llms.Model, name string, cfg config.LLMConfig, logger *zap.Logger) (*LangChainClient, error) {
	if m == nil {
		return nil, errors.New("model cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit, burst := cfg.RateLimit, cfg.Burst
	if limit <= 0 {
		limit = defaultRateLimit
	}
	if burst <= 0 {
		burst = defaultBurst
	}
	return &LangChainClient{
		model:   m,
		name:    name,
		timeout: timeout,
		limiter: rate.NewLimiter(rate.Limit(limit), burst),
		logger:  logger,
	}, nil
}

// Generate converts messages and calls the model once. Local models are not
// retried; callers fall back to deterministic text on error.
func (c *LangChainClient) Generate(ctx context.Context, messages []Message) (Response, error) {
	if len(messages) == 0 {
		return Response{}, errors.New("no messages")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Response{}, fmt.Errorf("rate limiter: %w", err)
	}

	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(chatMessageType(m.Role), m.Content))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.model.GenerateContent(ctx, content,
		llms.WithTemperature(defaultTemperature),
		llms.WithMaxTokens(defaultMaxTokens),
	)
	if err != nil {
		return Response{}, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return Response{}, errors.New("empty response from model")
	}
	return Response{Content: resp.Choices[0].Content, Model: c.name}, nil
}

func chatMessageType(role string) schema.ChatMessageType {
	switch role {
	case RoleSystem:
		return schema.ChatMessageTypeSystem
	case RoleAssistant:
		return schema.ChatMessageTypeAI
	default:
		return schema.ChatMessageTypeHuman
	}
}
