package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/companiond/internal/config"
)

const (
	defaultModel       = "gpt-4o-mini"
	defaultTimeout     = 30 * time.Second
	defaultRateLimit   = 1.0
	defaultBurst       = 3
	defaultMaxRetries  = 2
	defaultBaseBackoff = time.Second
	defaultTemperature = 0.7
	defaultMaxTokens   = 800
)

// OpenAIClient talks to an OpenAI-compatible chat completion API.
type OpenAIClient struct {
	client     *openai.Client
	model      string
	timeout    time.Duration
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAIClient creates an OpenAIClient from cfg.
func NewOpenAIClient(cfg config.LLMConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if !cfg.APIKey.IsSet() {
		return nil, errors.New("openai api key required")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	oc := openai.DefaultConfig(cfg.APIKey.Value())
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{}

	model := cfg.Model
	if model == "" {
		model = defaultModel
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

	return &OpenAIClient{
		client:     openai.NewClientWithConfig(oc),
		model:      model,
		timeout:    timeout,
		limiter:    rate.NewLimiter(rate.Limit(limit), burst),
		maxRetries: defaultMaxRetries,
		backoff:    defaultBaseBackoff,
		logger:     logger,
	}, nil
}

// Generate sends messages to the chat completion endpoint. Rate limits and
// server errors are retried with exponential backoff.
func (c *OpenAIClient) Generate(ctx context.Context, messages []Message) (Response, error) {
	if len(messages) == 0 {
		return Response{}, errors.New("no messages")
	}
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return Response{}, ctx.Err()
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return Response{}, fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := c.do(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return Response{}, err
		}
		c.logger.Warn("llm request failed, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return Response{}, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *OpenAIClient) do(ctx context.Context, req openai.ChatCompletionRequest) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Response{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, errors.New("empty response from api")
	}
	return Response{
		Content:          resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func isRetryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return false
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
