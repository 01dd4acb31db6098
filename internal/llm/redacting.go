package llm

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/companiond/internal/redact"
)

// Redactor scrubs text. *redact.Scrubber and *redact.Reloader implement it.
type Redactor interface {
	Scrub(text string) redact.Result
}

// RedactingClient scrubs user and assistant messages before they reach the
// wrapped client. System prompts are built by the service and pass as-is.
type RedactingClient struct {
	next     Client
	scrubber Redactor
	logger   *zap.Logger
}

var _ Client = (*RedactingClient)(nil)

// WithRedaction wraps next. A nil scrubber uses the default rules.
func WithRedaction(next Client, scrubber Redactor, logger *zap.Logger) *RedactingClient {
	if scrubber == nil {
		scrubber = redact.MustNew()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedactingClient{next: next, scrubber: scrubber, logger: logger}
}

// Generate scrubs messages and delegates.
func (c *RedactingClient) Generate(ctx context.Context, messages []Message) (Response, error) {
	out := make([]Message, len(messages))
	redacted := 0
	for i, m := range messages {
		out[i] = m
		if m.Role == RoleSystem {
			continue
		}
		res := c.scrubber.Scrub(m.Content)
		out[i].Content = res.Text
		redacted += len(res.Findings)
	}
	if redacted > 0 {
		c.logger.Debug("redacted llm input", zap.Int("findings", redacted))
	}
	return c.next.Generate(ctx, out)
}
