package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/companiond/internal/config"
)

const completionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"model": "test-model",
	"choices": [{"index": 0, "message": {"role": "assistant", "content": "hello there"}, "finish_reason": "stop"}],
	"usage": {"prompt_tokens": 7, "completion_tokens": 2, "total_tokens": 9}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewOpenAIClient(config.LLMConfig{
		Provider:  "openai",
		APIKey:    config.Secret("test-key"),
		Model:     "test-model",
		BaseURL:   srv.URL + "/v1",
		RateLimit: 100,
		Burst:     10,
	}, zap.NewNop())
	require.NoError(t, err)
	c.backoff = time.Millisecond
	return c
}

func TestNew(t *testing.T) {
	c, err := New(config.LLMConfig{Provider: "none"}, zap.NewNop())
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = New(config.LLMConfig{Provider: "openai"}, zap.NewNop())
	assert.Error(t, err)

	_, err = New(config.LLMConfig{Provider: "carrier-pigeon"}, zap.NewNop())
	assert.ErrorContains(t, err, "unsupported llm provider")

	_, err = New(config.LLMConfig{}, nil)
	assert.Error(t, err)
}

func TestOpenAIClient_Generate(t *testing.T) {
	var got struct {
		Model    string    `json:"model"`
		Messages []Message `json:"messages"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	})

	resp, err := c.Generate(context.Background(), []Message{
		{Role: RoleSystem, Content: "be kind"},
		{Role: RoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Content)
	assert.Equal(t, 7, resp.PromptTokens)
	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, RoleSystem, got.Messages[0].Role)

	_, err = c.Generate(context.Background(), nil)
	assert.Error(t, err)
}

func TestOpenAIClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
			return
		}
		_, _ = w.Write([]byte(completionBody))
	})

	resp, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAIClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "bad request", "type": "invalid_request_error"}}`))
	})

	_, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIClient_GivesUp(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	assert.ErrorContains(t, err, "max retries exceeded")
	assert.Equal(t, int32(defaultMaxRetries+1), calls.Load())
}

func TestParseJSON(t *testing.T) {
	type payload struct {
		Summary string   `json:"summary"`
		Topics  []string `json:"topics"`
	}
	tests := []struct {
		name string
		text string
		want payload
	}{
		{"bare", `{"summary": "ok", "topics": ["sleep"]}`, payload{"ok", []string{"sleep"}}},
		{"fenced", "```json\n{\"summary\": \"fenced\"}\n```", payload{Summary: "fenced"}},
		{"prose", "Sure! Here it is: {\"summary\": \"wrapped\"} Hope that helps.", payload{Summary: "wrapped"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got payload
			require.NoError(t, ParseJSON(tt.text, &got))
			assert.Equal(t, tt.want, got)
		})
	}

	var list []int
	require.NoError(t, ParseJSON("numbers: [1, 2, 3]", &list))
	assert.Equal(t, []int{1, 2, 3}, list)

	var p payload
	assert.ErrorIs(t, ParseJSON("no structure here", &p), ErrNoJSON)
	assert.Error(t, ParseJSON("{broken", &p))
}

func TestFallbackChatReply(t *testing.T) {
	assert.NotContains(t, FallbackChatReply(""), "try")
	assert.Contains(t, FallbackChatReply("Box Breathing"), `"Box Breathing"`)
}

type recordingClient struct {
	got []Message
}

func (r *recordingClient) Generate(_ context.Context, msgs []Message) (Response, error) {
	r.got = msgs
	return Response{Content: "ok"}, nil
}

func TestRedactingClient(t *testing.T) {
	inner := &recordingClient{}
	c := WithRedaction(inner, nil, nil)

	in := []Message{
		{Role: RoleSystem, Content: "reach support at help@example.com"},
		{Role: RoleUser, Content: "email me at jane@example.com"},
	}
	resp, err := c.Generate(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)

	require.Len(t, inner.got, 2)
	assert.Equal(t, "reach support at help@example.com", inner.got[0].Content)
	assert.Equal(t, "email me at [redacted email]", inner.got[1].Content)
	assert.Equal(t, "email me at jane@example.com", in[1].Content)
}

type fakeModel struct {
	got  []llms.MessageContent
	resp *llms.ContentResponse
	err  error
}

func (f *fakeModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = msgs
	return f.resp, f.err
}

func (f *fakeModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", errors.New("not used")
}

func TestLangChainClient(t *testing.T) {
	ctx := context.Background()
	m := &fakeModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "take a slow breath"}}}}
	c, err := NewLangChainClient(m, "llama3.1", config.LLMConfig{RateLimit: 100, Burst: 10}, zap.NewNop())
	require.NoError(t, err)

	resp, err := c.Generate(ctx, []Message{
		{Role: RoleSystem, Content: "be kind"},
		{Role: RoleUser, Content: "I feel tense"},
		{Role: RoleAssistant, Content: "tell me more"},
	})
	require.NoError(t, err)
	assert.Equal(t, "take a slow breath", resp.Content)
	assert.Equal(t, "llama3.1", resp.Model)

	require.Len(t, m.got, 3)
	assert.Equal(t, schema.ChatMessageTypeSystem, m.got[0].Role)
	assert.Equal(t, schema.ChatMessageTypeHuman, m.got[1].Role)
	assert.Equal(t, schema.ChatMessageTypeAI, m.got[2].Role)

	t.Run("empty choices", func(t *testing.T) {
		m.resp = &llms.ContentResponse{}
		_, err := c.Generate(ctx, []Message{{Role: RoleUser, Content: "hi"}})
		assert.ErrorContains(t, err, "empty response")
	})

	t.Run("model error", func(t *testing.T) {
		m.err = errors.New("connection refused")
		_, err := c.Generate(ctx, []Message{{Role: RoleUser, Content: "hi"}})
		assert.ErrorContains(t, err, "connection refused")
	})

	_, err = NewLangChainClient(nil, "x", config.LLMConfig{}, zap.NewNop())
	assert.Error(t, err)
}

func TestNew_Ollama(t *testing.T) {
	c, err := New(config.LLMConfig{Provider: "ollama", BaseURL: "http://127.0.0.1:11434"}, zap.NewNop())
	require.NoError(t, err)
	lc, ok := c.(*LangChainClient)
	require.True(t, ok)
	assert.Equal(t, defaultOllamaModel, lc.name)
}
