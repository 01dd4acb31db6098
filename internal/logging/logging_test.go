package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// bufferLogger builds a logger writing JSON to buf through the real core.
func bufferLogger(t *testing.T, cfg *Config) (*Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	core, err := newCore(cfg, nil, zapcore.AddSync(buf))
	require.NoError(t, err)
	return newLogger(core, cfg), buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLogger_ContextFields(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sampling.Enabled = false
	logger, buf := bufferLogger(t, cfg)

	ctx := WithUserID(context.Background(), "user-1")
	ctx = WithJobID(ctx, "job_42")
	logger.Info(ctx, "analysis finished", zap.Int("patterns", 3))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "analysis finished", lines[0]["msg"])
	assert.Equal(t, "user-1", lines[0]["user.id"])
	assert.Equal(t, "job_42", lines[0]["job.id"])
	assert.Equal(t, "companiond", lines[0]["service"])
	assert.EqualValues(t, 3, lines[0]["patterns"])
}

func TestLogger_RedactsEntryFields(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sampling.Enabled = false
	logger, buf := bufferLogger(t, cfg)

	logger.Info(context.Background(), "llm configured",
		zap.String("api_key", "sk-abcdefghijklmnopqrstuvwxyz"),
		zap.String("note", "Bearer abc.def"),
		RedactedString("journal", "I felt anxious today"),
	)
	logger.With(zap.String("dsn", "postgres://u:p@db/x")).Warn(context.Background(), "db")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "[REDACTED]", lines[0]["api_key"])
	assert.Equal(t, "[REDACTED:pattern]", lines[0]["note"])
	assert.Equal(t, "[REDACTED:20]", lines[0]["journal"])
	assert.Equal(t, "[REDACTED]", lines[1]["dsn"])
	assert.NotContains(t, buf.String(), "sk-abc")
}

func TestLogger_TraceLevelName(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sampling.Enabled = false
	cfg.Level = TraceLevel
	logger, buf := bufferLogger(t, cfg)

	logger.Trace(context.Background(), "rule evaluated")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "trace", lines[0]["level"])
}

func TestSampling_ErrorsNeverSampled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Sampling.Levels = map[zapcore.Level]LevelSamplingConfig{
		zapcore.InfoLevel: {Initial: 1, Thereafter: 0},
	}
	logger, buf := bufferLogger(t, cfg)

	for i := 0; i < 5; i++ {
		logger.Info(context.Background(), "tick")
		logger.Error(context.Background(), "boom")
	}

	var infos, errs int
	for _, l := range decodeLines(t, buf) {
		switch l["level"] {
		case "info":
			infos++
		case "error":
			errs++
		}
	}
	assert.Equal(t, 1, infos)
	assert.Equal(t, 5, errs)
}

func TestWithUserID_InvalidIgnored(t *testing.T) {
	ctx := WithUserID(context.Background(), "bad id\n")
	assert.Empty(t, UserIDFromContext(ctx))

	ctx = WithRequestID(context.Background(), strings.Repeat("a", 200))
	assert.Empty(t, RequestIDFromContext(ctx))
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	FromContext(ctx).Info(ctx, "hello")
	tl.AssertLogged(t, zapcore.InfoLevel, "hello")
}

func TestLevelFromString(t *testing.T) {
	lvl, err := LevelFromString("TRACE")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, lvl)

	lvl, err = LevelFromString("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl)

	_, err = LevelFromString("loud")
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Format = "xml"
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Output.Stdout = false
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig()
	cfg.Redaction.Patterns = []string{"("}
	assert.Error(t, cfg.Validate())
}

func TestTestLogger_AssertNoSecrets(t *testing.T) {
	tl := NewTestLogger()
	tl.Info(context.Background(), "key loaded", Secret("api_key", "sk-123"))
	tl.AssertNoSecrets(t)
	tl.AssertField(t, "key loaded", "api_key", "[REDACTED:6]")
}
