// Package logging provides context-aware structured logging for companiond.
//
// Logger wraps zap and prepends correlation fields taken from the context
// (trace and span ids, user id, job id, request id) to every entry:
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	ctx = logging.WithUserID(ctx, userID)
//	logger.Info(ctx, "personalization updated", zap.Int("version", v))
//
// Stdout output passes through a RedactingEncoder. Keys such as api_key,
// password or dsn are replaced with [REDACTED], and so are values matching
// the configured patterns. Journal and chat text must be logged with
// RedactedString so that only its length reaches the log.
//
// Levels below Error are sampled per level; Error and above are never sampled.
// TraceLevel sits below Debug for very verbose diagnostics.
//
// Tests use NewTestLogger, which records entries in memory and offers
// assertions such as AssertLogged and AssertNoSecrets.
package logging
