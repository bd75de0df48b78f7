package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeRedactsSecrets(t *testing.T) {
	got := sanitizeKVs([]interface{}{"ai_api_key", "sk-123", "paper_id", "p1", "Password", "hunter2", "dangling"})
	assert.Equal(t, []interface{}{"ai_api_key", "[REDACTED]", "paper_id", "p1", "Password", "[REDACTED]", "dangling"}, got)
}

func TestLoggerWritesFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("attempt_id", "a1").Info("graded", "score", 12, "token", "abc")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "a1", ctx["attempt_id"])
		assert.EqualValues(t, 12, ctx["score"])
		assert.Equal(t, "[REDACTED]", ctx["token"])
	}
}
