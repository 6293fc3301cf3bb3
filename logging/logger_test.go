package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONLogger(level LogLevel) (*BotLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: level, Format: "json", Output: &buf})
	return logger, &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestBotLogger_KeyValueArgs(t *testing.T) {
	logger, buf := newJSONLogger(LogLevelInfo)

	logger.Info("stage run completed", "drained", 3, "failed", 1)

	entry := lastEntry(t, buf)
	assert.Equal(t, "stage run completed", entry["msg"])
	assert.Equal(t, float64(3), entry["drained"])
	assert.Equal(t, float64(1), entry["failed"])
}

func TestBotLogger_LevelFiltering(t *testing.T) {
	logger, buf := newJSONLogger(LogLevelWarn)

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("visible")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "visible")
}

func TestBotLogger_ContextualClones(t *testing.T) {
	logger, buf := newJSONLogger(LogLevelInfo)
	staged := logger.WithStage("handler").WithQueue("triggers").WithContext("chat_id", 42)

	staged.Info("record processed")
	entry := lastEntry(t, buf)
	assert.Equal(t, "handler", entry["stage"])
	assert.Equal(t, "triggers", entry["queue"])
	assert.Equal(t, float64(42), entry["chat_id"])

	// The parent is untouched by the clones.
	logger.Info("plain")
	entry = lastEntry(t, buf)
	_, hasStage := entry["stage"]
	assert.False(t, hasStage)
}

func TestNoOpLoggerSatisfiesInterface(t *testing.T) {
	var l Logger = NoOpLogger{}
	l.Debug("ignored")
	l.Info("ignored", "k", "v")
	l.Warn("ignored")
	l.Error("ignored")
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, nil)))
	logger.Info("hello", "k", "v")
	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "k=v")
}
