package log

import (
	"bytes"
	"testing"

	"github.com/kataras/golog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGologLogger(t *testing.T) {
	logger := NewGologLogger(golog.New())

	assert.NotNil(t, logger)
	assert.Equal(t, LogLevelInfo, logger.GetLevel())
}

func TestGologLogger_LevelControl(t *testing.T) {
	logger := NewGologLogger(golog.New())

	logger.SetLevel(LogLevelDebug)
	assert.Equal(t, LogLevelDebug, logger.GetLevel())

	logger.SetLevel(LogLevelNone)
	assert.Equal(t, LogLevelNone, logger.GetLevel())
}

func TestGologLogger_WritesFormattedMessages(t *testing.T) {
	var buf bytes.Buffer
	logger := NewGologLoggerWithWriter(&buf, LogLevelDebug)

	logger.Info("answered %d questions", 42)
	logger.Debug("route=%s", "database")

	out := buf.String()
	assert.Contains(t, out, "answered 42 questions")
	assert.Contains(t, out, "route=database")
	assert.Contains(t, out, "[kbrouter]")
}

func TestGologLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewGologLoggerWithWriter(&buf, LogLevelError)

	logger.Debug("hidden debug")
	logger.Info("hidden info")
	logger.Warn("hidden warn")
	assert.Empty(t, buf.String())

	logger.Error("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   LogLevelDebug,
		"":        LogLevelInfo,
		"INFO":    LogLevelInfo,
		"warning": LogLevelWarn,
		"error":   LogLevelError,
		"off":     LogLevelNone,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("chatty")
	assert.Error(t, err)
}

func TestDefaultLogger(t *testing.T) {
	prev := GetDefaultLogger()
	defer SetDefaultLogger(prev)

	SetDefaultLogger(nil)
	assert.IsType(t, NoOpLogger{}, GetDefaultLogger())

	custom := NewGologLoggerWithLevel(LogLevelWarn)
	SetDefaultLogger(custom)
	assert.Same(t, custom, OrDefault(nil))

	other := NoOpLogger{}
	assert.Equal(t, other, OrDefault(other))
}
