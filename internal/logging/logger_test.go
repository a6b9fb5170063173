package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_JSONEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelInfo, FormatJSON)
	logger.SetOutput(&buf)

	logger.WithInstance("main").WithField("price", 2000.0).Info("price refreshed")

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry.Level)
	assert.Equal(t, "price refreshed", entry.Message)
	assert.Equal(t, "main", entry.Fields["instance"])
	assert.Equal(t, 2000.0, entry.Fields["price"])
	assert.Empty(t, entry.Caller)
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelWarn, FormatText)
	logger.SetOutput(&buf)

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "warn: shown")
}

func TestLogger_ChildSharesOutput(t *testing.T) {
	var buf bytes.Buffer
	root := NewLogger(LevelInfo, FormatText)
	child := root.WithField("component", "ledger")
	root.SetOutput(&buf)

	child.WithError(errors.New("disk full")).Error("persist failed")

	out := buf.String()
	assert.Contains(t, out, "component=ledger")
	assert.Contains(t, out, `error="disk full"`)
	assert.Contains(t, out, "caller=")
}

func TestLogger_WithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	root := NewLogger(LevelInfo, FormatText)
	root.SetOutput(&buf)

	_ = root.WithField("a", 1)
	root.Info("plain")

	assert.NotContains(t, buf.String(), "a=1")
}

func TestFromContext(t *testing.T) {
	logger := Discard().WithField("request", "abc")
	ctx := WithLogger(context.Background(), logger)

	assert.Same(t, logger, FromContext(ctx))
	assert.NotNil(t, FromContext(context.Background()))
}

func TestCronLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LevelDebug, FormatText)
	logger.SetOutput(&buf)

	cl := CronLogger(logger)
	cl.Info("wake", "now", "t0")
	cl.Error(errors.New("boom"), "panic", "job", "refresh")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "debug: wake")
	assert.Contains(t, lines[0], "now=t0")
	assert.Contains(t, lines[1], "error: panic")
	assert.Contains(t, lines[1], "job=refresh")
}

func TestParseLogLevelAndFormat(t *testing.T) {
	tests := []struct {
		input string
		level LogLevel
	}{
		{"debug", LevelDebug},
		{"WARNING", LevelWarn},
		{" error ", LevelError},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.level, ParseLogLevel(tt.input))
		})
	}

	assert.Equal(t, FormatText, ParseLogFormat("text"))
	assert.Equal(t, FormatJSON, ParseLogFormat("xml"))
}
