package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/taskexec/code"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "warn", Format: "JSON", Output: &buf})

	l.Info("dropped")
	l.Warn("kept", "task_id", "TASK1A2B3C")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "TASK1A2B3C", rec["task_id"])
}

func TestNew_TextDefault(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Output: &buf}).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "level=INFO")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestLogf(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Output: &buf})

	var logger code.Logger = Logf(l)
	logger.Logf("ran %d step(s)", 3)
	assert.Contains(t, buf.String(), `msg="ran 3 step(s)"`)
	assert.Contains(t, buf.String(), "level=DEBUG")

	buf.Reset()
	Logf(New(Config{Output: &buf})).Logf("hidden")
	assert.Empty(t, buf.String())

	Logf(l).At(slog.LevelWarn).Logf("shown")
	assert.Contains(t, buf.String(), "level=WARN")

	Logf(nil).Logf("no logger")
}
