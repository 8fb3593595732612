package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel(" WARN "))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestNewWithWriterEmitsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("info", &buf).With("session_id", "s1")

	logger.Debug("hidden")
	logger.Info("turn handled", "state", "COLLECTING_SYMPTOMS")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "turn handled", entry["msg"])
	assert.Equal(t, "s1", entry["session_id"])
	assert.Equal(t, "COLLECTING_SYMPTOMS", entry["state"])
}

func TestNewWithFileWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intake.log")
	logger := NewWithFile("info", FileOptions{Path: path})
	logger.Info("hello file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
}

func TestNewWithFileEmptyPathFallsBack(t *testing.T) {
	logger := NewWithFile("warn", FileOptions{})
	require.NotNil(t, logger)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
}
