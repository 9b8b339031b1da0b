package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/pennyone/internal/config"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" warn ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, LevelFromString(in), "input %q", in)
	}
}

func TestNew_JSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer

	log := New(config.LoggingConfig{Format: "json", Level: "info"}, &buf)
	log.Debug("hidden")
	log.Info("scan complete", "files", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "scan complete", entry["msg"])
	assert.EqualValues(t, 3, entry["files"])
}

func TestNew_Human(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer

	log := New(config.LoggingConfig{Format: "human", Level: "debug"}, &buf)
	log.Debug("refreshing", "path", "src/a.ts")

	assert.Contains(t, buf.String(), "msg=refreshing")
	assert.Contains(t, buf.String(), "path=src/a.ts")
}

func TestNewDiscard(t *testing.T) {
	t.Parallel()
	assert.False(t, NewDiscard().Enabled(context.Background(), slog.LevelError))
}
