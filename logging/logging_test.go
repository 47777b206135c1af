package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skekre98/kunou/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"chatty", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestNewWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, config.LoggingConfig{Level: "warn", Format: "json"})

	l.Info("dropped")
	l.Warn("kept", "module", "echo")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "echo", rec["module"])
}

func TestNewWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, config.LoggingConfig{Level: "debug", Format: "text"})

	l.Debug("module task dispatched", "op", "start")
	assert.Contains(t, buf.String(), "op=start")
	assert.Contains(t, buf.String(), "level=DEBUG")
}
