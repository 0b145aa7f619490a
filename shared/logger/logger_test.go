package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONLogger(t *testing.T, level string) (*Logger, *bytes.Buffer) {
	t.Helper()
	output := &bytes.Buffer{}
	l, err := New(&Config{Level: level, Format: "json", writer: output})
	require.NoError(t, err)
	return l, output
}

func decodeLines(t *testing.T, output *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(output.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNew_LevelFiltering(t *testing.T) {
	tests := []struct {
		level     string
		wantLevel []string
	}{
		{"debug", []string{"DEBUG", "INFO", "WARN", "ERROR"}},
		{"info", []string{"INFO", "WARN", "ERROR"}},
		{"warn", []string{"WARN", "ERROR"}},
		{"error", []string{"ERROR"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, output := newJSONLogger(t, tt.level)

			l.Debug("debug")
			l.Info("info")
			l.Warn("warn")
			l.Error("error", slog.Int64("job_id", 42))

			var got []string
			for _, e := range decodeLines(t, output) {
				got = append(got, e["level"].(string))
			}
			assert.Equal(t, tt.wantLevel, got)
		})
	}
}

func TestNew_ConsoleFormat(t *testing.T) {
	output := &bytes.Buffer{}
	l, err := New(&Config{Level: "info", Format: "console", TimeFormat: time.RFC3339, writer: output})
	require.NoError(t, err)

	l.Info("Job accepted", slog.Int64("job_id", 7))

	// tint abbreviates levels
	assert.Contains(t, output.String(), "INF")
	assert.Contains(t, output.String(), "Job accepted")
	assert.Contains(t, output.String(), "job_id")
}

func TestNew_Source(t *testing.T) {
	output := &bytes.Buffer{}
	l, err := New(&Config{Level: "info", Format: "json", EnableSource: true, writer: output})
	require.NoError(t, err)

	l.Info("with source")

	entries := decodeLines(t, output)
	require.Len(t, entries, 1)
	source, ok := entries[0]["source"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, source, "file")
	assert.Contains(t, source, "line")
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "api.log")

	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	l.Info("Booking created", slog.Int64("job_id", 1))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"Booking created"`)
	assert.Contains(t, string(data), `"job_id":1`)
}

func TestNew_FileOutputError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := New(&Config{Output: filepath.Join(blocker, "api.log")})
	assert.Error(t, err)
}

func TestNewDefault(t *testing.T) {
	l := NewDefault()
	require.NotNil(t, l)
	assert.NoError(t, l.Close())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"DEBUG", slog.LevelInfo}, // case-sensitive
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, parseLevel(tt.level), "level %q", tt.level)
	}
}

func TestLogger_WithGroup(t *testing.T) {
	l, output := newJSONLogger(t, "info")

	l.WithGroup("changes").Info("Booking updated", slog.String("status", "pending"))

	entries := decodeLines(t, output)
	require.Len(t, entries, 1)
	group := entries[0]["changes"].(map[string]any)
	assert.Equal(t, "pending", group["status"])
}

func TestLogger_WithAndComponent(t *testing.T) {
	l, output := newJSONLogger(t, "info")

	l.With(slog.String("service", "api"), slog.Int("version", 1)).Info("ready")
	l.Component("sweep").Info("tick")

	entries := decodeLines(t, output)
	require.Len(t, entries, 2)
	assert.Equal(t, "api", entries[0]["service"])
	assert.Equal(t, float64(1), entries[0]["version"])
	assert.Equal(t, "sweep", entries[1]["component"])
}
