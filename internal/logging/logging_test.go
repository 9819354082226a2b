package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Format: FormatJSON, Output: &buf})
	Component(l, "httprt").Debug("request", "url", "http://x/users/1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "request", rec["msg"])
	require.Equal(t, "httprt", rec["component"])
	require.Equal(t, "http://x/users/1", rec["url"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Output: &buf})
	l.Debug("hidden")
	require.Zero(t, buf.Len())
	l.Info("shown")
	require.Contains(t, buf.String(), "shown")
}

func TestParse(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
	require.Equal(t, FormatJSON, ParseFormat("JSON"))
	require.Equal(t, FormatText, ParseFormat(""))
}

func TestOrNop(t *testing.T) {
	require.NotNil(t, OrNop(nil))
	l := slog.Default()
	require.Same(t, l, OrNop(l))
}
