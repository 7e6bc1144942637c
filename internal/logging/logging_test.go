package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"Warn":  slog.LevelWarn,
		"ERROR": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "INFO", "text")
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("stake", "owner", "alice", "amount", 1000)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "stake")
	assert.Contains(t, out, "owner=alice")
	assert.Contains(t, out, "amount=1000")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "DEBUG", "json")
	require.NoError(t, err)

	logger.Debug("claim_all", "total", 5)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "claim_all", rec["msg"])
	assert.Equal(t, float64(5), rec["total"])
}

func TestUnknownFormat(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "INFO", "xml")
	assert.Error(t, err)
}
