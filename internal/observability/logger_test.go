package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jscyril/golang_media_player/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	WithComponent(logger, "render").Info("frame presented", slog.Int64("pts", 40000))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "frame presented", entry["msg"])
	assert.Equal(t, "render", entry["component"])
	assert.Equal(t, float64(40000), entry["pts"])
}

func TestNewLoggerWithWriter_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"unknown": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestWithErrorAndSession(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "debug", Format: "text"}, &buf)

	assert.Same(t, logger, WithError(logger, nil))
	WithSession(WithError(logger, errors.New("boom")), "abc").Error("failed")
	assert.Contains(t, buf.String(), "error=boom")
	assert.Contains(t, buf.String(), "session_id=abc")
}

func TestOpenLoggerToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "player.log")
	logger, closeFn, err := OpenLogger(config.LoggingConfig{Level: "info", Format: "text", File: path})
	require.NoError(t, err)

	logger.Info("written to file")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")

	_, closeFn, err = OpenLogger(config.LoggingConfig{})
	require.NoError(t, err)
	assert.NoError(t, closeFn())
}

func TestContextLogger(t *testing.T) {
	assert.Equal(t, slog.Default(), LoggerFromContext(context.Background()))

	logger := NewNopLogger()
	ctx := ContextWithLogger(context.Background(), logger)
	assert.Same(t, logger, LoggerFromContext(ctx))
}

func TestResourceSampler(t *testing.T) {
	s, err := NewResourceSampler(0)
	require.NoError(t, err)

	usage, err := s.Sample(context.Background())
	require.NoError(t, err)
	assert.Greater(t, usage.RSS, uint64(0))
	assert.GreaterOrEqual(t, usage.CPUPercent, 0.0)

	again, err := s.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, usage.SampledAt, again.SampledAt, "cached within the interval")
}
