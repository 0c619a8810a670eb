package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlogLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := NewSlog(slog.New(handler))

	logger.Debug("debug msg", "k", "v")
	logger.Info("info msg", "k", "v")
	logger.Warn("warn msg", "k", "v")
	logger.Error("error msg", "k", "v")

	out := buf.String()
	require.Contains(t, out, "debug msg")
	require.Contains(t, out, "info msg")
	require.Contains(t, out, "warn msg")
	require.Contains(t, out, "error msg")
	require.Contains(t, out, "k=v")
}

func TestNewSlogDefault(t *testing.T) {
	logger := NewSlogDefault()
	require.NotNil(t, logger)
}
