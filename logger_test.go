package pluggable

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	logger.Info("Module activated", "module", "charts")
	logger.Warn("Health check failed", "module", "charts")
	logger.Error("Module failed", "module", "charts")
	logger.Debug("Observer registered", "observerID", "watch")

	out := buf.String()
	assert.Contains(t, out, "Module activated")
	assert.Contains(t, out, "module=charts")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "level=DEBUG")
}

func TestNewSlogLoggerNilFallsBackToDefault(t *testing.T) {
	logger := NewSlogLogger(nil)
	require.NotNil(t, logger)
	logger.Info("still works")
}
