package internal

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	level, err := ParseLogLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, LogLevelDebug, level)

	_, err = ParseLogLevel("loud")
	assert.Error(t, err)
}

func TestLogger_LevelFilteringAndPrefix(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, LogLevelInfo).With("Matcher")

	logger.Debug("hidden %d", 1)
	logger.Info("matched %d pairs", 3)
	logger.Error("boom")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO] [Matcher] matched 3 pairs")
	assert.Contains(t, out, "[ERROR] [Matcher] boom")
}

func TestLogger_NilIsSilent(t *testing.T) {
	var logger *Logger
	assert.NotPanics(t, func() { logger.Info("nothing") })
}
