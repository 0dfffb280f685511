package telemetry

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger_ProductionUsesJSONHandler(t *testing.T) {
	logger := NewLogger("production", slog.LevelInfo)
	assert.True(t, logger.Enabled(nil, slog.LevelInfo))
	assert.False(t, logger.Enabled(nil, slog.LevelDebug))
}

func TestNewLogger_NonProductionRespectsDebugLevel(t *testing.T) {
	logger := NewLogger("development", slog.LevelDebug)
	assert.True(t, logger.Enabled(nil, slog.LevelDebug))
}

func TestNewLogger_LevelVarIsLiveMutable(t *testing.T) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelInfo)
	logger := NewLogger("development", levelVar)

	assert.False(t, logger.Enabled(nil, slog.LevelDebug))
	levelVar.Set(slog.LevelDebug)
	assert.True(t, logger.Enabled(nil, slog.LevelDebug), "lowering the shared LevelVar should take effect without rebuilding the logger")
}

func TestParseLevel_MapsKnownAndUnknownStrings(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
