package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"checkexplorer/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Log
		enabled zapcore.Level
		skipped zapcore.Level
	}{
		{name: "defaults", cfg: config.Log{}, enabled: zapcore.InfoLevel, skipped: zapcore.DebugLevel},
		{name: "json debug", cfg: config.Log{Level: "debug", Format: "json"}, enabled: zapcore.DebugLevel, skipped: zapcore.DebugLevel - 1},
		{name: "console warn", cfg: config.Log{Level: "warn", Format: "console"}, enabled: zapcore.WarnLevel, skipped: zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.skipped))
		})
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.Log{Level: "chatty"})
	assert.Error(t, err)
}
