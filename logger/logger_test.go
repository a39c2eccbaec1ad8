package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNopLoggerBeforeInitialize(t *testing.T) {
	// Package init installs a no-op logger; logging before Initialize
	// must not panic.
	assert.NotPanics(t, func() {
		Infow("pre-init message", "key", "value")
		Warnw("pre-init warning")
		Errorw("pre-init error")
		Debugw("pre-init debug")
	})
}

func TestInitializeJSON(t *testing.T) {
	require.NoError(t, Initialize(true))
	assert.True(t, JSONOutput)
	assert.NotNil(t, Logger)
}

func TestInitializeConsole(t *testing.T) {
	require.NoError(t, Initialize(false))
	assert.False(t, JSONOutput)
	assert.NotNil(t, Logger)
}

func TestLevelFromEnv(t *testing.T) {
	tests := []struct {
		env  string
		want zapcore.Level
	}{
		{"", zap.InfoLevel},
		{"debug", zap.DebugLevel},
		{"WARN", zap.WarnLevel},
		{"error", zap.ErrorLevel},
		{"nonsense", zap.InfoLevel},
	}
	for _, tt := range tests {
		t.Run("level_"+tt.env, func(t *testing.T) {
			t.Setenv("GITGAFIT_LOG_LEVEL", tt.env)
			assert.Equal(t, tt.want, levelFromEnv())
		})
	}
}

func TestNamedLogger(t *testing.T) {
	require.NoError(t, Initialize(true))
	named := Named("realtime")
	assert.NotNil(t, named)
}
