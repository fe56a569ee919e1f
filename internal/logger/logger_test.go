package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, parseLogLevel(tc.in), tc.in)
	}
}

func TestInitializeWritesToFile(t *testing.T) {
	prev := Log
	defer func() { Log = prev; SugaredLog = prev.Sugar() }()

	path := filepath.Join(t.TempDir(), "corgi.log")
	require.NoError(t, Initialize(Options{Level: "debug", File: path}))
	assert.True(t, Log.Core().Enabled(zapcore.DebugLevel))

	Log.Info("hello", WithUserAlias("abc"), WithStrategy("uniform"))
	_ = Log.Sync() // stdout sync may fail on some platforms
	assert.FileExists(t, path)
}

func TestDefaultLoggerIsNoop(t *testing.T) {
	l := zap.NewNop()
	assert.NotPanics(t, func() {
		l.Info("noop")
		WarnWithFields("warn", nil)
	})
}
