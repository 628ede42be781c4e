package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"pollkeeper/internal/config"
)

func TestNewFallsBackOnBadLevelAndEncoding(t *testing.T) {
	l, err := New(config.LogConfig{Level: "loud", Encoding: "xml"}, "test")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestNewJSON(t *testing.T) {
	l, err := New(config.LogConfig{Level: "debug", Encoding: "json"}, "")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}
