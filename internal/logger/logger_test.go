package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dlovans/surveytask/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zap.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zap.WarnLevel, ParseLevel("verbose"))
}

func TestNew(t *testing.T) {
	for _, env := range []string{config.EnvDevelopment, config.EnvProduction} {
		l, err := New(&config.Config{Env: env, LogLevel: "info"})
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zap.InfoLevel))
		assert.False(t, l.Core().Enabled(zap.DebugLevel))
	}
}
