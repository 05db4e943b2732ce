package authflow_test

import (
	"testing"

	"github.com/goliatone/go-authflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerWritesFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := authflow.NewZapLogger(zap.New(core))

	logger.Info("child spawned", "flow", "signIn", "generation", 2)
	logger.Debug("event ignored", "event", "RESEND")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "child spawned", entries[0].Message)
	assert.Equal(t, map[string]any{"flow": "signIn", "generation": int64(2)}, entries[0].ContextMap())
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
}

func TestNewLogger(t *testing.T) {
	logger, err := authflow.NewLogger(authflow.LogConfig{Env: "dev", Level: "debug", Service: "authflow"})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	assert.NotPanics(t, func() {
		authflow.NopLogger().Error("dropped", "k", "v")
	})
}
