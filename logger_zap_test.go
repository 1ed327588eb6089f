package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	auth "github.com/goliatone/go-careauth"
)

func TestNewZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	lgr := auth.NewZapLogger(zap.New(core))

	lgr.Info("login succeeded", "user_id", "user-1")
	lgr.Warn("failed to record activity", "event", "auth.logout")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "login succeeded", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "user-1", entries[0].ContextMap()["user_id"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestNewZapLoggerNil(t *testing.T) {
	lgr := auth.NewZapLogger(nil)
	assert.NotPanics(t, func() {
		lgr.Error("dropped", "k", "v")
	})
}
