package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithRequestID_AddsContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	ctx := ContextWithUserID(ContextWithRequestID(context.Background(), "req-1"), "user-1")
	WithRequestID(ctx, base).Info("handled")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "user-1", fields["user_id"])
	assert.Equal(t, "user-1", UserID(ctx))
}

func TestWithRequestID_PlainContext(t *testing.T) {
	base := zap.NewNop()
	assert.Same(t, base, WithRequestID(context.Background(), base))
	assert.Empty(t, UserID(context.Background()))
}

func TestNew_JSONEncodingAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := newWithSink(Config{Level: "warn", Encoding: "json"}, zapcore.AddSync(&buf))

	log.Info("dropped")
	log.Warn("kept", zap.String("component", "buffer"))
	require.NoError(t, log.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "buffer", entry["component"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_InvalidLevelFallsBack(t *testing.T) {
	log, err := New(Config{Level: "loud", Encoding: "console"})
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}
