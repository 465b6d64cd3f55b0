package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewWithCore(core)

	l.Info("ROUTER", "query routed", map[string]interface{}{"session_id": "s1"})
	l.Error("GAP", "ingest failed", map[string]interface{}{"error": "boom"})
	l.Warn("MODE", "no details", nil)

	entries := logs.All()
	assert.Len(t, entries, 3)

	first := entries[0].ContextMap()
	assert.Equal(t, "ROUTER", first["module"])
	assert.Equal(t, "query routed", entries[0].Message)

	second := entries[1].ContextMap()
	assert.Equal(t, "boom", second["error_ref"])

	third := entries[2].ContextMap()
	assert.NotNil(t, third["details"])
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Debug("X", "ignored", nil)
	assert.NoError(t, l.Sync())
}
