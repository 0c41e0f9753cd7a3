package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGet_BeforeInit_IsNop(t *testing.T) {
	globalLogger = nil
	l := Get()
	require.NotNil(t, l)
	l.Info("nothing happens")
}

func TestInit_Development(t *testing.T) {
	t.Cleanup(func() { globalLogger = nil })

	require.NoError(t, Init("development", "debug"))
	require.NotNil(t, globalLogger)
	require.True(t, Get().Core().Enabled(-1)) // debug
}

func TestInit_ProductionBadLevelFallsBack(t *testing.T) {
	t.Cleanup(func() { globalLogger = nil })

	require.NoError(t, Init("production", "not-a-level"))
	require.False(t, Get().Core().Enabled(-1))
	require.True(t, Get().Core().Enabled(0))
	Sync()
}
