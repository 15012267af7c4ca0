package diskguard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCheckBeforeWritePassesUnderNormalThresholds(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	g, err := New(cfg, zap.NewNop())
	require.NoError(t, err)

	err = g.CheckBeforeWrite(1024)
	require.NoError(t, err)
}

func TestCheckBeforeWriteCircuitBreaksAtZeroThreshold(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.WarningThreshold = 0
	cfg.ThrottleThreshold = 0
	cfg.CircuitBreakerThreshold = 0
	g, err := New(cfg, zap.NewNop())
	require.NoError(t, err)

	err = g.CheckBeforeWrite(1024)
	require.Error(t, err)
	require.True(t, IsCircuitBroken(err))
}

func TestCheckBeforeWriteRejectsOversizedRequest(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	g, err := New(cfg, zap.NewNop())
	require.NoError(t, err)

	usage := g.GetDiskUsage()
	err = g.CheckBeforeWrite(usage.AvailableBytes + 1)
	require.Error(t, err)
	require.False(t, IsCircuitBroken(err))
}

func TestForceCheckRefreshesBeyondInterval(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.CheckInterval = time.Hour
	g, err := New(cfg, zap.NewNop())
	require.NoError(t, err)

	before := g.GetDiskUsage().LastCheck
	require.NoError(t, g.ForceCheck())
	after := g.GetDiskUsage().LastCheck
	require.True(t, !after.Before(before))
}
