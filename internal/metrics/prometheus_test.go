package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	dto "github.com/prometheus/client_model/go"
)

func TestObserveAndIncCounters(t *testing.T) {
	m := New("node-test-metrics")

	m.ObserveWriteLatency(10 * time.Millisecond)
	m.IncReplayProcessed()
	m.IncReplayDiscarded()
	m.IncChecksumFailure()
	m.IncCleanerRelocation()
	m.IncReaperSweep()
	m.SetSafeVersion(42)

	var out dto.Metric
	require.NoError(t, m.SafeVersion.Write(&out))
	require.Equal(t, float64(42), out.GetGauge().GetValue())
}

func TestUpdateDiskStats(t *testing.T) {
	m := New("node-test-metrics-disk")
	m.UpdateDiskStats(55.5, 1024)

	var out dto.Metric
	require.NoError(t, m.DiskUsagePercent.Write(&out))
	require.Equal(t, 55.5, out.GetGauge().GetValue())
}
