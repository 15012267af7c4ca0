// Package metrics registers the object manager's Prometheus counters
// and histograms and adapts them to objectmanager.MetricsSink.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the object manager reports.
type Metrics struct {
	WriteDuration  prometheus.Histogram
	ReadDuration   prometheus.Histogram
	RemoveDuration prometheus.Histogram

	ReplayEntriesProcessed prometheus.Counter
	ReplayEntriesDiscarded prometheus.Counter
	ChecksumFailuresTotal  prometheus.Counter
	CleanerRelocationsTotal prometheus.Counter
	ReaperSweepsTotal      prometheus.Counter

	SafeVersion prometheus.Gauge

	DiskUsagePercent   prometheus.Gauge
	DiskAvailableBytes prometheus.Gauge
	GoroutinesTotal    prometheus.Gauge
}

// New creates and registers every collector, labeled with nodeID.
func New(nodeID string) *Metrics {
	labels := prometheus.Labels{"node_id": nodeID}

	return &Metrics{
		WriteDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "pairdb",
			Subsystem:   "objectmanager",
			Name:        "write_duration_seconds",
			Help:        "Histogram of write() durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		ReadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "pairdb",
			Subsystem:   "objectmanager",
			Name:        "read_duration_seconds",
			Help:        "Histogram of read() durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		RemoveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "pairdb",
			Subsystem:   "objectmanager",
			Name:        "remove_duration_seconds",
			Help:        "Histogram of remove() durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		ReplayEntriesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "pairdb",
			Subsystem:   "objectmanager",
			Name:        "replay_entries_processed_total",
			Help:        "Total log entries applied by replaySegment",
			ConstLabels: labels,
		}),
		ReplayEntriesDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "pairdb",
			Subsystem:   "objectmanager",
			Name:        "replay_entries_discarded_total",
			Help:        "Total log entries discarded as stale by replaySegment's minSuccessor check",
			ConstLabels: labels,
		}),
		ChecksumFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "pairdb",
			Subsystem:   "objectmanager",
			Name:        "checksum_failures_total",
			Help:        "Total checksum validation failures across read and replay",
			ConstLabels: labels,
		}),
		CleanerRelocationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "pairdb",
			Subsystem:   "objectmanager",
			Name:        "cleaner_relocations_total",
			Help:        "Total entries relocated by CleanerCallbacks.Relocate",
			ConstLabels: labels,
		}),
		ReaperSweepsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "pairdb",
			Subsystem:   "objectmanager",
			Name:        "reaper_sweeps_total",
			Help:        "Total bucket sweeps performed by the tombstone and orphan reapers",
			ConstLabels: labels,
		}),
		SafeVersion: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "pairdb",
			Subsystem:   "objectmanager",
			Name:        "safe_version",
			Help:        "Current safeVersion floor",
			ConstLabels: labels,
		}),
		DiskUsagePercent: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "pairdb",
			Subsystem:   "system",
			Name:        "disk_usage_percent",
			Help:        "Disk usage percentage of the object log's data directory",
			ConstLabels: labels,
		}),
		DiskAvailableBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "pairdb",
			Subsystem:   "system",
			Name:        "disk_available_bytes",
			Help:        "Available disk space in bytes",
			ConstLabels: labels,
		}),
		GoroutinesTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "pairdb",
			Subsystem:   "system",
			Name:        "goroutines_total",
			Help:        "Current number of goroutines",
			ConstLabels: labels,
		}),
	}
}

// ObserveWriteLatency implements objectmanager.MetricsSink.
func (m *Metrics) ObserveWriteLatency(d time.Duration) { m.WriteDuration.Observe(d.Seconds()) }

// ObserveReadLatency implements objectmanager.MetricsSink.
func (m *Metrics) ObserveReadLatency(d time.Duration) { m.ReadDuration.Observe(d.Seconds()) }

// ObserveRemoveLatency implements objectmanager.MetricsSink.
func (m *Metrics) ObserveRemoveLatency(d time.Duration) { m.RemoveDuration.Observe(d.Seconds()) }

// IncReplayProcessed implements objectmanager.MetricsSink.
func (m *Metrics) IncReplayProcessed() { m.ReplayEntriesProcessed.Inc() }

// IncReplayDiscarded implements objectmanager.MetricsSink.
func (m *Metrics) IncReplayDiscarded() { m.ReplayEntriesDiscarded.Inc() }

// IncChecksumFailure implements objectmanager.MetricsSink.
func (m *Metrics) IncChecksumFailure() { m.ChecksumFailuresTotal.Inc() }

// IncCleanerRelocation implements objectmanager.MetricsSink.
func (m *Metrics) IncCleanerRelocation() { m.CleanerRelocationsTotal.Inc() }

// IncReaperSweep implements objectmanager.MetricsSink.
func (m *Metrics) IncReaperSweep() { m.ReaperSweepsTotal.Inc() }

// SetSafeVersion implements objectmanager.MetricsSink.
func (m *Metrics) SetSafeVersion(v uint64) { m.SafeVersion.Set(float64(v)) }

// UpdateDiskStats records the disk guard's cached usage figures.
func (m *Metrics) UpdateDiskStats(usagePercent float64, availableBytes uint64) {
	m.DiskUsagePercent.Set(usagePercent)
	m.DiskAvailableBytes.Set(float64(availableBytes))
}

// UpdateGoroutines records the current goroutine count.
func (m *Metrics) UpdateGoroutines(n int) {
	m.GoroutinesTotal.Set(float64(n))
}
