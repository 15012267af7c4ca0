// Package diskguard is a disk-space circuit breaker gating the
// object log's append path: a three-threshold state machine (warn,
// throttle, circuit-break) backed by syscall.Statfs, cached with a
// refresh interval.
package diskguard

import (
	"fmt"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Config holds thresholds and refresh cadence.
type Config struct {
	DataDir                 string
	CheckInterval           time.Duration
	WarningThreshold        float64
	ThrottleThreshold       float64
	CircuitBreakerThreshold float64
}

// DefaultConfig returns sane defaults for dataDir.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:                 dataDir,
		CheckInterval:           10 * time.Second,
		WarningThreshold:        80.0,
		ThrottleThreshold:       90.0,
		CircuitBreakerThreshold: 95.0,
	}
}

// Guard tracks disk usage and decides whether the write path should
// proceed, be throttled, or be rejected outright.
type Guard struct {
	cfg    Config
	logger *zap.Logger

	mu                   sync.RWMutex
	lastCheck            time.Time
	cachedUsagePercent   float64
	cachedAvailableBytes uint64
	isThrottled          bool
	isCircuitBroken      bool
}

// New builds a guard and performs an initial disk space check.
func New(cfg Config, logger *zap.Logger) (*Guard, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("diskguard: data directory is required")
	}
	g := &Guard{cfg: cfg, logger: logger}
	if err := g.checkDiskSpace(); err != nil {
		logger.Warn("initial disk space check failed", zap.Error(err))
	}
	return g, nil
}

// ErrorCode classifies why CheckBeforeWrite rejected a write.
type ErrorCode int

const (
	ErrCodeDiskFull ErrorCode = iota + 1
	ErrCodeDiskThrottled
	ErrCodeInsufficientSpace
)

// SpaceError carries the reason a write was rejected by the guard.
type SpaceError struct {
	Code            ErrorCode
	Message         string
	UsagePercent    float64
	AvailableBytes  uint64
	IsThrottled     bool
	IsCircuitBroken bool
}

func (e *SpaceError) Error() string { return e.Message }

// IsCircuitBroken reports whether err came from an engaged circuit breaker.
func IsCircuitBroken(err error) bool {
	if se, ok := err.(*SpaceError); ok {
		return se.IsCircuitBroken
	}
	return false
}

// CheckBeforeWrite gates a prospective append of estimatedBytes.
// Returns nil if the write may proceed. The object manager maps any
// non-nil return to the RETRY status, never a distinct status of its
// own, since its closed status enum has no slot for disk pressure.
func (g *Guard) CheckBeforeWrite(estimatedBytes uint64) error {
	g.mu.RLock()
	stale := time.Since(g.lastCheck) > g.cfg.CheckInterval
	g.mu.RUnlock()

	if stale {
		g.mu.Lock()
		if err := g.checkDiskSpace(); err != nil {
			g.logger.Warn("disk space check failed", zap.Error(err))
		}
		g.mu.Unlock()
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.isCircuitBroken {
		return &SpaceError{
			Code:            ErrCodeDiskFull,
			Message:         fmt.Sprintf("disk usage at %.2f%%, circuit breaker engaged", g.cachedUsagePercent),
			UsagePercent:    g.cachedUsagePercent,
			AvailableBytes:  g.cachedAvailableBytes,
			IsCircuitBroken: true,
		}
	}

	if g.isThrottled && estimatedBytes > g.cachedAvailableBytes/10 {
		return &SpaceError{
			Code:           ErrCodeDiskThrottled,
			Message:        fmt.Sprintf("disk usage at %.2f%%, write throttled", g.cachedUsagePercent),
			UsagePercent:   g.cachedUsagePercent,
			AvailableBytes: g.cachedAvailableBytes,
			IsThrottled:    true,
		}
	}

	if estimatedBytes > g.cachedAvailableBytes {
		return &SpaceError{
			Code:           ErrCodeInsufficientSpace,
			Message:        fmt.Sprintf("insufficient space: need %d bytes, have %d bytes", estimatedBytes, g.cachedAvailableBytes),
			UsagePercent:   g.cachedUsagePercent,
			AvailableBytes: g.cachedAvailableBytes,
		}
	}

	return nil
}

// checkDiskSpace refreshes the cached usage figures. Must be called
// with mu held for writing.
func (g *Guard) checkDiskSpace() error {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(g.cfg.DataDir, &stat); err != nil {
		return fmt.Errorf("diskguard: statfs: %w", err)
	}

	totalBytes := stat.Blocks * uint64(stat.Bsize)
	availableBytes := stat.Bavail * uint64(stat.Bsize)
	usedBytes := totalBytes - availableBytes
	usagePercent := (float64(usedBytes) / float64(totalBytes)) * 100.0

	g.cachedUsagePercent = usagePercent
	g.cachedAvailableBytes = availableBytes
	g.lastCheck = time.Now()

	previouslyThrottled := g.isThrottled
	previouslyBroken := g.isCircuitBroken

	g.isCircuitBroken = usagePercent >= g.cfg.CircuitBreakerThreshold
	g.isThrottled = usagePercent >= g.cfg.ThrottleThreshold && !g.isCircuitBroken

	if g.isCircuitBroken && !previouslyBroken {
		g.logger.Error("disk circuit breaker engaged",
			zap.Float64("usage_percent", usagePercent),
			zap.Uint64("available_bytes", availableBytes),
			zap.Float64("threshold", g.cfg.CircuitBreakerThreshold))
	} else if !g.isCircuitBroken && previouslyBroken {
		g.logger.Info("disk circuit breaker disengaged",
			zap.Float64("usage_percent", usagePercent),
			zap.Uint64("available_bytes", availableBytes))
	}

	if g.isThrottled && !previouslyThrottled && !g.isCircuitBroken {
		g.logger.Warn("disk write throttling enabled",
			zap.Float64("usage_percent", usagePercent),
			zap.Uint64("available_bytes", availableBytes),
			zap.Float64("threshold", g.cfg.ThrottleThreshold))
	} else if !g.isThrottled && previouslyThrottled {
		g.logger.Info("disk write throttling disabled",
			zap.Float64("usage_percent", usagePercent),
			zap.Uint64("available_bytes", availableBytes))
	}

	if usagePercent >= g.cfg.WarningThreshold && !g.isThrottled && !g.isCircuitBroken {
		g.logger.Warn("disk usage warning",
			zap.Float64("usage_percent", usagePercent),
			zap.Uint64("available_bytes", availableBytes),
			zap.Float64("warning_threshold", g.cfg.WarningThreshold))
	}

	return nil
}

// Usage reports the current cached disk usage stats.
type Usage struct {
	UsagePercent    float64
	AvailableBytes  uint64
	IsThrottled     bool
	IsCircuitBroken bool
	LastCheck       time.Time
}

// GetDiskUsage returns the cached usage, refreshing first if stale.
func (g *Guard) GetDiskUsage() Usage {
	g.mu.RLock()
	stale := time.Since(g.lastCheck) > g.cfg.CheckInterval
	g.mu.RUnlock()

	if stale {
		g.mu.Lock()
		g.checkDiskSpace()
		g.mu.Unlock()
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	return Usage{
		UsagePercent:    g.cachedUsagePercent,
		AvailableBytes:  g.cachedAvailableBytes,
		IsThrottled:     g.isThrottled,
		IsCircuitBroken: g.isCircuitBroken,
		LastCheck:       g.lastCheck,
	}
}

// ForceCheck forces an immediate refresh, bypassing the cache interval.
func (g *Guard) ForceCheck() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checkDiskSpace()
}
