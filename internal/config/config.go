// Package config loads the object manager service's YAML
// configuration, applying defaults and validation.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig identifies this node. The object manager itself serves
// no client-facing listener (that's the ingress service's job, outside
// this module) — node_id is the only field a standalone process needs,
// to label its tablet registry membership and metrics.
type ServerConfig struct {
	NodeID string `yaml:"node_id"`
}

// Config is the complete configuration for the objectmanager service.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Storage        StorageConfig        `yaml:"storage"`
	ObjectLog      ObjectLogConfig      `yaml:"object_log"`
	DiskGuard      DiskGuardConfig      `yaml:"disk_guard"`
	ObjectManager  ObjectManagerConfig  `yaml:"object_manager"`
	ReadCache      ReadCacheConfig      `yaml:"read_cache"`
	TabletRegistry TabletRegistryConfig `yaml:"tablet_registry"`
	Metrics        MetricsConfig        `yaml:"metrics"`
	Logging        LoggingConfig        `yaml:"logging"`
}

// StorageConfig holds the on-disk layout.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// ObjectLogConfig holds internal/objectlog's tunables.
type ObjectLogConfig struct {
	SegmentSize int64 `yaml:"segment_size"`
	SyncWrites  bool  `yaml:"sync_writes"`
}

// DiskGuardConfig holds internal/diskguard's thresholds.
type DiskGuardConfig struct {
	CheckInterval           time.Duration `yaml:"check_interval"`
	WarningThreshold        float64       `yaml:"warning_threshold"`
	ThrottleThreshold       float64       `yaml:"throttle_threshold"`
	CircuitBreakerThreshold float64       `yaml:"circuit_breaker_threshold"`
}

// ObjectManagerConfig holds internal/objectmanager's tunables.
type ObjectManagerConfig struct {
	LockTableSize    int           `yaml:"lock_table_size"`
	StrictChecksums  bool          `yaml:"strict_checksums"`
	ReplayYieldBytes int64         `yaml:"replay_yield_bytes"`
	MaxKeySize       int           `yaml:"max_key_size"`
	MaxValueSize     int           `yaml:"max_value_size"`
	ReaperTickInterval time.Duration `yaml:"reaper_tick_interval"`
}

// ReadCacheConfig holds internal/readcache's tunables.
type ReadCacheConfig struct {
	Size int `yaml:"size"`
}

// TabletRegistryConfig holds internal/tabletregistry's gossip tunables.
type TabletRegistryConfig struct {
	Enabled        bool          `yaml:"enabled"`
	BindPort       int           `yaml:"bind_port"`
	SeedNodes      []string      `yaml:"seed_nodes"`
	GossipInterval time.Duration `yaml:"gossip_interval"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`
	ProbeInterval  time.Duration `yaml:"probe_interval"`
}

// MetricsConfig holds the HTTP metrics server configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds zap's configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadConfig reads, defaults, and validates the config at filePath.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "/var/lib/pairdb/objectmanager"
	}

	if cfg.ObjectLog.SegmentSize == 0 {
		cfg.ObjectLog.SegmentSize = 64 * 1024 * 1024
	}

	if cfg.DiskGuard.CheckInterval == 0 {
		cfg.DiskGuard.CheckInterval = 10 * time.Second
	}
	if cfg.DiskGuard.WarningThreshold == 0 {
		cfg.DiskGuard.WarningThreshold = 80.0
	}
	if cfg.DiskGuard.ThrottleThreshold == 0 {
		cfg.DiskGuard.ThrottleThreshold = 90.0
	}
	if cfg.DiskGuard.CircuitBreakerThreshold == 0 {
		cfg.DiskGuard.CircuitBreakerThreshold = 95.0
	}

	if cfg.ObjectManager.LockTableSize == 0 {
		cfg.ObjectManager.LockTableSize = 2048
	}
	if cfg.ObjectManager.ReplayYieldBytes == 0 {
		cfg.ObjectManager.ReplayYieldBytes = 50 * 1024
	}
	if cfg.ObjectManager.MaxKeySize == 0 {
		cfg.ObjectManager.MaxKeySize = 1024
	}
	if cfg.ObjectManager.MaxValueSize == 0 {
		cfg.ObjectManager.MaxValueSize = 10 * 1024 * 1024
	}
	if cfg.ObjectManager.ReaperTickInterval == 0 {
		cfg.ObjectManager.ReaperTickInterval = 100 * time.Millisecond
	}

	if cfg.ReadCache.Size == 0 {
		cfg.ReadCache.Size = 10000
	}

	if cfg.TabletRegistry.BindPort == 0 {
		cfg.TabletRegistry.BindPort = 7946
	}
	if cfg.TabletRegistry.GossipInterval == 0 {
		cfg.TabletRegistry.GossipInterval = 200 * time.Millisecond
	}
	if cfg.TabletRegistry.ProbeTimeout == 0 {
		cfg.TabletRegistry.ProbeTimeout = 500 * time.Millisecond
	}
	if cfg.TabletRegistry.ProbeInterval == 0 {
		cfg.TabletRegistry.ProbeInterval = time.Second
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9102
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate checks the configuration for internally consistent values.
func (c *Config) Validate() error {
	if c.Server.NodeID == "" {
		return fmt.Errorf("server.node_id is required")
	}
	if c.DiskGuard.WarningThreshold < 0 || c.DiskGuard.WarningThreshold > 100 {
		return fmt.Errorf("disk_guard.warning_threshold must be between 0 and 100")
	}
	if c.DiskGuard.ThrottleThreshold < c.DiskGuard.WarningThreshold {
		return fmt.Errorf("disk_guard.throttle_threshold must not be below warning_threshold")
	}
	if c.DiskGuard.CircuitBreakerThreshold < c.DiskGuard.ThrottleThreshold {
		return fmt.Errorf("disk_guard.circuit_breaker_threshold must not be below throttle_threshold")
	}
	if c.ObjectManager.LockTableSize <= 0 {
		return fmt.Errorf("object_manager.lock_table_size must be positive")
	}
	return nil
}
