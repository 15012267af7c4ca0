// Command objectmanager runs the object manager as a standalone
// service: it owns the hash index, the log substrate, the disk guard,
// and the tablet registry for this node, and ticks the tombstone
// reaper on a background dispatch loop.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/devrev/pairdb/objectmanager/internal/config"
	"github.com/devrev/pairdb/objectmanager/internal/diskguard"
	"github.com/devrev/pairdb/objectmanager/internal/metrics"
	"github.com/devrev/pairdb/objectmanager/internal/metricsserver"
	"github.com/devrev/pairdb/objectmanager/internal/objectlog"
	"github.com/devrev/pairdb/objectmanager/internal/objectmanager"
	"github.com/devrev/pairdb/objectmanager/internal/tabletregistry"
)

func main() {
	logger, err := initLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.String("node_id", cfg.Server.NodeID),
		zap.String("data_dir", cfg.Storage.DataDir))

	if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
		logger.Fatal("failed to create data directory", zap.Error(err))
	}

	log, err := objectlog.Open(cfg.Storage.DataDir, objectlog.Config{
		SegmentSize: cfg.ObjectLog.SegmentSize,
		SyncWrites:  cfg.ObjectLog.SyncWrites,
	}, logger)
	if err != nil {
		logger.Fatal("failed to open object log", zap.Error(err))
	}
	defer log.Close()

	diskGuardCfg := diskguard.Config{
		DataDir:                 cfg.Storage.DataDir,
		CheckInterval:           cfg.DiskGuard.CheckInterval,
		WarningThreshold:        cfg.DiskGuard.WarningThreshold,
		ThrottleThreshold:       cfg.DiskGuard.ThrottleThreshold,
		CircuitBreakerThreshold: cfg.DiskGuard.CircuitBreakerThreshold,
	}
	guard, err := diskguard.New(diskGuardCfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize disk guard", zap.Error(err))
	}

	tablets, err := tabletregistry.New(tabletregistry.Config{
		Enabled:        cfg.TabletRegistry.Enabled,
		BindPort:       cfg.TabletRegistry.BindPort,
		SeedNodes:      cfg.TabletRegistry.SeedNodes,
		GossipInterval: cfg.TabletRegistry.GossipInterval,
		ProbeTimeout:   cfg.TabletRegistry.ProbeTimeout,
		ProbeInterval:  cfg.TabletRegistry.ProbeInterval,
	}, cfg.Server.NodeID, logger)
	if err != nil {
		logger.Fatal("failed to initialize tablet registry", zap.Error(err))
	}
	defer tablets.Shutdown()

	m := metrics.New(cfg.Server.NodeID)

	om, err := objectmanager.New(objectmanager.Config{
		LockTableSize:    cfg.ObjectManager.LockTableSize,
		ReadCacheSize:    cfg.ReadCache.Size,
		StrictChecksums:  cfg.ObjectManager.StrictChecksums,
		ReplayYieldBytes: cfg.ObjectManager.ReplayYieldBytes,
		MaxKeySize:       cfg.ObjectManager.MaxKeySize,
		MaxValueSize:     cfg.ObjectManager.MaxValueSize,
	}, log, tablets, guard, logger, m)
	if err != nil {
		logger.Fatal("failed to initialize object manager", zap.Error(err))
	}

	var metricsSrv *metricsserver.Server
	if cfg.Metrics.Enabled {
		metricsSrv = metricsserver.New(metricsserver.Config{
			Port: cfg.Metrics.Port,
			Path: cfg.Metrics.Path,
		}, m, guard, logger)
		metricsSrv.Start()
	}

	stopReaper := make(chan struct{})
	go runTombstoneReaper(om, cfg.ObjectManager.ReaperTickInterval, stopReaper, logger)

	logger.Info("object manager service started", zap.String("node_id", cfg.Server.NodeID))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down gracefully...")
	close(stopReaper)

	if err := om.SyncWrites(); err != nil {
		logger.Error("failed to sync writes during shutdown", zap.Error(err))
	}
	if metricsSrv != nil {
		if err := metricsSrv.Stop(); err != nil {
			logger.Error("failed to stop metrics server", zap.Error(err))
		}
	}
}

func runTombstoneReaper(om *objectmanager.ObjectManager, interval time.Duration, stop <-chan struct{}, logger *zap.Logger) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	reaper := objectmanager.NewTombstoneReaper(om)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			reaper.Tick()
		case <-stop:
			logger.Info("tombstone reaper stopped", zap.Uint64("passes", reaper.Passes()))
			return
		}
	}
}

func initLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	return cfg.Build()
}
