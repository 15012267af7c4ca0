// Package objectmanager is the core of the module: WriteEngine,
// ReadPath, Remove, ReplayEngine, CleanerCallbacks, TombstoneReaper,
// and OrphanReaper, coordinated against a single shared hash index
// under bucket-striped locks.
package objectmanager

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/devrev/pairdb/objectmanager/internal/hashindex"
	"github.com/devrev/pairdb/objectmanager/internal/locktable"
	"github.com/devrev/pairdb/objectmanager/internal/model"
	"github.com/devrev/pairdb/objectmanager/internal/readcache"
	"github.com/devrev/pairdb/objectmanager/internal/validation"
	"github.com/devrev/pairdb/objectmanager/internal/versionalloc"
)

// Log is the external log substrate collaborator: append, read,
// free, and segment-existence queries. internal/objectlog.Log
// satisfies this; tests may substitute a fake.
type Log interface {
	Append(records ...[]byte) ([]model.LogReference, error)
	GetEntry(ref model.LogReference) ([]byte, error)
	Free(ref model.LogReference)
	GetSegmentID(ref model.LogReference) uint64
	SegmentExists(id uint64) bool
	Sync() error
}

// TabletRegistry is the external tablet-ownership collaborator.
// internal/tabletregistry.Registry satisfies this.
type TabletRegistry interface {
	GetTablet(tableID uint64) (model.TabletState, bool)
	IncrementReadCount(tableID uint64)
	IncrementWriteCount(tableID uint64)
}

// Relocator is provided by the log cleaner to CleanerCallbacks.Relocate:
// it copies a live record to a new location and returns its reference,
// or rejects (e.g. out of cleaner memory).
type Relocator interface {
	Relocate(record []byte) (model.LogReference, error)
}

// DiskGuard gates the write path against a disk-space circuit breaker.
// internal/diskguard.Guard satisfies this. A nil DiskGuard disables
// the check entirely (every write proceeds straight to the log
// append).
type DiskGuard interface {
	CheckBeforeWrite(estimatedBytes uint64) error
}

// MetricsSink is a passed-in counter sink — this package never
// references a process-wide metrics singleton. A nil sink is valid;
// every method is a no-op against it.
type MetricsSink interface {
	ObserveWriteLatency(time.Duration)
	ObserveReadLatency(time.Duration)
	ObserveRemoveLatency(time.Duration)
	IncReplayProcessed()
	IncReplayDiscarded()
	IncChecksumFailure()
	IncCleanerRelocation()
	IncReaperSweep()
	SetSafeVersion(uint64)
}

type noopMetrics struct{}

func (noopMetrics) ObserveWriteLatency(time.Duration)  {}
func (noopMetrics) ObserveReadLatency(time.Duration)   {}
func (noopMetrics) ObserveRemoveLatency(time.Duration) {}
func (noopMetrics) IncReplayProcessed()                {}
func (noopMetrics) IncReplayDiscarded()                {}
func (noopMetrics) IncChecksumFailure()                {}
func (noopMetrics) IncCleanerRelocation()               {}
func (noopMetrics) IncReaperSweep()                     {}
func (noopMetrics) SetSafeVersion(uint64)               {}

// Config carries the object manager's tunables, loaded from
// internal/config in the standalone service.
type Config struct {
	// LockTableSize is the number of stripe locks (and hash index
	// buckets), rounded up to a power of two.
	LockTableSize int
	// ReadCacheSize bounds the LRU read cache entry count.
	ReadCacheSize int
	// StrictChecksums upgrades a replay checksum failure from
	// warn-and-continue to an aborting error.
	StrictChecksums bool
	// ReplayYieldBytes is how many iterated bytes ReplaySegment
	// processes before cooperatively yielding.
	ReplayYieldBytes int64
	// MaxKeySize and MaxValueSize are the limits ValidateWrite checks;
	// Write itself does not check them. Zero selects validation's
	// defaults.
	MaxKeySize   int
	MaxValueSize int
}

func (c Config) withDefaults() Config {
	if c.LockTableSize <= 0 {
		c.LockTableSize = 2048
	}
	if c.ReadCacheSize <= 0 {
		c.ReadCacheSize = 10000
	}
	if c.ReplayYieldBytes <= 0 {
		c.ReplayYieldBytes = 50 * 1024
	}
	if c.MaxKeySize <= 0 {
		c.MaxKeySize = validation.MaxKeySize
	}
	if c.MaxValueSize <= 0 {
		c.MaxValueSize = validation.MaxValueSize
	}
	return c
}

// ObjectManager is the authoritative key -> log-reference mapping for
// every tablet this master serves.
type ObjectManager struct {
	cfg Config

	locks     *locktable.BucketLockTable
	index     *hashindex.HashIndex
	versions  *versionalloc.Allocator
	log       Log
	tablets   TabletRegistry
	diskGuard DiskGuard
	cache     *readcache.Cache
	validator *validation.Validator
	metrics   MetricsSink
	logger    *zap.Logger

	replaySegmentReturnCount atomic.Uint64
}

// New builds an ObjectManager over the given collaborators. diskGuard
// may be nil, in which case Write skips the disk-space check.
func New(cfg Config, log Log, tablets TabletRegistry, diskGuard DiskGuard, logger *zap.Logger, metrics MetricsSink) (*ObjectManager, error) {
	cfg = cfg.withDefaults()
	cache, err := readcache.New(cfg.ReadCacheSize)
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	locks := locktable.New(cfg.LockTableSize, hashindex.HashKey)
	om := &ObjectManager{
		cfg:       cfg,
		locks:     locks,
		index:     hashindex.New(locks.BucketCount()),
		versions:  versionalloc.New(),
		log:       log,
		tablets:   tablets,
		diskGuard: diskGuard,
		cache:     cache,
		validator: validation.NewValidatorWithLimits(cfg.MaxKeySize, cfg.MaxValueSize),
		metrics:   metrics,
		logger:    logger,
	}
	return om, nil
}

// ValidateWrite checks key and value against the configured size
// limits. Front-end services call this ahead of Write; Write itself
// trusts its caller, since the module's closed status enum has no
// slot for a validation failure distinct from its five non-OK statuses.
func (om *ObjectManager) ValidateWrite(key model.Key, value []byte) error {
	return om.validator.ValidateWrite(key, value)
}

// SafeVersion returns the current version floor.
func (om *ObjectManager) SafeVersion() model.Version {
	return om.versions.SafeVersion()
}

// SyncWrites blocks until everything appended so far is durable.
// Between a write and the next SyncWrites, the master and its
// backups may diverge.
func (om *ObjectManager) SyncWrites() error {
	return om.log.Sync()
}

// RemoveOrphanedObjects runs a one-shot OrphanReaper sweep inline.
// Callers wanting the worker-pool-bounded variant should construct
// their own OrphanReaper via NewOrphanReaper instead.
func (om *ObjectManager) RemoveOrphanedObjects() {
	NewOrphanReaper(om, nil).Run()
}
