package objectmanager

import (
	"context"

	"go.uber.org/zap"

	"github.com/devrev/pairdb/objectmanager/internal/hashindex"
	"github.com/devrev/pairdb/objectmanager/internal/logentry"
	"github.com/devrev/pairdb/objectmanager/internal/model"
	"github.com/devrev/pairdb/objectmanager/internal/workerpool"
)

// TombstoneReaper cooperatively sweeps one bucket per tick, evicting
// recovery tombstones once replay is quiescent and their tablet has
// left RECOVERING. It holds only a plain *ObjectManager pointer, not
// an ownership cycle, since its owner drives it from an external
// ticker rather than it self-scheduling.
type TombstoneReaper struct {
	om *ObjectManager

	currentBucket   int
	lastReplayCount uint64
	passes          uint64
}

// NewTombstoneReaper builds a reaper over om, registered explicitly
// with the caller's dispatch loop rather than self-registering.
func NewTombstoneReaper(om *ObjectManager) *TombstoneReaper {
	return &TombstoneReaper{om: om}
}

// Tick sweeps exactly one bucket, per the ticker-driven dispatch-loop
// idiom the object manager's owner is expected to run it from.
func (r *TombstoneReaper) Tick() {
	om := r.om

	if r.currentBucket == 0 {
		currentCount := om.ReplaySegmentReturnCount()
		if r.passes > 0 && currentCount == r.lastReplayCount {
			// Replay is quiescent and we already made a pass since.
			return
		}
		r.lastReplayCount = currentCount
	}

	guard := om.locks.LockBucket(r.currentBucket)
	om.index.ForEachInBucket(r.currentBucket, func(key model.Key, ref model.LogReference, cur hashindex.Cursor) {
		r.maybeReapTombstone(key, ref, cur)
	})
	guard.Unlock()

	r.advance()
}

func (r *TombstoneReaper) maybeReapTombstone(key model.Key, ref model.LogReference, cur hashindex.Cursor) {
	om := r.om
	buf, err := om.log.GetEntry(ref)
	if err != nil {
		om.logger.Warn("tombstone reaper: failed to read entry", zap.Error(err))
		return
	}
	typ, err := logentry.PeekType(buf)
	if err != nil || typ != model.EntryTypeTombstone {
		return
	}

	state, owned := om.tablets.GetTablet(key.TableID)
	if !owned || state != model.TabletRecovering {
		om.index.RemoveAt(cur)
	}
}

func (r *TombstoneReaper) advance() {
	om := r.om
	r.currentBucket++
	if r.currentBucket >= om.locks.BucketCount() {
		r.currentBucket = 0
		r.passes++
	}
	om.metrics.IncReaperSweep()
}

// Passes returns the number of complete sweeps performed.
func (r *TombstoneReaper) Passes() uint64 {
	return r.passes
}

// OrphanReaper is a one-shot full sweep removing OBJECT entries whose
// tablet is no longer owned, used to repair state after a recovery
// abort.
type OrphanReaper struct {
	om   *ObjectManager
	pool *workerpool.WorkerPool
}

// NewOrphanReaper builds a one-shot reaper, optionally bounded by a
// worker pool (falls back to inline execution if pool is nil or
// saturated).
func NewOrphanReaper(om *ObjectManager, pool *workerpool.WorkerPool) *OrphanReaper {
	return &OrphanReaper{om: om, pool: pool}
}

// Run sweeps every bucket once, submitted to the worker pool as a
// single task if one is configured, falling back to running inline.
func (r *OrphanReaper) Run() {
	if r.pool == nil {
		r.sweepAll()
		return
	}
	task := workerpool.Task{
		ID: "orphan-reaper-sweep",
		Fn: func(ctx context.Context) error {
			r.sweepAll()
			return nil
		},
	}
	if !r.pool.TrySubmit(task) {
		r.om.logger.Warn("orphan reaper: worker pool saturated, running inline")
		r.sweepAll()
	}
}

func (r *OrphanReaper) sweepAll() {
	om := r.om
	for b := 0; b < om.locks.BucketCount(); b++ {
		guard := om.locks.LockBucket(b)
		om.index.ForEachInBucket(b, func(key model.Key, ref model.LogReference, cur hashindex.Cursor) {
			buf, err := om.log.GetEntry(ref)
			if err != nil {
				om.logger.Warn("orphan reaper: failed to read entry", zap.Error(err))
				return
			}
			typ, err := logentry.PeekType(buf)
			if err != nil || typ != model.EntryTypeObject {
				// Tombstones are the cleaner's to reclaim, not this sweep's.
				return
			}
			if _, owned := om.tablets.GetTablet(key.TableID); !owned {
				om.index.RemoveAt(cur)
				om.log.Free(ref)
			}
		})
		guard.Unlock()
		om.metrics.IncReaperSweep()
	}
}
