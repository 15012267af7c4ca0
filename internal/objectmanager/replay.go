package objectmanager

import (
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/devrev/pairdb/objectmanager/internal/logentry"
	"github.com/devrev/pairdb/objectmanager/internal/model"
)

// SegmentIterator yields the raw encoded records of a recovery
// segment in arrival order, which need not be version order.
type SegmentIterator interface {
	Next() (record []byte, ok bool)
}

// ReplaySegmentReturnCount returns the monotonic counter bumped on
// entry to and on exit from every ReplaySegment call, used by
// TombstoneReaper to detect replay quiescence.
func (om *ObjectManager) ReplaySegmentReturnCount() uint64 {
	return om.replaySegmentReturnCount.Load()
}

// ReplaySegment replays a recovery segment into sideLog, reconciling
// each entry against the live index under its key's stripe lock. It
// never surfaces per-entry corruption as an error — bad entries are
// discarded and counted — but a side log append failure aborts the
// whole replay.
func (om *ObjectManager) ReplaySegment(sideLog Log, iterator SegmentIterator) error {
	om.replaySegmentReturnCount.Add(1)
	// Runs on every exit path, including early returns and the error
	// path below, so callers can poll replay progress reliably.
	defer om.replaySegmentReturnCount.Add(1)

	start := time.Now()
	var iteratedBytes int64

	for {
		record, ok := iterator.Next()
		if !ok {
			break
		}

		typ, err := logentry.PeekType(record)
		if err != nil {
			om.logger.Warn("replay: unreadable record, discarding", zap.Error(err))
			om.metrics.IncReplayDiscarded()
			continue
		}

		switch typ {
		case model.EntryTypeObject:
			if err := om.replayObject(sideLog, record); err != nil {
				return err
			}
		case model.EntryTypeTombstone:
			if err := om.replayTombstone(sideLog, record); err != nil {
				return err
			}
		case model.EntryTypeSafeVersion:
			if err := om.replaySafeVersion(sideLog, record); err != nil {
				return err
			}
		default:
			om.logger.Warn("replay: unknown entry type, discarding", zap.Int("type", int(typ)))
			om.metrics.IncReplayDiscarded()
			continue
		}

		om.metrics.IncReplayProcessed()
		iteratedBytes += int64(len(record))
		if iteratedBytes >= om.cfg.ReplayYieldBytes {
			om.yieldToReplicaManager()
			iteratedBytes = 0
		}
	}

	om.logger.Debug("replay segment complete", zap.Duration("latency", time.Since(start)))
	return nil
}

// yieldToReplicaManager cooperatively yields roughly every 50 KB of
// iterated bytes so background replication I/O can progress. A real
// deployment wires this to a channel send toward the replica manager;
// here it is a scheduling point only.
func (om *ObjectManager) yieldToReplicaManager() {
	runtime.Gosched()
}

func (om *ObjectManager) replayObject(sideLog Log, record []byte) error {
	obj, checksumOK, err := logentry.DecodeObject(record)
	if err != nil {
		om.logger.Warn("replay: malformed OBJECT record, discarding", zap.Error(err))
		om.metrics.IncReplayDiscarded()
		return nil
	}
	if !checksumOK {
		om.metrics.IncChecksumFailure()
		if om.cfg.StrictChecksums {
			return fmt.Errorf("objectmanager: checksum failure replaying OBJECT key=%x version=%d", obj.Key, obj.Version)
		}
		om.logger.Warn("replay: checksum mismatch on OBJECT, continuing", zap.Uint64("table_id", obj.TableID))
	}

	key := model.Key{TableID: obj.TableID, KeyBytes: obj.Key}
	guard := om.locks.LockKey(key)
	defer guard.Unlock()

	ref, cur, found := om.index.Lookup(key)
	minSuccessor, freeOld, oldRef, err := om.minSuccessorForObject(ref, found)
	if err != nil {
		om.logger.Warn("replay: failed to resolve current entry, discarding", zap.Error(err))
		om.metrics.IncReplayDiscarded()
		return nil
	}

	if obj.Version < minSuccessor {
		om.metrics.IncReplayDiscarded()
		return nil
	}

	refs, err := sideLog.Append(record)
	if err != nil {
		return fmt.Errorf("objectmanager: sideLog append failed during replay: %w", err)
	}
	if found {
		om.index.ReplaceAt(cur, refs[0])
	} else {
		om.index.Insert(key, refs[0])
	}
	if freeOld {
		sideLog.Free(oldRef)
	}
	return nil
}

// minSuccessorForObject computes the minimum version an incoming
// OBJECT must meet or exceed to supersede the current index entry.
func (om *ObjectManager) minSuccessorForObject(ref model.LogReference, found bool) (model.Version, bool, model.LogReference, error) {
	if !found {
		return 0, false, model.LogReference{}, nil
	}
	buf, err := om.log.GetEntry(ref)
	if err != nil {
		return 0, false, model.LogReference{}, err
	}
	typ, err := logentry.PeekType(buf)
	if err != nil {
		return 0, false, model.LogReference{}, err
	}
	switch typ {
	case model.EntryTypeTombstone:
		tomb, _, err := logentry.DecodeTombstone(buf)
		if err != nil {
			return 0, false, model.LogReference{}, err
		}
		return tomb.Version + 1, false, model.LogReference{}, nil
	case model.EntryTypeObject:
		obj, _, err := logentry.DecodeObject(buf)
		if err != nil {
			return 0, false, model.LogReference{}, err
		}
		return obj.Version + 1, true, ref, nil
	default:
		return 0, false, model.LogReference{}, fmt.Errorf("objectmanager: unexpected index entry type %d", typ)
	}
}

func (om *ObjectManager) replayTombstone(sideLog Log, record []byte) error {
	tomb, checksumOK, err := logentry.DecodeTombstone(record)
	if err != nil {
		om.logger.Warn("replay: malformed TOMBSTONE record, discarding", zap.Error(err))
		om.metrics.IncReplayDiscarded()
		return nil
	}
	if !checksumOK {
		om.metrics.IncChecksumFailure()
		if om.cfg.StrictChecksums {
			return fmt.Errorf("objectmanager: checksum failure replaying TOMBSTONE key=%x version=%d", tomb.Key, tomb.Version)
		}
		om.logger.Warn("replay: checksum mismatch on TOMBSTONE, continuing", zap.Uint64("table_id", tomb.TableID))
	}

	key := model.Key{TableID: tomb.TableID, KeyBytes: tomb.Key}
	guard := om.locks.LockKey(key)
	defer guard.Unlock()

	ref, cur, found := om.index.Lookup(key)
	minSuccessor, freeOld, oldRef, err := om.minSuccessorForTombstone(ref, found)
	if err != nil {
		om.logger.Warn("replay: failed to resolve current entry, discarding", zap.Error(err))
		om.metrics.IncReplayDiscarded()
		return nil
	}

	if tomb.Version < minSuccessor {
		om.metrics.IncReplayDiscarded()
		return nil
	}

	refs, err := sideLog.Append(record)
	if err != nil {
		return fmt.Errorf("objectmanager: sideLog append failed during replay: %w", err)
	}
	if found {
		om.index.ReplaceAt(cur, refs[0])
	} else {
		om.index.Insert(key, refs[0])
	}
	if freeOld {
		sideLog.Free(oldRef)
	}
	return nil
}

// minSuccessorForTombstone mirrors minSuccessorForObject but with the
// asymmetric OBJECT case: a tombstone may supersede an equal-versioned
// object, so minSuccessor is the object's own version, not version+1.
func (om *ObjectManager) minSuccessorForTombstone(ref model.LogReference, found bool) (model.Version, bool, model.LogReference, error) {
	if !found {
		return 0, false, model.LogReference{}, nil
	}
	buf, err := om.log.GetEntry(ref)
	if err != nil {
		return 0, false, model.LogReference{}, err
	}
	typ, err := logentry.PeekType(buf)
	if err != nil {
		return 0, false, model.LogReference{}, err
	}
	switch typ {
	case model.EntryTypeTombstone:
		tomb, _, err := logentry.DecodeTombstone(buf)
		if err != nil {
			return 0, false, model.LogReference{}, err
		}
		return tomb.Version + 1, false, model.LogReference{}, nil
	case model.EntryTypeObject:
		obj, _, err := logentry.DecodeObject(buf)
		if err != nil {
			return 0, false, model.LogReference{}, err
		}
		return obj.Version, true, ref, nil
	default:
		return 0, false, model.LogReference{}, fmt.Errorf("objectmanager: unexpected index entry type %d", typ)
	}
}

func (om *ObjectManager) replaySafeVersion(sideLog Log, record []byte) error {
	sv, checksumOK, err := logentry.DecodeSafeVersion(record)
	if err != nil {
		om.logger.Warn("replay: malformed SAFEVERSION record, discarding", zap.Error(err))
		om.metrics.IncReplayDiscarded()
		return nil
	}
	if !checksumOK {
		om.metrics.IncChecksumFailure()
		if om.cfg.StrictChecksums {
			return fmt.Errorf("objectmanager: checksum failure replaying SAFEVERSION %d", sv.SafeVersion)
		}
		om.logger.Warn("replay: checksum mismatch on SAFEVERSION, continuing")
	}

	if _, err := sideLog.Append(record); err != nil {
		return fmt.Errorf("objectmanager: sideLog append failed during replay: %w", err)
	}
	om.versions.Raise(sv.SafeVersion)
	om.metrics.SetSafeVersion(uint64(om.versions.SafeVersion()))
	return nil
}
