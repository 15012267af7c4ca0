package objectmanager

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/devrev/pairdb/objectmanager/internal/logentry"
	"github.com/devrev/pairdb/objectmanager/internal/model"
	"github.com/devrev/pairdb/objectmanager/internal/validation"
)

// currentVersionOf decodes the index's current reference for a key,
// if any, returning VersionNonexistent for an absent key or a
// TOMBSTONE residue left behind by replay.
func (om *ObjectManager) currentVersionOf(ref model.LogReference, found bool) (model.Version, bool, error) {
	if !found {
		return model.VersionNonexistent, false, nil
	}
	buf, err := om.log.GetEntry(ref)
	if err != nil {
		return 0, false, fmt.Errorf("objectmanager: read current entry: %w", err)
	}
	typ, err := logentry.PeekType(buf)
	if err != nil {
		return 0, false, err
	}
	if typ != model.EntryTypeObject {
		return model.VersionNonexistent, false, nil
	}
	obj, _, err := logentry.DecodeObject(buf)
	if err != nil {
		return 0, false, err
	}
	return obj.Version, true, nil
}

// Write conditionally writes a new version of key, evaluating rules
// against the current version before appending.
func (om *ObjectManager) Write(key model.Key, value []byte, rules model.RejectRules) (model.Status, model.Version) {
	start := time.Now()
	defer func() { om.metrics.ObserveWriteLatency(time.Since(start)) }()

	guard := om.locks.LockKey(key)
	defer guard.Unlock()

	if state, ok := om.tablets.GetTablet(key.TableID); !ok || state != model.TabletNormal {
		return model.StatusUnknownTablet, model.VersionNonexistent
	}
	om.tablets.IncrementWriteCount(key.TableID)

	ref, cur, found := om.index.Lookup(key)
	currentVersion, isObject, err := om.currentVersionOf(ref, found)
	if err != nil {
		om.logger.Error("write: failed to resolve current entry", zap.Error(err))
		return model.StatusRetry, model.VersionNonexistent
	}

	if status := model.EvaluateRejectRules(currentVersion, rules); status != model.StatusOK {
		return status, currentVersion
	}

	var newVersion model.Version
	if currentVersion == model.VersionNonexistent {
		newVersion = om.versions.Allocate()
	} else {
		newVersion = currentVersion + 1
	}
	if newVersion <= currentVersion {
		panic(fmt.Sprintf("objectmanager: invariant violated: newVersion %d <= currentVersion %d", newVersion, currentVersion))
	}

	objEntry := model.ObjectEntry{
		TableID:   key.TableID,
		Key:       key.KeyBytes,
		Version:   newVersion,
		Timestamp: uint32(time.Now().Unix()),
		Value:     value,
	}
	records := [][]byte{logentry.EncodeObject(objEntry)}

	var tombstoneRecord []byte
	if isObject {
		tombstoneRecord = logentry.EncodeTombstone(model.TombstoneEntry{
			TableID:                  key.TableID,
			Key:                       key.KeyBytes,
			Version:                   currentVersion,
			SegmentIDOfDeletedObject: om.log.GetSegmentID(ref),
			Timestamp:                 uint32(time.Now().Unix()),
		})
		records = append(records, tombstoneRecord)
	}

	if om.diskGuard != nil {
		if err := om.diskGuard.CheckBeforeWrite(validation.EstimateWriteSize(key, value)); err != nil {
			om.logger.Warn("write: rejected by disk guard, retrying later", zap.Error(err))
			return model.StatusRetry, currentVersion
		}
	}

	refs, err := om.log.Append(records...)
	if err != nil {
		om.logger.Warn("write: log append rejected, retrying later", zap.Error(err))
		return model.StatusRetry, currentVersion
	}

	newRef := refs[0]
	if found {
		om.index.ReplaceAt(cur, newRef)
	} else {
		om.index.Insert(key, newRef)
	}
	if isObject {
		om.log.Free(ref)
	}

	om.cache.Put(key, value, newVersion)

	return model.StatusOK, newVersion
}
