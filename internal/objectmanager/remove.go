package objectmanager

import (
	"time"

	"go.uber.org/zap"

	"github.com/devrev/pairdb/objectmanager/internal/logentry"
	"github.com/devrev/pairdb/objectmanager/internal/model"
)

// Remove conditionally deletes key by appending a tombstone,
// evaluating rules against the current version first.
func (om *ObjectManager) Remove(key model.Key, rules model.RejectRules) (model.Status, model.Version) {
	start := time.Now()
	defer func() { om.metrics.ObserveRemoveLatency(time.Since(start)) }()

	guard := om.locks.LockKey(key)
	defer guard.Unlock()

	if state, ok := om.tablets.GetTablet(key.TableID); !ok || state != model.TabletNormal {
		return model.StatusUnknownTablet, model.VersionNonexistent
	}

	ref, cur, found := om.index.Lookup(key)
	currentVersion, isObject, err := om.currentVersionOf(ref, found)
	if err != nil {
		om.logger.Error("remove: failed to resolve current entry", zap.Error(err))
		return model.StatusRetry, model.VersionNonexistent
	}

	if !isObject {
		return model.EvaluateRejectRules(model.VersionNonexistent, rules), model.VersionNonexistent
	}

	if status := model.EvaluateRejectRules(currentVersion, rules); status != model.StatusOK {
		return status, currentVersion
	}

	tombstone := model.TombstoneEntry{
		TableID:                  key.TableID,
		Key:                       key.KeyBytes,
		Version:                   currentVersion,
		SegmentIDOfDeletedObject: om.log.GetSegmentID(ref),
		Timestamp:                 uint32(time.Now().Unix()),
	}
	if _, err := om.log.Append(logentry.EncodeTombstone(tombstone)); err != nil {
		om.logger.Warn("remove: log append rejected, retrying later", zap.Error(err))
		return model.StatusRetry, currentVersion
	}

	if err := om.log.Sync(); err != nil {
		om.logger.Warn("remove: sync failed", zap.Error(err))
		return model.StatusRetry, currentVersion
	}

	om.versions.Raise(currentVersion + 1)
	om.metrics.SetSafeVersion(uint64(om.versions.SafeVersion()))

	om.log.Free(ref)
	om.index.RemoveAt(cur)
	om.cache.Evict(key)

	return model.StatusOK, currentVersion
}
