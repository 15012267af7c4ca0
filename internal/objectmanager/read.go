package objectmanager

import (
	"time"

	"go.uber.org/zap"

	"github.com/devrev/pairdb/objectmanager/internal/logentry"
	"github.com/devrev/pairdb/objectmanager/internal/model"
)

// Read conditionally reads key: acquire the stripe lock, check the
// tablet, look up the key, treat anything that isn't a live OBJECT as
// not found.
func (om *ObjectManager) Read(key model.Key, rules model.RejectRules) (model.Status, []byte, model.Version) {
	start := time.Now()
	defer func() { om.metrics.ObserveReadLatency(time.Since(start)) }()

	guard := om.locks.LockKey(key)
	defer guard.Unlock()

	if state, ok := om.tablets.GetTablet(key.TableID); !ok || state != model.TabletNormal {
		return model.StatusUnknownTablet, nil, model.VersionNonexistent
	}
	om.tablets.IncrementReadCount(key.TableID)

	if cached, ok := om.cache.Get(key); ok {
		if status := model.EvaluateRejectRules(cached.Version, rules); status != model.StatusOK {
			return status, nil, cached.Version
		}
		return model.StatusOK, cached.Value, cached.Version
	}

	ref, _, found := om.index.Lookup(key)
	if !found {
		return model.StatusObjectDoesntExist, nil, model.VersionNonexistent
	}

	buf, err := om.log.GetEntry(ref)
	if err != nil {
		om.logger.Error("read: failed to fetch entry", zap.Error(err))
		return model.StatusObjectDoesntExist, nil, model.VersionNonexistent
	}
	typ, err := logentry.PeekType(buf)
	if err != nil || typ != model.EntryTypeObject {
		return model.StatusObjectDoesntExist, nil, model.VersionNonexistent
	}
	obj, ok, err := logentry.DecodeObject(buf)
	if err != nil {
		return model.StatusObjectDoesntExist, nil, model.VersionNonexistent
	}
	if !ok {
		om.metrics.IncChecksumFailure()
		om.logger.Warn("read: checksum mismatch on stored object", zap.Any("key", key))
	}

	om.cache.Put(key, obj.Value, obj.Version)

	if status := model.EvaluateRejectRules(obj.Version, rules); status != model.StatusOK {
		return status, nil, obj.Version
	}
	return model.StatusOK, obj.Value, obj.Version
}
