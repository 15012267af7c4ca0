package objectmanager

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/devrev/pairdb/objectmanager/internal/logentry"
	"github.com/devrev/pairdb/objectmanager/internal/model"
)

// Relocate is invoked by the log cleaner for every live-looking entry
// in a segment it is reclaiming. The cleaner guarantees oldRef's
// bytes stay valid until this call returns.
func (om *ObjectManager) Relocate(entryType model.EntryType, oldRef model.LogReference, relocator Relocator) error {
	switch entryType {
	case model.EntryTypeObject:
		return om.relocateObject(oldRef, relocator)
	case model.EntryTypeTombstone:
		return om.relocateTombstone(oldRef, relocator)
	default:
		return fmt.Errorf("objectmanager: relocate called for unsupported entry type %d", entryType)
	}
}

func (om *ObjectManager) relocateObject(oldRef model.LogReference, relocator Relocator) error {
	oldBuf, err := om.log.GetEntry(oldRef)
	if err != nil {
		return fmt.Errorf("objectmanager: relocate: read old entry: %w", err)
	}
	key, err := logentry.DecodeKey(oldBuf)
	if err != nil {
		return fmt.Errorf("objectmanager: relocate: decode key: %w", err)
	}

	guard := om.locks.LockKey(key)
	defer guard.Unlock()

	if state, ok := om.tablets.GetTablet(key.TableID); !ok || state == model.TabletNotOwned {
		if _, cur, found := om.index.Lookup(key); found {
			om.index.RemoveAt(cur)
		}
		return nil
	}

	curRef, cur, found := om.index.Lookup(key)
	if !found || curRef != oldRef {
		// Not the reference the index currently points to: a stale
		// copy from an earlier version. Nothing to relocate.
		return nil
	}

	newRef, err := relocator.Relocate(oldBuf)
	if err != nil {
		// Cleaner out of memory for this pass; it will retry later
		// with more memory. Leave the index untouched.
		om.logger.Debug("relocate: relocator rejected object, will retry", zap.Error(err))
		return nil
	}

	om.index.ReplaceAt(cur, newRef)
	om.metrics.IncCleanerRelocation()
	return nil
}

func (om *ObjectManager) relocateTombstone(oldRef model.LogReference, relocator Relocator) error {
	oldBuf, err := om.log.GetEntry(oldRef)
	if err != nil {
		return fmt.Errorf("objectmanager: relocate: read old tombstone: %w", err)
	}
	tomb, _, err := logentry.DecodeTombstone(oldBuf)
	if err != nil {
		return fmt.Errorf("objectmanager: relocate: decode tombstone: %w", err)
	}

	if !om.log.SegmentExists(tomb.SegmentIDOfDeletedObject) {
		// The object segment this tombstone protected is already
		// gone; the tombstone is no longer needed.
		return nil
	}

	if _, err := relocator.Relocate(oldBuf); err != nil {
		om.logger.Debug("relocate: relocator rejected tombstone, will retry", zap.Error(err))
		return nil
	}
	om.metrics.IncCleanerRelocation()
	return nil
}

// GetTimestamp decodes the timestamp field of an OBJECT or TOMBSTONE
// record, for the cleaner's age-based relocation policy.
func (om *ObjectManager) GetTimestamp(entryType model.EntryType, record []byte) (uint32, error) {
	switch entryType {
	case model.EntryTypeObject:
		obj, _, err := logentry.DecodeObject(record)
		if err != nil {
			return 0, err
		}
		return obj.Timestamp, nil
	case model.EntryTypeTombstone:
		tomb, _, err := logentry.DecodeTombstone(record)
		if err != nil {
			return 0, err
		}
		return tomb.Timestamp, nil
	default:
		return 0, fmt.Errorf("objectmanager: getTimestamp called for unsupported entry type %d", entryType)
	}
}
