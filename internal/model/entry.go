// Package model defines the record and key types shared across the
// object manager: the key tuple, version numbers, and the three log
// entry kinds (object, tombstone, safeVersion marker).
package model

import "fmt"

// Key is the tuple (tableId, keyBytes). Equality is by tableId and
// byte-exact key, never by hash alone.
type Key struct {
	TableID  uint64
	KeyBytes []byte
}

// Equal reports whether two keys are byte-exact equal.
func (k Key) Equal(other Key) bool {
	if k.TableID != other.TableID || len(k.KeyBytes) != len(other.KeyBytes) {
		return false
	}
	for i := range k.KeyBytes {
		if k.KeyBytes[i] != other.KeyBytes[i] {
			return false
		}
	}
	return true
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%x", k.TableID, k.KeyBytes)
}

// Version is a monotonically increasing per-key version number.
type Version uint64

// VersionNonexistent is the reserved sentinel meaning "no object has
// ever existed at this version", never assigned to a real entry.
const VersionNonexistent Version = 0

// EntryType tags the three on-disk record kinds the log holds.
type EntryType uint8

const (
	EntryTypeObject EntryType = iota + 1
	EntryTypeTombstone
	EntryTypeSafeVersion
)

func (t EntryType) String() string {
	switch t {
	case EntryTypeObject:
		return "OBJECT"
	case EntryTypeTombstone:
		return "TOMBSTONE"
	case EntryTypeSafeVersion:
		return "SAFEVERSION"
	default:
		return "UNKNOWN"
	}
}

// ObjectEntry is a live value for a key.
type ObjectEntry struct {
	TableID   uint64
	Key       []byte
	Version   Version
	Timestamp uint32
	Value     []byte
	Checksum  uint32
}

// TombstoneEntry marks a key's deletion. SegmentIDOfDeletedObject is
// the log segment that held the object this tombstone supersedes —
// the sole fact the cleaner uses to decide tombstone liveness.
type TombstoneEntry struct {
	TableID                  uint64
	Key                       []byte
	Version                  Version
	SegmentIDOfDeletedObject uint64
	Timestamp                uint32
	Checksum                 uint32
}

// SafeVersionEntry raises the version floor during recovery replay.
type SafeVersionEntry struct {
	SafeVersion Version
	Checksum    uint32
}

// LogReference is an opaque handle resolving to exactly one log
// entry. The hash index stores one reference per key.
type LogReference struct {
	SegmentID uint64
	Offset    int64
	Length    int32
}

// RejectRules is a struct of independent boolean/version gates
// evaluated against a key's current version before write/read/remove
// proceed. The zero value rejects nothing.
type RejectRules struct {
	GivenVersion   Version
	DoesntExist    bool
	Exists         bool
	VersionLeGiven bool
	VersionNeGiven bool
}

// Status is the closed set of outcomes returned to callers.
type Status int

const (
	StatusOK Status = iota
	StatusUnknownTablet
	StatusObjectDoesntExist
	StatusObjectExists
	StatusWrongVersion
	StatusRetry
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusUnknownTablet:
		return "UNKNOWN_TABLET"
	case StatusObjectDoesntExist:
		return "OBJECT_DOESNT_EXIST"
	case StatusObjectExists:
		return "OBJECT_EXISTS"
	case StatusWrongVersion:
		return "WRONG_VERSION"
	case StatusRetry:
		return "RETRY"
	default:
		return "UNKNOWN_STATUS"
	}
}

// TabletState is the ownership state of a tablet as seen by this
// master, as reported by TabletRegistry.
type TabletState int

const (
	TabletNotOwned TabletState = iota
	TabletNormal
	TabletRecovering
)

func (s TabletState) String() string {
	switch s {
	case TabletNormal:
		return "NORMAL"
	case TabletRecovering:
		return "RECOVERING"
	default:
		return "NOT_OWNED"
	}
}

// EvaluateRejectRules runs the reject-rule evaluation table:
// independent gates checked in a fixed order, the first matching one
// determining the outcome.
func EvaluateRejectRules(version Version, rules RejectRules) Status {
	if version == VersionNonexistent {
		if rules.DoesntExist {
			return StatusObjectDoesntExist
		}
		return StatusOK
	}
	if rules.Exists {
		return StatusObjectExists
	}
	if rules.VersionLeGiven && version <= rules.GivenVersion {
		return StatusWrongVersion
	}
	if rules.VersionNeGiven && version != rules.GivenVersion {
		return StatusWrongVersion
	}
	return StatusOK
}
