// Package logentry encodes and decodes the three on-disk log record
// kinds byte-for-byte per the wire layout fixed by the surrounding
// system, and verifies their CRC32 checksums.
package logentry

import (
	"encoding/binary"
	"fmt"

	"github.com/devrev/pairdb/objectmanager/internal/model"
	"github.com/devrev/pairdb/objectmanager/internal/util"
)

// Layout (little-endian throughout):
//
//	OBJECT:     type(1) tableId(8) keyLength(2) version(8) timestamp(4) checksum(4) key(keyLength) value(rest)
//	TOMBSTONE:  type(1) tableId(8) keyLength(2) version(8) segmentId(8) timestamp(4) checksum(4) key(keyLength)
//	SAFEVERSION: type(1) safeVersion(8) checksum(4)

const (
	objectHeaderLen    = 1 + 8 + 2 + 8 + 4 + 4
	tombstoneHeaderLen = 1 + 8 + 2 + 8 + 8 + 4 + 4
	safeVersionLen     = 1 + 8 + 4
)

// ErrTruncated is returned when a buffer is too short to hold even a
// record header.
var ErrTruncated = fmt.Errorf("logentry: truncated record")

// PeekType reads only the leading type byte, without validating the
// rest of the record. Used by replay/cleaner code that dispatches on
// type before fully decoding.
func PeekType(buf []byte) (model.EntryType, error) {
	if len(buf) < 1 {
		return 0, ErrTruncated
	}
	return model.EntryType(buf[0]), nil
}

// EncodeObject serializes an OBJECT entry, computing its checksum
// over tableId/key/version/timestamp/value.
func EncodeObject(e model.ObjectEntry) []byte {
	buf := make([]byte, objectHeaderLen+len(e.Key)+len(e.Value))
	buf[0] = byte(model.EntryTypeObject)
	binary.LittleEndian.PutUint64(buf[1:9], e.TableID)
	binary.LittleEndian.PutUint16(buf[9:11], uint16(len(e.Key)))
	binary.LittleEndian.PutUint64(buf[11:19], uint64(e.Version))
	binary.LittleEndian.PutUint32(buf[19:23], e.Timestamp)
	n := copy(buf[objectHeaderLen:], e.Key)
	copy(buf[objectHeaderLen+n:], e.Value)
	checksum := util.ComputeChecksum(checksumSpan(buf, 23))
	binary.LittleEndian.PutUint32(buf[23:27], checksum)
	return buf
}

// checksumSpan returns everything except the checksum field itself,
// i.e. the header up to skipOffset concatenated with the payload
// after the (4-byte) checksum field.
func checksumSpan(buf []byte, skipOffset int) []byte {
	out := make([]byte, 0, len(buf)-4)
	out = append(out, buf[:skipOffset]...)
	out = append(out, buf[skipOffset+4:]...)
	return out
}

// DecodeObject parses and checksum-verifies an OBJECT record.
func DecodeObject(buf []byte) (model.ObjectEntry, bool, error) {
	if len(buf) < objectHeaderLen {
		return model.ObjectEntry{}, false, ErrTruncated
	}
	if model.EntryType(buf[0]) != model.EntryTypeObject {
		return model.ObjectEntry{}, false, fmt.Errorf("logentry: not an OBJECT record")
	}
	tableID := binary.LittleEndian.Uint64(buf[1:9])
	keyLen := binary.LittleEndian.Uint16(buf[9:11])
	version := binary.LittleEndian.Uint64(buf[11:19])
	timestamp := binary.LittleEndian.Uint32(buf[19:23])
	checksum := binary.LittleEndian.Uint32(buf[23:27])
	if len(buf) < objectHeaderLen+int(keyLen) {
		return model.ObjectEntry{}, false, ErrTruncated
	}
	key := buf[objectHeaderLen : objectHeaderLen+int(keyLen)]
	value := buf[objectHeaderLen+int(keyLen):]

	e := model.ObjectEntry{
		TableID:   tableID,
		Key:       append([]byte(nil), key...),
		Version:   model.Version(version),
		Timestamp: timestamp,
		Value:     append([]byte(nil), value...),
		Checksum:  checksum,
	}
	ok := util.ValidateChecksum(checksumSpan(buf, 23), checksum)
	return e, ok, nil
}

// EncodeTombstone serializes a TOMBSTONE entry.
func EncodeTombstone(e model.TombstoneEntry) []byte {
	buf := make([]byte, tombstoneHeaderLen+len(e.Key))
	buf[0] = byte(model.EntryTypeTombstone)
	binary.LittleEndian.PutUint64(buf[1:9], e.TableID)
	binary.LittleEndian.PutUint16(buf[9:11], uint16(len(e.Key)))
	binary.LittleEndian.PutUint64(buf[11:19], uint64(e.Version))
	binary.LittleEndian.PutUint64(buf[19:27], e.SegmentIDOfDeletedObject)
	binary.LittleEndian.PutUint32(buf[27:31], e.Timestamp)
	copy(buf[tombstoneHeaderLen:], e.Key)
	checksum := util.ComputeChecksum(checksumSpan(buf, 31))
	binary.LittleEndian.PutUint32(buf[31:35], checksum)
	return buf
}

// DecodeTombstone parses and checksum-verifies a TOMBSTONE record.
func DecodeTombstone(buf []byte) (model.TombstoneEntry, bool, error) {
	if len(buf) < tombstoneHeaderLen {
		return model.TombstoneEntry{}, false, ErrTruncated
	}
	if model.EntryType(buf[0]) != model.EntryTypeTombstone {
		return model.TombstoneEntry{}, false, fmt.Errorf("logentry: not a TOMBSTONE record")
	}
	tableID := binary.LittleEndian.Uint64(buf[1:9])
	keyLen := binary.LittleEndian.Uint16(buf[9:11])
	version := binary.LittleEndian.Uint64(buf[11:19])
	segmentID := binary.LittleEndian.Uint64(buf[19:27])
	timestamp := binary.LittleEndian.Uint32(buf[27:31])
	checksum := binary.LittleEndian.Uint32(buf[31:35])
	if len(buf) < tombstoneHeaderLen+int(keyLen) {
		return model.TombstoneEntry{}, false, ErrTruncated
	}
	key := buf[tombstoneHeaderLen : tombstoneHeaderLen+int(keyLen)]

	e := model.TombstoneEntry{
		TableID:                  tableID,
		Key:                       append([]byte(nil), key...),
		Version:                   model.Version(version),
		SegmentIDOfDeletedObject: segmentID,
		Timestamp:                 timestamp,
		Checksum:                  checksum,
	}
	ok := util.ValidateChecksum(checksumSpan(buf, 31), checksum)
	return e, ok, nil
}

// EncodeSafeVersion serializes a SAFEVERSION marker.
func EncodeSafeVersion(e model.SafeVersionEntry) []byte {
	buf := make([]byte, safeVersionLen)
	buf[0] = byte(model.EntryTypeSafeVersion)
	binary.LittleEndian.PutUint64(buf[1:9], uint64(e.SafeVersion))
	checksum := util.ComputeChecksum(checksumSpan(buf, 9))
	binary.LittleEndian.PutUint32(buf[9:13], checksum)
	return buf
}

// DecodeSafeVersion parses and checksum-verifies a SAFEVERSION marker.
func DecodeSafeVersion(buf []byte) (model.SafeVersionEntry, bool, error) {
	if len(buf) < safeVersionLen {
		return model.SafeVersionEntry{}, false, ErrTruncated
	}
	if model.EntryType(buf[0]) != model.EntryTypeSafeVersion {
		return model.SafeVersionEntry{}, false, fmt.Errorf("logentry: not a SAFEVERSION record")
	}
	safeVersion := binary.LittleEndian.Uint64(buf[1:9])
	checksum := binary.LittleEndian.Uint32(buf[9:13])
	e := model.SafeVersionEntry{SafeVersion: model.Version(safeVersion), Checksum: checksum}
	ok := util.ValidateChecksum(checksumSpan(buf, 9), checksum)
	return e, ok, nil
}

// DecodeKey extracts just the (tableId, key) pair from an OBJECT or
// TOMBSTONE record without copying the value payload — used by
// liveness checks that only need the key.
func DecodeKey(buf []byte) (model.Key, error) {
	if len(buf) < 1 {
		return model.Key{}, ErrTruncated
	}
	switch model.EntryType(buf[0]) {
	case model.EntryTypeObject:
		if len(buf) < objectHeaderLen {
			return model.Key{}, ErrTruncated
		}
		tableID := binary.LittleEndian.Uint64(buf[1:9])
		keyLen := binary.LittleEndian.Uint16(buf[9:11])
		if len(buf) < objectHeaderLen+int(keyLen) {
			return model.Key{}, ErrTruncated
		}
		key := buf[objectHeaderLen : objectHeaderLen+int(keyLen)]
		return model.Key{TableID: tableID, KeyBytes: append([]byte(nil), key...)}, nil
	case model.EntryTypeTombstone:
		if len(buf) < tombstoneHeaderLen {
			return model.Key{}, ErrTruncated
		}
		tableID := binary.LittleEndian.Uint64(buf[1:9])
		keyLen := binary.LittleEndian.Uint16(buf[9:11])
		if len(buf) < tombstoneHeaderLen+int(keyLen) {
			return model.Key{}, ErrTruncated
		}
		key := buf[tombstoneHeaderLen : tombstoneHeaderLen+int(keyLen)]
		return model.Key{TableID: tableID, KeyBytes: append([]byte(nil), key...)}, nil
	default:
		return model.Key{}, fmt.Errorf("logentry: entry type %d has no key", buf[0])
	}
}
