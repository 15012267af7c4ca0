package logentry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devrev/pairdb/objectmanager/internal/model"
)

func TestObjectRoundTrip(t *testing.T) {
	e := model.ObjectEntry{
		TableID:   7,
		Key:       []byte("widget"),
		Version:   3,
		Timestamp: 1000,
		Value:     []byte("payload-bytes"),
	}
	buf := EncodeObject(e)
	decoded, ok, err := DecodeObject(buf)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, e.TableID, decoded.TableID)
	require.Equal(t, e.Key, decoded.Key)
	require.Equal(t, e.Version, decoded.Version)
	require.Equal(t, e.Value, decoded.Value)
}

func TestObjectChecksumCatchesCorruption(t *testing.T) {
	buf := EncodeObject(model.ObjectEntry{TableID: 1, Key: []byte("k"), Version: 1, Value: []byte("v")})
	buf[len(buf)-1] ^= 0xFF
	_, ok, err := DecodeObject(buf)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTombstoneRoundTrip(t *testing.T) {
	e := model.TombstoneEntry{
		TableID:                  7,
		Key:                       []byte("widget"),
		Version:                   4,
		SegmentIDOfDeletedObject: 99,
		Timestamp:                 2000,
	}
	buf := EncodeTombstone(e)
	decoded, ok, err := DecodeTombstone(buf)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, e.SegmentIDOfDeletedObject, decoded.SegmentIDOfDeletedObject)
	require.Equal(t, e.Version, decoded.Version)
}

func TestSafeVersionRoundTrip(t *testing.T) {
	buf := EncodeSafeVersion(model.SafeVersionEntry{SafeVersion: 42})
	decoded, ok, err := DecodeSafeVersion(buf)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, model.Version(42), decoded.SafeVersion)
}

func TestDecodeKeyMatchesFullDecode(t *testing.T) {
	obj := model.ObjectEntry{TableID: 3, Key: []byte("k1"), Version: 1, Value: []byte("v")}
	buf := EncodeObject(obj)
	key, err := DecodeKey(buf)
	require.NoError(t, err)
	require.Equal(t, obj.TableID, key.TableID)
	require.Equal(t, obj.Key, key.KeyBytes)

	tomb := model.TombstoneEntry{TableID: 3, Key: []byte("k1"), Version: 2}
	buf = EncodeTombstone(tomb)
	key, err = DecodeKey(buf)
	require.NoError(t, err)
	require.Equal(t, tomb.TableID, key.TableID)
	require.Equal(t, tomb.Key, key.KeyBytes)
}

func TestPeekType(t *testing.T) {
	buf := EncodeSafeVersion(model.SafeVersionEntry{SafeVersion: 1})
	typ, err := PeekType(buf)
	require.NoError(t, err)
	require.Equal(t, model.EntryTypeSafeVersion, typ)
}
