package objectmanager

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/devrev/pairdb/objectmanager/internal/logentry"
	"github.com/devrev/pairdb/objectmanager/internal/model"
	"github.com/devrev/pairdb/objectmanager/internal/objectlog"
)

// sliceIterator replays a fixed, caller-ordered slice of encoded
// records — used to construct literal out-of-order replay scenarios.
type sliceIterator struct {
	records [][]byte
	pos     int
}

func (s *sliceIterator) Next() ([]byte, bool) {
	if s.pos >= len(s.records) {
		return nil, false
	}
	r := s.records[s.pos]
	s.pos++
	return r, true
}

// S5: after delete, a replayed OBJECT at the tombstone's own version
// is discarded because minSuccessor for a tombstone-occupied slot is
// objectVersion (not +1) only from the tombstone's own replay path;
// here the live index already holds the steady-state tombstone
// residue from Remove, so a replayed OBJECT at that exact version is
// still stale relative to what replay's OBJECT rule demands
// (tombstone.version + 1).
func TestScenarioS5(t *testing.T) {
	om, _ := newTestManager(t)
	om.Write(key("a"), []byte("1"), model.RejectRules{})
	om.Write(key("a"), []byte("2"), model.RejectRules{}) // now at version 2
	om.Remove(key("a"), model.RejectRules{})             // tombstone recorded at version 2

	sideLog, err := objectlog.Open(t.TempDir(), objectlog.Config{}, zap.NewNop())
	require.NoError(t, err)
	defer sideLog.Close()

	oldObject := logentry.EncodeObject(model.ObjectEntry{TableID: testTable, Key: []byte("a"), Version: 2, Value: []byte("old")})
	iter := &sliceIterator{records: [][]byte{oldObject}}
	require.NoError(t, om.ReplaySegment(sideLog, iter))

	status, _, _ := om.Read(key("a"), model.RejectRules{})
	require.Equal(t, model.StatusObjectDoesntExist, status, "stale replayed object must not resurrect a deleted key")
}

// S6: out-of-order replay keeps only the highest-versioned surviving
// entry.
func TestScenarioS6(t *testing.T) {
	om, _ := newTestManager(t)
	setTabletRecovering(t, om, testTable)

	sideLog, err := objectlog.Open(t.TempDir(), objectlog.Config{}, zap.NewNop())
	require.NoError(t, err)
	defer sideLog.Close()

	objV5 := logentry.EncodeObject(model.ObjectEntry{TableID: testTable, Key: []byte("k"), Version: 5, Value: []byte("v5")})
	objV3 := logentry.EncodeObject(model.ObjectEntry{TableID: testTable, Key: []byte("k"), Version: 3, Value: []byte("v3")})
	tombV4 := logentry.EncodeTombstone(model.TombstoneEntry{TableID: testTable, Key: []byte("k"), Version: 4})

	iter := &sliceIterator{records: [][]byte{objV5, objV3, tombV4}}
	require.NoError(t, om.ReplaySegment(sideLog, iter))

	ref, _, found := om.index.Lookup(key("k"))
	require.True(t, found)
	buf, err := sideLog.GetEntry(ref)
	require.NoError(t, err)
	typ, err := logentry.PeekType(buf)
	require.NoError(t, err)
	require.Equal(t, model.EntryTypeObject, typ)
	obj, _, err := logentry.DecodeObject(buf)
	require.NoError(t, err)
	require.Equal(t, model.Version(5), obj.Version)
}

func TestReplaySafeVersionRaisesFloor(t *testing.T) {
	om, _ := newTestManager(t)
	sideLog, err := objectlog.Open(t.TempDir(), objectlog.Config{}, zap.NewNop())
	require.NoError(t, err)
	defer sideLog.Close()

	rec := logentry.EncodeSafeVersion(model.SafeVersionEntry{SafeVersion: 1000})
	iter := &sliceIterator{records: [][]byte{rec}}
	require.NoError(t, om.ReplaySegment(sideLog, iter))

	require.Equal(t, model.Version(1000), om.SafeVersion())
}

func TestReplayStrictChecksumsAborts(t *testing.T) {
	om, _ := newTestManager(t)
	om.cfg.StrictChecksums = true

	sideLog, err := objectlog.Open(t.TempDir(), objectlog.Config{}, zap.NewNop())
	require.NoError(t, err)
	defer sideLog.Close()

	rec := logentry.EncodeObject(model.ObjectEntry{TableID: testTable, Key: []byte("k"), Version: 1, Value: []byte("v")})
	rec[len(rec)-1] ^= 0xFF // corrupt the value so the stored checksum no longer matches

	iter := &sliceIterator{records: [][]byte{rec}}
	require.Error(t, om.ReplaySegment(sideLog, iter))
}

func setTabletRecovering(t *testing.T, om *ObjectManager, tableID uint64) {
	t.Helper()
	type setter interface {
		SetTablet(uint64, model.TabletState)
	}
	s, ok := om.tablets.(setter)
	require.True(t, ok)
	s.SetTablet(tableID, model.TabletRecovering)
}
