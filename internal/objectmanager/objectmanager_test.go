package objectmanager

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/devrev/pairdb/objectmanager/internal/model"
	"github.com/devrev/pairdb/objectmanager/internal/objectlog"
	"github.com/devrev/pairdb/objectmanager/internal/tabletregistry"
)

const testTable = 7

func newTestManager(t *testing.T) (*ObjectManager, *tabletregistry.Registry) {
	t.Helper()
	log, err := objectlog.Open(t.TempDir(), objectlog.Config{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	tablets, err := tabletregistry.New(tabletregistry.Config{}, "test-node", zap.NewNop())
	require.NoError(t, err)
	tablets.SetTablet(testTable, model.TabletNormal)

	om, err := New(Config{LockTableSize: 16}, log, tablets, nil, zap.NewNop(), nil)
	require.NoError(t, err)
	return om, tablets
}

func key(k string) model.Key {
	return model.Key{TableID: testTable, KeyBytes: []byte(k)}
}

// S1
func TestScenarioS1(t *testing.T) {
	om, _ := newTestManager(t)
	status, version := om.Write(key("a"), []byte("1"), model.RejectRules{})
	require.Equal(t, model.StatusOK, status)
	require.Equal(t, model.Version(1), version)

	status, value, version := om.Read(key("a"), model.RejectRules{})
	require.Equal(t, model.StatusOK, status)
	require.Equal(t, []byte("1"), value)
	require.Equal(t, model.Version(1), version)
}

// S2
func TestScenarioS2(t *testing.T) {
	om, _ := newTestManager(t)
	om.Write(key("a"), []byte("1"), model.RejectRules{})

	status, version := om.Write(key("a"), []byte("2"), model.RejectRules{VersionNeGiven: true, GivenVersion: 9})
	require.Equal(t, model.StatusWrongVersion, status)
	require.Equal(t, model.Version(1), version)
}

// S3
func TestScenarioS3(t *testing.T) {
	om, _ := newTestManager(t)
	om.Write(key("a"), []byte("1"), model.RejectRules{})

	status, version := om.Write(key("a"), []byte("2"), model.RejectRules{})
	require.Equal(t, model.StatusOK, status)
	require.Equal(t, model.Version(2), version)

	status, value, version := om.Read(key("a"), model.RejectRules{})
	require.Equal(t, model.StatusOK, status)
	require.Equal(t, []byte("2"), value)
	require.Equal(t, model.Version(2), version)
}

// S4
func TestScenarioS4(t *testing.T) {
	om, _ := newTestManager(t)
	om.Write(key("a"), []byte("1"), model.RejectRules{})
	om.Write(key("a"), []byte("2"), model.RejectRules{})

	status, _ := om.Remove(key("a"), model.RejectRules{})
	require.Equal(t, model.StatusOK, status)

	status, _, _ = om.Read(key("a"), model.RejectRules{})
	require.Equal(t, model.StatusObjectDoesntExist, status)
}

func TestUnknownTabletRejected(t *testing.T) {
	om, _ := newTestManager(t)
	other := model.Key{TableID: 999, KeyBytes: []byte("x")}

	status, _ := om.Write(other, []byte("v"), model.RejectRules{})
	require.Equal(t, model.StatusUnknownTablet, status)

	status, _, _ = om.Read(other, model.RejectRules{})
	require.Equal(t, model.StatusUnknownTablet, status)
}

func TestWriteVersionsStrictlyIncreasing(t *testing.T) {
	om, _ := newTestManager(t)
	var last model.Version
	for i := 0; i < 5; i++ {
		status, v := om.Write(key("a"), []byte("x"), model.RejectRules{})
		require.Equal(t, model.StatusOK, status)
		require.Greater(t, v, last)
		last = v
	}
}

func TestRemoveThenWriteVersionExceedsPrevious(t *testing.T) {
	om, _ := newTestManager(t)
	_, v1 := om.Write(key("a"), []byte("1"), model.RejectRules{})
	om.Remove(key("a"), model.RejectRules{})
	_, v2 := om.Write(key("a"), []byte("2"), model.RejectRules{})
	require.Greater(t, v2, v1)
}

func TestSafeVersionNondecreasing(t *testing.T) {
	om, _ := newTestManager(t)
	before := om.SafeVersion()
	om.Write(key("a"), []byte("1"), model.RejectRules{})
	om.Remove(key("a"), model.RejectRules{})
	after := om.SafeVersion()
	require.GreaterOrEqual(t, after, before)
}

func TestDoesntExistRule(t *testing.T) {
	om, _ := newTestManager(t)
	status, _ := om.Write(key("a"), []byte("1"), model.RejectRules{})
	require.Equal(t, model.StatusOK, status)

	status, currentVersion := om.Write(key("a"), []byte("2"), model.RejectRules{DoesntExist: true})
	require.Equal(t, model.StatusOK, status, "doesntExist only fires when version == NONEXISTENT")
	_ = currentVersion

	status, _ = om.Write(key("b"), []byte("1"), model.RejectRules{DoesntExist: true})
	require.Equal(t, model.StatusObjectDoesntExist, status, "doesntExist rule fires for a genuinely absent key")
}

func TestExistsRule(t *testing.T) {
	om, _ := newTestManager(t)
	status, _ := om.Write(key("a"), []byte("1"), model.RejectRules{Exists: true})
	require.Equal(t, model.StatusOK, status, "exists rule is irrelevant when key is absent")

	status, _ = om.Write(key("a"), []byte("2"), model.RejectRules{Exists: true})
	require.Equal(t, model.StatusObjectExists, status)
}
