package tabletregistry

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/devrev/pairdb/objectmanager/internal/model"
)

func TestGetSetTablet(t *testing.T) {
	r, err := New(Config{}, "node-1", zap.NewNop())
	require.NoError(t, err)

	_, ok := r.GetTablet(1)
	require.False(t, ok)

	r.SetTablet(1, model.TabletNormal)
	state, ok := r.GetTablet(1)
	require.True(t, ok)
	require.Equal(t, model.TabletNormal, state)

	r.SetTablet(1, model.TabletNotOwned)
	_, ok = r.GetTablet(1)
	require.False(t, ok)
}

func TestMergeRemotePrefersNewer(t *testing.T) {
	r, err := New(Config{}, "node-1", zap.NewNop())
	require.NoError(t, err)

	r.mergeRemote(snapshot{Tablets: []tabletState{{TableID: 5, State: model.TabletRecovering, UpdatedAt: 10}}})
	state, ok := r.GetTablet(5)
	require.True(t, ok)
	require.Equal(t, model.TabletRecovering, state)

	r.mergeRemote(snapshot{Tablets: []tabletState{{TableID: 5, State: model.TabletNormal, UpdatedAt: 5}}})
	state, _ = r.GetTablet(5)
	require.Equal(t, model.TabletRecovering, state, "stale update must not override newer local state")
}
