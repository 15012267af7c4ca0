package readcache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devrev/pairdb/objectmanager/internal/model"
)

func TestPutGetEvict(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)

	key := model.Key{TableID: 1, KeyBytes: []byte("a")}
	_, ok := c.Get(key)
	require.False(t, ok)

	c.Put(key, []byte("v1"), 1)
	e, ok := c.Get(key)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), e.Value)
	require.Equal(t, model.Version(1), e.Version)

	c.Evict(key)
	_, ok = c.Get(key)
	require.False(t, ok)
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)

	k1 := model.Key{TableID: 1, KeyBytes: []byte("a")}
	k2 := model.Key{TableID: 1, KeyBytes: []byte("b")}

	c.Put(k1, []byte("v1"), 1)
	c.Put(k2, []byte("v2"), 1)

	_, ok := c.Get(k1)
	require.False(t, ok, "k1 should have been evicted once capacity was exceeded")
	_, ok = c.Get(k2)
	require.True(t, ok)
}
