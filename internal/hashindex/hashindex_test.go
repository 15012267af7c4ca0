package hashindex

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devrev/pairdb/objectmanager/internal/model"
)

func k(s string) model.Key {
	return model.Key{TableID: 1, KeyBytes: []byte(s)}
}

func TestInsertLookupReplaceRemove(t *testing.T) {
	h := New(16)
	ref := model.LogReference{SegmentID: 1, Offset: 10, Length: 5}

	_, _, found := h.Lookup(k("a"))
	require.False(t, found)

	cur := h.Insert(k("a"), ref)
	gotRef, _, found := h.Lookup(k("a"))
	require.True(t, found)
	require.Equal(t, ref, gotRef)

	newRef := model.LogReference{SegmentID: 2, Offset: 20, Length: 8}
	h.ReplaceAt(cur, newRef)
	gotRef, _, found = h.Lookup(k("a"))
	require.True(t, found)
	require.Equal(t, newRef, gotRef)

	h.RemoveAt(cur)
	_, _, found = h.Lookup(k("a"))
	require.False(t, found)
}

func TestForEachInBucketSurvivesRemoval(t *testing.T) {
	h := New(1) // force all keys into bucket 0
	h.Insert(k("a"), model.LogReference{SegmentID: 1})
	h.Insert(k("b"), model.LogReference{SegmentID: 2})
	h.Insert(k("c"), model.LogReference{SegmentID: 3})

	var visited []string
	h.ForEachInBucket(0, func(key model.Key, ref model.LogReference, cur Cursor) {
		visited = append(visited, string(key.KeyBytes))
		if string(key.KeyBytes) == "a" || string(key.KeyBytes) == "b" {
			h.RemoveAt(cur)
		}
	})
	require.ElementsMatch(t, []string{"a", "b", "c"}, visited)

	_, _, found := h.Lookup(k("c"))
	require.True(t, found)
	_, _, found = h.Lookup(k("a"))
	require.False(t, found)
}

func TestKeyEqualityByteExact(t *testing.T) {
	require.True(t, model.Key{TableID: 1, KeyBytes: []byte("x")}.Equal(model.Key{TableID: 1, KeyBytes: []byte("x")}))
	require.False(t, model.Key{TableID: 1, KeyBytes: []byte("x")}.Equal(model.Key{TableID: 2, KeyBytes: []byte("x")}))
}
