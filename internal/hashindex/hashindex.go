// Package hashindex implements the key -> log-reference hash index:
// a sharded bucket array, one shard per lock-table stripe, each
// bucket holding the colliding candidates for that stripe.
package hashindex

import (
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"github.com/devrev/pairdb/objectmanager/internal/model"
)

// HashKey computes the 64-bit bucket hash for a key: SHA-256 of
// tableId||keyBytes, truncated to the first 8 bytes big-endian. This
// mirrors the hashing scheme the coordinator's consistent-hash ring
// uses for ring placement, reused here for bucket placement.
func HashKey(key model.Key) uint64 {
	h := sha256.New()
	var tbl [8]byte
	binary.BigEndian.PutUint64(tbl[:], key.TableID)
	h.Write(tbl[:])
	h.Write(key.KeyBytes)
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}

type candidate struct {
	key model.Key
	ref model.LogReference
}

// Cursor names one candidate within a bucket: the caller must fetch
// the candidate's reference, decode the log entry it points to, and
// compare the full key before acting on it. ReplaceAt/RemoveAt
// re-resolve the cursor's key within the bucket rather than trusting
// a raw slot index, so a cursor stays valid even if another
// candidate in the same bucket was removed since the cursor was
// issued (the swap-with-last removal scheme reorders slots).
type Cursor struct {
	bucket int
	key    model.Key
	valid  bool
}

// Valid reports whether the cursor names a real candidate.
func (c Cursor) Valid() bool {
	return c.valid
}

// HashIndex shards its buckets 1:1 with the lock table's stripes.
// Callers are expected to hold the corresponding bucket lock for the
// whole duration of any Lookup/Insert/ReplaceAt/RemoveAt sequence;
// HashIndex's own mutex only keeps each single call consistent and
// does not make a sequence of calls atomic.
type HashIndex struct {
	mu      sync.RWMutex // held by every individual call that reads or mutates buckets
	buckets [][]candidate
}

// New builds a hash index with the given bucket count, matching the
// lock table's BucketCount so each stripe maps 1:1 to one bucket.
func New(bucketCount int) *HashIndex {
	return &HashIndex{buckets: make([][]candidate, bucketCount)}
}

// BucketCount returns the number of buckets.
func (h *HashIndex) BucketCount() int {
	return len(h.buckets)
}

func (h *HashIndex) bucketFor(key model.Key, bucketCount uint64) int {
	return int(HashKey(key) % bucketCount)
}

// Lookup returns a cursor to the key's candidate, if present.
func (h *HashIndex) Lookup(key model.Key) (model.LogReference, Cursor, bool) {
	b := h.bucketFor(key, uint64(len(h.buckets)))
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.buckets[b] {
		if c.key.Equal(key) {
			return c.ref, Cursor{bucket: b, key: key, valid: true}, true
		}
	}
	return model.LogReference{}, Cursor{bucket: b, valid: false}, false
}

// Insert adds a new key -> reference mapping. The caller must have
// already confirmed (via Lookup) that the key is absent.
func (h *HashIndex) Insert(key model.Key, ref model.LogReference) Cursor {
	b := h.bucketFor(key, uint64(len(h.buckets)))
	h.mu.Lock()
	defer h.mu.Unlock()
	h.buckets[b] = append(h.buckets[b], candidate{key: key, ref: ref})
	return Cursor{bucket: b, key: key, valid: true}
}

func (h *HashIndex) slotFor(cur Cursor) int {
	for i, c := range h.buckets[cur.bucket] {
		if c.key.Equal(cur.key) {
			return i
		}
	}
	return -1
}

// ReplaceAt overwrites the reference for a cursor's key in place.
func (h *HashIndex) ReplaceAt(cur Cursor, ref model.LogReference) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if i := h.slotFor(cur); i >= 0 {
		h.buckets[cur.bucket][i].ref = ref
	}
}

// RemoveAt deletes the candidate named by a cursor (swap-with-last).
func (h *HashIndex) RemoveAt(cur Cursor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	i := h.slotFor(cur)
	if i < 0 {
		return
	}
	bucket := h.buckets[cur.bucket]
	last := len(bucket) - 1
	bucket[i] = bucket[last]
	h.buckets[cur.bucket] = bucket[:last]
}

// ForEachInBucket invokes fn for every candidate in a bucket, as of
// a point-in-time snapshot. fn may call RemoveAt/ReplaceAt on the
// cursor it's handed; because cursors resolve by key rather than
// slot index, removals earlier in the same sweep never invalidate
// cursors still to be visited.
func (h *HashIndex) ForEachInBucket(bucketIdx int, fn func(key model.Key, ref model.LogReference, cur Cursor)) {
	h.mu.RLock()
	bucket := append([]candidate(nil), h.buckets[bucketIdx]...)
	h.mu.RUnlock()
	for _, c := range bucket {
		fn(c.key, c.ref, Cursor{bucket: bucketIdx, key: c.key, valid: true})
	}
}

// PrefetchBucket is a documented no-op: Go has no portable
// cache-line prefetch primitive, so this is purely advisory exactly
// as the interface promises.
func (h *HashIndex) PrefetchBucket(key model.Key) {}
