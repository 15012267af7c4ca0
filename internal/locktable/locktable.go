// Package locktable implements the bucket lock table: a fixed-size
// striped array of mutexes selected by hash(key) mod N, guarding
// read-modify-write access to the hash index.
package locktable

import (
	"sync"

	"github.com/devrev/pairdb/objectmanager/internal/model"
)

// KeyHasher computes the 64-bit bucket hash for a key. Lives as a
// function value rather than a hard dependency on one hash family so
// hashindex and locktable always agree on bucket assignment.
type KeyHasher func(key model.Key) uint64

// BucketLockTable is a fixed power-of-two array of mutexes. Locks are
// not reentrant; callers must not hold one across a blocking log
// append and then reacquire it.
type BucketLockTable struct {
	mu     []sync.Mutex
	n      uint64
	hasher KeyHasher
}

// New builds a lock table with size buckets (rounded up to the next
// power of two) and the given key hasher.
func New(size int, hasher KeyHasher) *BucketLockTable {
	n := nextPowerOfTwo(size)
	return &BucketLockTable{
		mu:     make([]sync.Mutex, n),
		n:      uint64(n),
		hasher: hasher,
	}
}

func nextPowerOfTwo(n int) int {
	if n < 1 {
		n = 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// BucketCount returns the number of stripes.
func (t *BucketLockTable) BucketCount() int {
	return int(t.n)
}

// StripeFor computes the bucket index a key maps to.
func (t *BucketLockTable) StripeFor(key model.Key) int {
	return int(t.hasher(key) % t.n)
}

// Guard is a scoped lock acquisition; Unlock is idempotent and safe
// to call via defer on every exit path, including early returns.
type Guard struct {
	mu       *sync.Mutex
	unlocked bool
}

// Unlock releases the underlying mutex. Calling it more than once is
// a no-op, so callers can both defer it and call it explicitly on a
// fast path without double-unlocking.
func (g *Guard) Unlock() {
	if g.unlocked {
		return
	}
	g.unlocked = true
	g.mu.Unlock()
}

// LockBucket acquires the stripe lock for a bucket index directly —
// used by sweepers (TombstoneReaper, OrphanReaper) that iterate
// bucket-by-bucket rather than key-by-key.
func (t *BucketLockTable) LockBucket(idx int) *Guard {
	m := &t.mu[idx]
	m.Lock()
	return &Guard{mu: m}
}

// LockKey acquires the stripe lock covering a key.
func (t *BucketLockTable) LockKey(key model.Key) *Guard {
	return t.LockBucket(t.StripeFor(key))
}
