// Package versionalloc issues monotonic per-store version numbers
// and tracks the safeVersion floor using a lock-free atomic counter.
package versionalloc

import (
	"sync/atomic"

	"github.com/devrev/pairdb/objectmanager/internal/model"
)

// Allocator maintains safeVersion, initialized to 1.
type Allocator struct {
	safeVersion atomic.Uint64
}

// New builds an allocator with safeVersion starting at 1.
func New() *Allocator {
	a := &Allocator{}
	a.safeVersion.Store(1)
	return a
}

// Allocate returns the current safeVersion then increments it.
func (a *Allocator) Allocate() model.Version {
	return model.Version(a.safeVersion.Add(1) - 1)
}

// Raise sets safeVersion = v if v > safeVersion, returning whether it
// did. Safe for concurrent callers racing to raise the floor.
func (a *Allocator) Raise(v model.Version) bool {
	for {
		cur := a.safeVersion.Load()
		if uint64(v) <= cur {
			return false
		}
		if a.safeVersion.CompareAndSwap(cur, uint64(v)) {
			return true
		}
	}
}

// SafeVersion returns the current floor.
func (a *Allocator) SafeVersion() model.Version {
	return model.Version(a.safeVersion.Load())
}
