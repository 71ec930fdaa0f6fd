// Package keymutex provides striped per-key locking so requests for the same
// identity (or session) serialize without a global lock.
package keymutex

import (
	"hash/fnv"
	"sync"
)

// KeyMutex maps arbitrary string keys onto a fixed set of mutex stripes.
// Two calls with the same key always contend; calls with different keys
// contend only on a stripe collision, which is acceptable for short
// read-check-write critical sections.
type KeyMutex struct {
	stripes []sync.Mutex
}

// New creates a KeyMutex with the given number of stripes (rounded up to 1).
func New(stripes int) *KeyMutex {
	if stripes < 1 {
		stripes = 1
	}
	return &KeyMutex{stripes: make([]sync.Mutex, stripes)}
}

// Lock acquires the stripe owning key and returns its unlock function.
func (m *KeyMutex) Lock(key string) func() {
	mu := &m.stripes[m.index(key)]
	mu.Lock()
	return mu.Unlock
}

func (m *KeyMutex) index(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(m.stripes)))
}
