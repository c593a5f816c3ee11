// Package lock provides a per-key mutex used to serialize writes to a single
// user's balance, achievement set, or referral slots. Each component owns its
// own KeyedMutex instance so nested calls across components cannot deadlock.
package lock

import "sync"

// KeyedMutex hands out one mutex per key. Mutexes are created on first use
// and kept for the process lifetime; user IDs are a small, bounded key space.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

// NewKeyedMutex returns an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[uint]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it if needed.
func (k *KeyedMutex) Lock(key uint) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
}

// Unlock releases the mutex for key. The key must have been locked before.
func (k *KeyedMutex) Unlock(key uint) {
	k.mu.Lock()
	m := k.locks[key]
	k.mu.Unlock()
	m.Unlock()
}
