package util

import "sync"

// KeyedMutex serializes work per string key. At most one holder per
// key; entries are dropped when the last waiter releases.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		locks: make(map[string]*keyLock),
	}
}

func (km *KeyedMutex) get(key string) *keyLock {
	km.mu.Lock()
	defer km.mu.Unlock()
	kl, ok := km.locks[key]
	if !ok {
		kl = &keyLock{}
		km.locks[key] = kl
	}
	kl.refs++
	return kl
}

func (km *KeyedMutex) put(key string, kl *keyLock) {
	km.mu.Lock()
	defer km.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(km.locks, key)
	}
}

// Lock blocks until the key is acquired. The returned func releases it.
func (km *KeyedMutex) Lock(key string) func() {
	kl := km.get(key)
	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		km.put(key, kl)
	}
}

// TryLock acquires the key without blocking. The release func is nil
// when the key is already held.
func (km *KeyedMutex) TryLock(key string) (func(), bool) {
	kl := km.get(key)
	if !kl.mu.TryLock() {
		km.put(key, kl)
		return nil, false
	}
	return func() {
		kl.mu.Unlock()
		km.put(key, kl)
	}, true
}
