package application

import (
	"sort"
	"sync"
)

// keyedMutex serializes critical sections per string key. The booking service
// holds the requester key and the department-week key across its
// "check admissibility, then persist" window, closing the race where two
// concurrent callers both observe a free slot or remaining quota.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock acquires every key in sorted order (a stable order prevents deadlock
// between callers holding overlapping key sets) and returns the release
// function.
func (k *keyedMutex) Lock(keys ...string) func() {
	unique := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, key)
	}
	sort.Strings(unique)

	acquired := make([]*keyedLock, 0, len(unique))
	for _, key := range unique {
		lock := k.acquire(key)
		lock.mu.Lock()
		acquired = append(acquired, lock)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].mu.Unlock()
		}
		for _, key := range unique {
			k.release(key)
		}
	}
}

func (k *keyedMutex) acquire(key string) *keyedLock {
	k.mu.Lock()
	defer k.mu.Unlock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &keyedLock{}
		k.locks[key] = lock
	}
	lock.refs++
	return lock
}

func (k *keyedMutex) release(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	lock, ok := k.locks[key]
	if !ok {
		return
	}
	lock.refs--
	if lock.refs <= 0 {
		delete(k.locks, key)
	}
}
