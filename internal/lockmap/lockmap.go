// Package lockmap provides a mutex per string key. Holders of different keys
// never block each other; entries are dropped once nobody holds or waits
// on them.
package lockmap

import (
	"context"
	"sync"
)

type entry struct {
	ch   chan struct{} // 1-buffered; a token in the channel means "held"
	refs int
}

// Map hands out per-key locks. The zero value is ready to use.
type Map struct {
	mu    sync.Mutex
	locks map[string]*entry
}

func (m *Map) acquireEntry(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks == nil {
		m.locks = make(map[string]*entry)
	}
	e, ok := m.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		m.locks[key] = e
	}
	e.refs++
	return e
}

func (m *Map) releaseEntry(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
}

// Lock blocks until key is held by the caller or ctx is done. On success it
// returns the unlock function.
func (m *Map) Lock(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e := m.acquireEntry(key)
	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		m.releaseEntry(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			m.releaseEntry(key, e)
		})
	}, nil
}

// Len reports how many keys are currently held or waited on.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
