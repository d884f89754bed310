// Package keylock provides a table of mutexes keyed by loan id, so that
// operations on different loans proceed independently while operations on the
// same loan are serialized for their full build-sign-broadcast-commit span.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

type Table struct {
	mu    sync.Mutex
	locks map[uint64]*entry
}

func New() *Table {
	return &Table{locks: make(map[uint64]*entry)}
}

// Lock acquires the exclusive lock for key and returns the matching unlock
// function. Entries are reference counted and removed once unused, so the
// table does not grow with the id space.
func (t *Table) Lock(key uint64) (unlock func()) {
	t.mu.Lock()
	e, ok := t.locks[key]
	if !ok {
		e = &entry{}
		t.locks[key] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		t.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(t.locks, key)
		}
		t.mu.Unlock()
	}
}
