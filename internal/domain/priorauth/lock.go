package priorauth

import (
	"sync"

	"github.com/google/uuid"
)

// requestLocks serializes state machine operations per request. Two
// concurrent transitions on the same request run one at a time; unrelated
// requests never contend.
type requestLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func newRequestLocks() *requestLocks {
	return &requestLocks{locks: make(map[uuid.UUID]*entry)}
}

func (l *requestLocks) lock(id uuid.UUID) {
	l.mu.Lock()
	e, ok := l.locks[id]
	if !ok {
		e = &entry{}
		l.locks[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
}

func (l *requestLocks) unlock(id uuid.UUID) {
	l.mu.Lock()
	e := l.locks[id]
	e.refs--
	if e.refs == 0 {
		delete(l.locks, id)
	}
	l.mu.Unlock()

	e.mu.Unlock()
}
