// Package feed carries token storage changes between execution contexts that share one
// storage backend, the way browser tabs learn about each other's writes through storage events.
package feed

import (
	"sort"
	"sync"

	"github.com/habedi/tokenflow/auth"
)

// listeners is a per-key registry of change callbacks.
type listeners struct {
	mu     sync.Mutex
	nextID int
	byKey  map[string]map[int]func(auth.Change)
}

func (l *listeners) add(key string, fn func(auth.Change)) (remove func()) {
	l.mu.Lock()
	if l.byKey == nil {
		l.byKey = make(map[string]map[int]func(auth.Change))
	}
	if l.byKey[key] == nil {
		l.byKey[key] = make(map[int]func(auth.Change))
	}
	l.nextID++
	id := l.nextID
	l.byKey[key][id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.byKey[key], id)
	}
}

// dispatch calls the callbacks registered for c.Key outside the lock, in registration order.
func (l *listeners) dispatch(c auth.Change) {
	l.mu.Lock()
	registered := l.byKey[c.Key]
	ids := make([]int, 0, len(registered))
	for id := range registered {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(auth.Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, registered[id])
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
