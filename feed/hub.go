package feed

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/habedi/tokenflow/auth"
)

// Hub connects endpoints living in one process. A change published by one endpoint is
// delivered synchronously to every other endpoint, never to the publisher itself.
type Hub struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{endpoints: make(map[string]*Endpoint)}
}

// Endpoint attaches a new execution context to the hub.
func (h *Hub) Endpoint() *Endpoint {
	e := &Endpoint{hub: h, id: uuid.NewString()}
	h.mu.Lock()
	h.endpoints[e.id] = e
	h.mu.Unlock()
	return e
}

func (h *Hub) broadcast(from string, c auth.Change) {
	h.mu.RLock()
	targets := make([]*Endpoint, 0, len(h.endpoints))
	for id, e := range h.endpoints {
		if id != from {
			targets = append(targets, e)
		}
	}
	h.mu.RUnlock()

	for _, e := range targets {
		e.listeners.dispatch(c)
	}
}

// Endpoint is one execution context's view of a Hub. It implements auth.ChangeFeed.
type Endpoint struct {
	hub       *Hub
	id        string
	listeners listeners
}

// ID returns the origin identifier stamped on changes published through e.
func (e *Endpoint) ID() string { return e.id }

func (e *Endpoint) Subscribe(key string, fn func(auth.Change)) (unsubscribe func()) {
	return e.listeners.add(key, fn)
}

func (e *Endpoint) Publish(_ context.Context, c auth.Change) error {
	c.Origin = e.id
	e.hub.broadcast(e.id, c)
	return nil
}

// Close detaches e from its hub.
func (e *Endpoint) Close() {
	e.hub.mu.Lock()
	delete(e.hub.endpoints, e.id)
	e.hub.mu.Unlock()
}
