package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"
)

// Replay re-issues an authenticated request with the given access token.
type Replay func(ctx context.Context, accessToken string) (*http.Response, error)

type replayResult struct {
	resp *http.Response
	err  error
}

type queueEntry struct {
	ctx    context.Context
	replay Replay
	done   chan replayResult // buffered, receives exactly one result
}

func (e *queueEntry) settle(resp *http.Response, err error) {
	e.done <- replayResult{resp: resp, err: err}
}

// Gate holds authenticated requests back while a refresh is in flight and replays or rejects
// them, in arrival order, once the refresh settles.
type Gate struct {
	mu         sync.Mutex
	refreshing bool
	queue      []*queueEntry
}

// NewGate creates an open Gate.
func NewGate() *Gate {
	return &Gate{}
}

// Begin closes the gate: requests arriving from now on are queued.
func (g *Gate) Begin() {
	g.mu.Lock()
	g.refreshing = true
	g.mu.Unlock()
}

// Refreshing reports whether requests are currently being queued.
func (g *Gate) Refreshing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refreshing
}

// Pending returns the number of queued requests.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}

// Do runs replay with currentToken when the gate is open. Otherwise it queues the request and
// waits until the refresh settles or ctx is done.
func (g *Gate) Do(ctx context.Context, currentToken func() string, replay Replay) (*http.Response, error) {
	if entry := g.enqueue(ctx, replay); entry != nil {
		return entry.wait(ctx)
	}
	return replay(ctx, currentToken())
}

// enqueue queues replay while a refresh is in flight and returns nil when the gate is open.
func (g *Gate) enqueue(ctx context.Context, replay Replay) *queueEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.refreshing {
		return nil
	}
	entry := &queueEntry{ctx: ctx, replay: replay, done: make(chan replayResult, 1)}
	g.queue = append(g.queue, entry)
	return entry
}

func (e *queueEntry) wait(ctx context.Context) (*http.Response, error) {
	select {
	case res := <-e.done:
		return res.resp, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resolve opens the gate and replays every queued request with token, in FIFO order.
// The replays run one after another on a separate goroutine, so the caller is never blocked
// by them but a slow replay delays the ones queued behind it.
func (g *Gate) Resolve(token string) {
	entries := g.open()
	if len(entries) == 0 {
		return
	}
	log.Debug().Int("requests", len(entries)).Msg("Replaying queued requests")
	go func() {
		for _, e := range entries {
			if err := e.ctx.Err(); err != nil {
				e.settle(nil, err)
				continue
			}
			resp, err := e.replay(e.ctx, token)
			e.settle(resp, err)
		}
	}()
}

// Reject opens the gate and fails every queued request with cause, without replaying it.
func (g *Gate) Reject(cause error) {
	entries := g.open()
	if len(entries) == 0 {
		return
	}
	log.Debug().Err(cause).Int("requests", len(entries)).Msg("Rejecting queued requests")
	err := fmt.Errorf("%w: %w", ErrAuthentication, cause)
	for _, e := range entries {
		e.settle(nil, err)
	}
}

// open swaps out the current queue so later requests belong to the next refresh.
func (g *Gate) open() []*queueEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	entries := g.queue
	g.queue = nil
	g.refreshing = false
	return entries
}
