package auth

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// ChangeFunc receives the current access token, or "" once the tokens are cleared.
type ChangeFunc func(token string)

type subscriber struct {
	id int
	fn ChangeFunc
}

// Notifier publishes token-state transitions to local subscribers and turns storage changes
// coming from other execution contexts into local notifications.
type Notifier struct {
	mu     sync.Mutex
	nextID int
	subs   []subscriber
	last   string
}

// NewNotifier creates an empty Notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// OnTokenChange registers fn and returns a function that removes it again.
func (n *Notifier) OnTokenChange(fn ChangeFunc) (unsubscribe func()) {
	n.mu.Lock()
	n.nextID++
	id := n.nextID
	n.subs = append(n.subs, subscriber{id: id, fn: fn})
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			for i, s := range n.subs {
				if s.id == id {
					n.subs = append(n.subs[:i:i], n.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Notify calls every subscriber in subscription order. A panicking subscriber is logged and
// does not prevent the remaining ones from running.
func (n *Notifier) Notify(token string) {
	n.mu.Lock()
	n.last = token
	subs := make([]subscriber, len(n.subs))
	copy(subs, n.subs)
	n.mu.Unlock()

	for _, s := range subs {
		n.call(s, token)
	}
}

// Last returns the token most recently announced to subscribers.
func (n *Notifier) Last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

func (n *Notifier) call(s subscriber, token string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Int("subscriber", s.id).Msg("Token change subscriber failed")
		}
	}()
	s.fn(token)
}

// Watch listens for metadata changes made by other execution contexts sharing the storage.
// A removal is reported as a cleared token; an update re-reads the token through read.
func (n *Notifier) Watch(feed ChangeFeed, read func() string) (stop func()) {
	if feed == nil {
		return func() {}
	}
	n.mu.Lock()
	n.last = read()
	n.mu.Unlock()

	handler := func(c Change) {
		token := ""
		if !c.Removed {
			token = read()
		}
		// One logical change touches both keys; report each token once.
		if token == n.Last() {
			return
		}

		log.Debug().Str("key", c.Key).Str("origin", c.Origin).Bool("removed", c.Removed).
			Msg("Token changed in another context")
		n.Notify(token)
	}

	stopAccess := feed.Subscribe(AccessMetadataKey, handler)
	stopRefresh := feed.Subscribe(RefreshMetadataKey, handler)
	return func() {
		stopAccess()
		stopRefresh()
	}
}
