package auth_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/habedi/tokenflow/auth"
)

// memoryJar is an in-memory auth.SecureStorage that honours cookie expiry.
type memoryJar struct {
	mu      sync.Mutex
	clock   auth.Clock
	values  map[string]string
	options map[string]auth.CookieOptions
	failGet bool
	failSet bool
}

func newMemoryJar(clock auth.Clock) *memoryJar {
	return &memoryJar{clock: clock, values: map[string]string{}, options: map[string]auth.CookieOptions{}}
}

func (j *memoryJar) Get(_ context.Context, name string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failGet {
		return "", errors.New("cookie storage unavailable")
	}
	opts, ok := j.options[name]
	if ok && !opts.Expires.IsZero() && !j.clock.Now().Before(opts.Expires) {
		return "", nil
	}
	return j.values[name], nil
}

func (j *memoryJar) Set(_ context.Context, name, value string, opts auth.CookieOptions) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failSet {
		return errors.New("cookie storage full")
	}
	j.values[name] = value
	j.options[name] = opts
	return nil
}

func (j *memoryJar) Remove(_ context.Context, name string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.values, name)
	delete(j.options, name)
	return nil
}

func (j *memoryJar) cookieOptions(name string) (auth.CookieOptions, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	opts, ok := j.options[name]
	return opts, ok
}

func (j *memoryJar) size() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.values)
}

// memoryItems is an in-memory auth.MetadataStorage.
type memoryItems struct {
	mu    sync.Mutex
	items map[string]string
}

func newMemoryItems() *memoryItems {
	return &memoryItems{items: map[string]string{}}
}

func (m *memoryItems) GetItem(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[key], nil
}

func (m *memoryItems) SetItem(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *memoryItems) RemoveItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *memoryItems) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// fakeClock is a manually advanced auth.Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeTransport is a scripted auth.RefreshTransport. When release is non-nil every call blocks
// until it is closed.
type fakeTransport struct {
	calls   atomic.Int32
	mu      sync.Mutex
	pair    auth.TokenPair
	err     error
	got     []string
	started chan struct{}
	release chan struct{}
}

func (f *fakeTransport) Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.got = append(f.got, refreshToken)
	pair, err, started, release := f.pair, f.err, f.started, f.release
	f.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if release != nil {
		<-release
	}
	return pair, err
}

func (f *fakeTransport) respond(pair auth.TokenPair, err error) {
	f.mu.Lock()
	f.pair, f.err = pair, err
	f.mu.Unlock()
}

func (f *fakeTransport) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.got...)
}

// harness bundles a Manager with the fakes behind it.
type harness struct {
	manager   *auth.Manager
	jar       *memoryJar
	items     *memoryItems
	clock     *fakeClock
	transport *fakeTransport
}

func newHarness(feed auth.ChangeFeed) *harness {
	clock := newFakeClock()
	h := &harness{
		jar:       newMemoryJar(clock),
		items:     newMemoryItems(),
		clock:     clock,
		transport: &fakeTransport{started: make(chan struct{}, 1)},
	}
	h.manager = auth.NewManager(auth.Options{
		Cookies:   h.jar,
		Metadata:  h.items,
		Transport: h.transport,
		Feed:      feed,
		Clock:     clock,
		Config:    auth.DefaultConfig(),
	})
	return h
}

// recordingReplay returns a Replay that records the token it was called with under name.
func recordingReplay(mu *sync.Mutex, order *[]string, tokens map[string]string, name string) auth.Replay {
	return func(ctx context.Context, token string) (*http.Response, error) {
		mu.Lock()
		*order = append(*order, name)
		tokens[name] = token
		mu.Unlock()
		return &http.Response{StatusCode: http.StatusOK, Request: &http.Request{}}, nil
	}
}
