package auth_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/habedi/tokenflow/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitPending(t *testing.T, g *auth.Gate, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return g.Pending() == n }, time.Second, time.Millisecond)
}

func TestGate_OpenRunsImmediately(t *testing.T) {
	g := auth.NewGate()
	var used string
	resp, err := g.Do(context.Background(), func() string { return "Bearer now" },
		func(_ context.Context, token string) (*http.Response, error) {
			used = token
			return &http.Response{StatusCode: http.StatusOK}, nil
		})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bearer now", used)
	assert.False(t, g.Refreshing())
}

func TestGate_ResolveReplaysInArrivalOrder(t *testing.T) {
	g := auth.NewGate()
	g.Begin()

	var (
		mu     sync.Mutex
		order  []string
		tokens = map[string]string{}
		wg     sync.WaitGroup
	)
	for i, name := range []string{"A", "B", "C"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Do(context.Background(), func() string { return "stale" }, recordingReplay(&mu, &order, tokens, name))
			assert.NoError(t, err)
		}()
		waitPending(t, g, i+1)
	}

	g.Resolve("Bearer fresh")
	wg.Wait()

	assert.Equal(t, []string{"A", "B", "C"}, order)
	for _, name := range order {
		assert.Equal(t, "Bearer fresh", tokens[name])
	}
	assert.False(t, g.Refreshing())
	assert.Zero(t, g.Pending())
}

func TestGate_RejectFailsEveryQueuedRequest(t *testing.T) {
	g := auth.NewGate()
	g.Begin()
	cause := errors.New("issuer down")

	replayed := false
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := g.Do(context.Background(), func() string { return "" },
				func(context.Context, string) (*http.Response, error) {
					replayed = true
					return nil, nil
				})
			errs <- err
		}()
		waitPending(t, g, i+1)
	}

	g.Reject(cause)

	for i := 0; i < 2; i++ {
		err := <-errs
		assert.ErrorIs(t, err, auth.ErrAuthentication)
		assert.ErrorIs(t, err, cause)
	}
	assert.False(t, replayed)
}

func TestGate_CancelledWaiterIsNotReplayed(t *testing.T) {
	g := auth.NewGate()
	g.Begin()

	ctx, cancel := context.WithCancel(context.Background())
	replayed := make(chan struct{}, 1)
	errs := make(chan error, 1)
	go func() {
		_, err := g.Do(ctx, func() string { return "" }, func(context.Context, string) (*http.Response, error) {
			replayed <- struct{}{}
			return nil, nil
		})
		errs <- err
	}()
	waitPending(t, g, 1)

	cancel()
	assert.ErrorIs(t, <-errs, context.Canceled)

	g.Resolve("Bearer fresh")
	require.Eventually(t, func() bool { return g.Pending() == 0 }, time.Second, time.Millisecond)
	select {
	case <-replayed:
		t.Fatal("cancelled request was replayed")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestGate_RequestsAfterSettlementBelongToNextRefresh(t *testing.T) {
	g := auth.NewGate()
	g.Begin()
	g.Reject(errors.New("first refresh failed"))

	g.Begin()
	done := make(chan string, 1)
	go func() {
		_, err := g.Do(context.Background(), func() string { return "" }, func(_ context.Context, token string) (*http.Response, error) {
			done <- token
			return nil, nil
		})
		assert.NoError(t, err)
	}()
	waitPending(t, g, 1)

	g.Resolve("Bearer second")
	assert.Equal(t, "Bearer second", <-done)
}

func TestGate_ReplaysRunOneAtATime(t *testing.T) {
	g := auth.NewGate()
	g.Begin()

	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	secondStarted := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = g.Do(context.Background(), func() string { return "" }, func(context.Context, string) (*http.Response, error) {
			close(firstStarted)
			<-releaseFirst
			return &http.Response{StatusCode: http.StatusOK}, nil
		})
	}()
	waitPending(t, g, 1)
	go func() {
		defer wg.Done()
		_, _ = g.Do(context.Background(), func() string { return "" }, func(context.Context, string) (*http.Response, error) {
			close(secondStarted)
			return &http.Response{StatusCode: http.StatusOK}, nil
		})
	}()
	waitPending(t, g, 2)

	g.Resolve("Bearer fresh")
	<-firstStarted
	select {
	case <-secondStarted:
		t.Fatal("second replay started before the first returned")
	case <-time.After(20 * time.Millisecond):
	}

	close(releaseFirst)
	select {
	case <-secondStarted:
	case <-time.After(time.Second):
		t.Fatal("second replay never started")
	}
	wg.Wait()
}
