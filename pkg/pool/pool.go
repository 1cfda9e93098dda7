package pool

import (
	"context"
	"sync"
)

// WorkerFunc processes one item and returns its result.
type WorkerFunc[T, R any] func(ctx context.Context, item T) (R, error)

// Result is the outcome of one item. Index is the item's position in the input slice.
type Result[R any] struct {
	Index int
	Value R
	Err   error
}

// Map processes items on numWorkers goroutines and returns one Result per processed item,
// ordered like the input. Items not started before ctx is done are reported with ctx's error.
func Map[T, R any](ctx context.Context, items []T, numWorkers int, workerFunc WorkerFunc[T, R]) []Result[R] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	results := make([]Result[R], len(items))
	for i := range results {
		results[i].Index = i
	}

	var wg sync.WaitGroup
	taskChan := make(chan int, numWorkers)
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range taskChan {
				if err := ctx.Err(); err != nil {
					results[i].Err = err
					continue
				}
				results[i].Value, results[i].Err = workerFunc(ctx, items[i])
			}
		}()
	}

	next := 0
OUT:
	for ; next < len(items); next++ {
		select {
		case taskChan <- next:
		case <-ctx.Done():
			break OUT
		}
	}
	close(taskChan)
	wg.Wait()

	for i := next; i < len(items); i++ {
		results[i].Err = ctx.Err()
	}
	return results
}

// Errors returns the non-nil errors of results in input order.
func Errors[R any](results []Result[R]) []error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}
