package service

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// TaskResult holds one task's outcome at its original input index. Either
// Value or Err is set; Attempts counts generator calls the task made.
type TaskResult[O any] struct {
	Index    int
	Value    O
	Err      error
	Attempts int
}

// TaskFunc is one per-record operation. The returned int is the number of
// attempts consumed (a task that never reaches the generator reports 0 or 1).
type TaskFunc[I, O any] func(ctx context.Context, item I) (O, int, error)

// ProgressFunc is called after each task completes, in completion order.
type ProgressFunc func(completed, total int)

// RunnerOption configures a bounded run.
type RunnerOption func(*runnerOptions)

type runnerOptions struct {
	progress ProgressFunc
}

// WithProgress reports per-completion progress.
func WithProgress(fn ProgressFunc) RunnerOption {
	return func(o *runnerOptions) {
		o.progress = fn
	}
}

// RunBounded executes op for every item with at most `concurrency` tasks in
// flight. Results come back dense and in input order regardless of
// completion order. A failing task is converted into its slot's Err; it
// never aborts the batch. A concurrency cap below 1 is treated as 1.
func RunBounded[I, O any](ctx context.Context, items []I, concurrency int, op TaskFunc[I, O], opts ...RunnerOption) []TaskResult[O] {
	var options runnerOptions
	for _, o := range opts {
		o(&options)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]TaskResult[O], len(items))

	var mu sync.Mutex
	completed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, item := range items {
		g.Go(func() error {
			res := TaskResult[O]{Index: i}
			if err := gctx.Err(); err != nil {
				res.Err = err
			} else {
				res.Value, res.Attempts, res.Err = op(gctx, item)
			}
			results[i] = res

			if options.progress != nil {
				mu.Lock()
				completed++
				done := completed
				mu.Unlock()
				options.progress(done, len(items))
			}
			return nil
		})
	}
	_ = g.Wait() // tasks never return errors; failures live in results

	return results
}
