package pipeline

import (
	"context"
	"runtime"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/schollz/progressbar/v3"
)

// Executor runs fn for every index in [0, n). Implementations stop at the
// first error and return it.
type Executor interface {
	Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error
}

type Sequential struct{}

func (Sequential) Run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, i); err != nil {
			return err
		}
	}
	return nil
}

// Pool runs work on a worker pool. Callers write results into
// index-addressed slots, so completion order does not matter.
type Pool struct {
	Workers     int
	Progress    bool
	Description string
}

func (p Pool) Run(parent context.Context, n int, fn func(ctx context.Context, i int) error) error {
	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var (
		firstErr       error
		stopProcessing sync.Once
		progressBar    *progressbar.ProgressBar
	)
	if p.Progress {
		progressBar = progressbar.Default(int64(n), p.Description)
	}

	wp := workerpool.New(workers)
	for i := 0; i < n; i++ {
		i := i
		wp.Submit(func() {
			if ctx.Err() != nil {
				return
			}
			if err := fn(ctx, i); err != nil {
				stopProcessing.Do(func() {
					firstErr = err
					cancel()
				})
				return
			}
			if progressBar != nil {
				progressBar.Add(1)
			}
		})
	}
	wp.StopWait()

	if progressBar != nil {
		progressBar.Finish()
	}
	if firstErr != nil {
		return firstErr
	}
	return parent.Err()
}
