// Package tasks runs fire-and-forget background work items. Cleanup,
// proxy teardown and UI restore are dispatched here so the monitor loop
// and the command-handling path never block on them; callers cannot
// observe completion, only poll derived state.
package tasks

import (
	"context"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
)

// Runner dispatches named background tasks. Errors and panics land in the
// runner's log sink, never on the caller-facing result path.
type Runner struct {
	logger *zap.Logger
	wg     sync.WaitGroup
}

// NewRunner creates a task runner.
func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{logger: logger}
}

// Go dispatches fn on its own goroutine and returns immediately.
func (r *Runner) Go(name string, fn func() error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("background task panicked",
					zap.String("task", name),
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()))
			}
		}()

		if err := fn(); err != nil {
			r.logger.Warn("background task failed",
				zap.String("task", name),
				zap.Error(err))
		}
	}()
}

// Wait blocks until all dispatched tasks finish or the context expires.
// Used on shutdown and in tests; normal callers never wait.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
