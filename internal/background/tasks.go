// Package background runs fire-and-forget work under supervision: every
// spawned task is panic-recovered and its error logged, so a failed pool
// refresh is observable without the triggering request ever awaiting it.
package background

import (
	"context"
	"log/slog"
	"sync"
)

// Tasks is a supervised set of background goroutines. One instance is owned
// by the application and injected wherever a request path triggers
// asynchronous work.
type Tasks struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
	logger *slog.Logger
}

// New creates a task set logging failures to logger.
func New(logger *slog.Logger) *Tasks {
	return &Tasks{logger: logger}
}

// Spawn runs fn on its own goroutine. Errors and panics are logged under
// name; they never propagate to the caller. Spawn after Close is a no-op.
func (t *Tasks) Spawn(name string, fn func(ctx context.Context) error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		t.logger.Warn("background task rejected, set closed", "task", name)
		return
	}
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				t.logger.Error("background task panicked", "task", name, "panic", r)
			}
		}()
		if err := fn(context.Background()); err != nil {
			t.logger.Warn("background task failed", "task", name, "error", err)
		}
	}()
}

// WaitIdle blocks until every spawned task has finished or ctx is done.
// Tests use this to observe fire-and-forget effects deterministically.
func (t *Tasks) WaitIdle(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new tasks and waits for running ones.
func (t *Tasks) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.wg.Wait()
}
