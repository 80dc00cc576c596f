// Package gate provides the bounded-concurrency submission queue that
// protects the generative backend. Every call to the generative model goes
// through one Gate instance owned by the application context; there is no
// ambient global.
package gate

import (
	"context"
	"log/slog"
	"sync"

	"missiondeck/internal/domain"
)

const (
	minLimit     = 1
	maxLimit     = 16
	defaultLimit = 2

	// DefaultMaxQueue bounds how many submissions may wait before new ones
	// are rejected with ErrQueueOverflow so callers can apply backpressure.
	DefaultMaxQueue = 32
)

type waiter struct {
	ready   chan struct{} // closed when a slot is granted or the waiter is drained
	granted bool
	err     error // set before ready is closed when drained
}

// Gate runs at most limit tasks simultaneously; additional submissions queue
// in FIFO order. A failing task releases its slot without affecting other
// queued tasks.
type Gate struct {
	mu       sync.Mutex
	limit    int
	maxQueue int
	running  int
	waiters  []*waiter
	logger   *slog.Logger
}

// New creates a Gate. The limit is clamped to [1, 16]; zero or negative
// selects the default of 2. maxQueue <= 0 selects DefaultMaxQueue.
func New(limit, maxQueue int, logger *slog.Logger) *Gate {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit < minLimit {
		limit = minLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if maxQueue <= 0 {
		maxQueue = DefaultMaxQueue
	}
	return &Gate{
		limit:    limit,
		maxQueue: maxQueue,
		logger:   logger,
	}
}

// Submit runs fn under the gate's concurrency limit and returns its result.
// Submissions past the limit wait in FIFO order; submissions past the queue
// bound fail immediately with domain.ErrQueueOverflow. Cancelling ctx while
// queued abandons the wait without consuming a slot.
func Submit[T any](ctx context.Context, g *Gate, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := g.acquire(ctx); err != nil {
		return zero, err
	}
	defer g.release()
	return fn(ctx)
}

// Limit returns the configured concurrency limit.
func (g *Gate) Limit() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limit
}

// RunningCount returns the number of tasks currently executing.
func (g *Gate) RunningCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// QueuedCount returns the number of submissions waiting for a slot.
func (g *Gate) QueuedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.waiters)
}

// Busy reports whether queued + running is at or above the given threshold.
// Background maintenance uses this to keep generation-heavy work away from
// a gate that interactive requests are contending for.
func (g *Gate) Busy(threshold int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running+len(g.waiters) >= threshold
}

// DrainQueue discards every not-yet-started submission; each fails with
// domain.ErrDrained. Running tasks are unaffected. Returns the number of
// submissions discarded.
func (g *Gate) DrainQueue() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := len(g.waiters)
	for _, w := range g.waiters {
		w.err = domain.ErrDrained
		close(w.ready)
	}
	g.waiters = nil
	if n > 0 && g.logger != nil {
		g.logger.Warn("gate queue drained", "discarded", n)
	}
	return n
}

func (g *Gate) acquire(ctx context.Context) error {
	g.mu.Lock()
	if g.running < g.limit && len(g.waiters) == 0 {
		g.running++
		g.mu.Unlock()
		return nil
	}
	if len(g.waiters) >= g.maxQueue {
		g.mu.Unlock()
		return domain.ErrQueueOverflow
	}
	w := &waiter{ready: make(chan struct{})}
	g.waiters = append(g.waiters, w)
	g.mu.Unlock()

	select {
	case <-w.ready:
		return w.err
	case <-ctx.Done():
		g.mu.Lock()
		select {
		case <-w.ready:
			// Slot granted (or drained) while we were cancelling. A granted
			// slot must be handed back so it is not leaked.
			if w.granted {
				g.releaseLocked()
			}
			g.mu.Unlock()
		default:
			g.removeWaiterLocked(w)
			g.mu.Unlock()
		}
		return ctx.Err()
	}
}

func (g *Gate) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releaseLocked()
}

// releaseLocked frees one slot, handing it to the oldest waiter if any.
func (g *Gate) releaseLocked() {
	if len(g.waiters) > 0 {
		w := g.waiters[0]
		g.waiters = g.waiters[1:]
		w.granted = true
		close(w.ready)
		return
	}
	if g.running > 0 {
		g.running--
	}
}

func (g *Gate) removeWaiterLocked(target *waiter) {
	for i, w := range g.waiters {
		if w == target {
			g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
			return
		}
	}
}
