package entries

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lehigh-university-libraries/outfitai/internal/models"
)

// task is one persistence side effect of a store mutation
type task struct {
	op  string
	id  string
	run func(ctx context.Context) error
}

// persistQueue runs tasks one at a time in submission order on its own goroutine.
// push never blocks the caller; a failed task is logged and does not affect later ones.
type persistQueue struct {
	mu      sync.Mutex
	tasks   []task
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	timeout time.Duration

	failures atomic.Int64
}

func newPersistQueue(timeout time.Duration) *persistQueue {
	q := &persistQueue{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		timeout: timeout,
	}
	go q.run()
	return q
}

func (q *persistQueue) push(t task) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

func (q *persistQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		for len(q.tasks) == 0 {
			if q.closed {
				q.mu.Unlock()
				return
			}
			q.mu.Unlock()
			<-q.wake
			q.mu.Lock()
		}
		t := q.tasks[0]
		q.tasks[0] = task{}
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		q.exec(t)
	}
}

func (q *persistQueue) exec(t task) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	if err := t.run(ctx); err != nil {
		q.failures.Add(1)
		perr := &models.PersistenceError{Op: t.op, ID: t.id, Err: err}
		slog.Warn("Failed to persist image entries", "op", t.op, "id", t.id, "err", perr)
		return
	}
	if t.op != "flush" {
		slog.Debug("Persisted image entries", "op", t.op, "id", t.id)
	}
}

// flush waits until every task pushed before the call has finished
func (q *persistQueue) flush(ctx context.Context) error {
	barrier := make(chan struct{})
	ok := q.push(task{op: "flush", run: func(context.Context) error {
		close(barrier)
		return nil
	}})
	if !ok {
		return nil
	}

	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting tasks and waits for the queued ones to drain
func (q *persistQueue) close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
