package syncer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Task is one unit of backend sync work. Run executes the remote call;
// OnFailure, if set, is invoked after Run returns a non-nil error (this is
// how the folder rename rollback is wired). Tasks on one queue execute in
// enqueue order.
type Task struct {
	Name      string
	Run       func(ctx context.Context) error
	OnFailure func(err error)
}

const defaultQueueCapacity = 128

// Queue executes sync tasks for one entity type sequentially on a single
// worker goroutine. Mutations stay synchronous and local; remote calls flow
// through here so in-flight sync work is visible (Depth), drainable, and
// stoppable as a unit.
type Queue struct {
	name    string
	tasks   chan Task
	depth   atomic.Int64
	pending sync.WaitGroup
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewQueue creates and starts a queue named for its entity type
// ("folder", "snippet").
func NewQueue(name string) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		name:   name,
		tasks:  make(chan Task, defaultQueueCapacity),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go q.run(ctx)
	return q
}

// Enqueue schedules a task without blocking the caller. If the queue is
// saturated the task is dropped with a warning; sync is best-effort and the
// local state is already committed.
func (q *Queue) Enqueue(t Task) {
	q.pending.Add(1)
	q.depth.Add(1)
	select {
	case q.tasks <- t:
	default:
		q.depth.Add(-1)
		q.pending.Done()
		slog.Warn("sync queue saturated, dropping task", "queue", q.name, "task", t.Name)
	}
}

// Depth returns the number of tasks queued or executing.
func (q *Queue) Depth() int {
	return int(q.depth.Load())
}

// Drain blocks until every task enqueued so far has finished. Used by tests
// and at shutdown.
func (q *Queue) Drain() {
	q.pending.Wait()
}

// Close stops the worker after the current task and releases the queue.
// Queued tasks that never ran are marked done so Drain cannot hang.
func (q *Queue) Close() {
	q.cancel()
	close(q.tasks)
	<-q.done
}

func (q *Queue) run(ctx context.Context) {
	defer close(q.done)
	for task := range q.tasks {
		if ctx.Err() != nil {
			q.depth.Add(-1)
			q.pending.Done()
			continue
		}

		err := task.Run(ctx)
		if err != nil {
			slog.Warn("backend sync failed", "queue", q.name, "task", task.Name, "err", err)
			if task.OnFailure != nil {
				task.OnFailure(err)
			}
		} else {
			slog.Debug("backend sync done", "queue", q.name, "task", task.Name)
		}
		q.depth.Add(-1)
		q.pending.Done()
	}
}
