// Package worker provides the bounded background work queue the pipeline
// uses for detached post-reply tasks. Submission never blocks the caller:
// when the queue is full the task is dropped and counted, because background
// evaluation is droppable by contract while reply latency is not.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/synapse-labs/synapse/internal/metrics"
)

// Task is one unit of background work. The context passed in is detached
// from any request; it is only canceled by queue shutdown timing out.
type Task struct {
	Name string
	Run  func(ctx context.Context)
}

// Queue is a fixed-capacity task queue drained by a pool of workers.
type Queue struct {
	tasks   chan Task
	wg      sync.WaitGroup
	once    sync.Once
	stopped chan struct{}
}

// NewQueue creates a queue with the given capacity and starts `workers`
// goroutines draining it.
func NewQueue(capacity, workers int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	if workers < 1 {
		workers = 1
	}

	q := &Queue{
		tasks:   make(chan Task, capacity),
		stopped: make(chan struct{}),
	}

	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker()
	}
	return q
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		select {
		case task := <-q.tasks:
			q.run(task)
		case <-q.stopped:
			// Finish what was queued before the stop, then exit.
			for {
				select {
				case task := <-q.tasks:
					q.run(task)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) run(task Task) {
	defer func() {
		metrics.QueueDepth.Set(float64(len(q.tasks)))
		if r := recover(); r != nil {
			slog.Error("background task panicked", "task", task.Name, "panic", r)
		}
	}()

	start := time.Now()
	task.Run(context.Background())
	slog.Debug("background task done", "task", task.Name, "elapsed", time.Since(start))
}

// Submit enqueues a task without blocking. Returns false if the queue is
// full or already shut down; the drop is counted, not retried. A submission
// racing Shutdown may be accepted and still never run.
func (q *Queue) Submit(task Task) bool {
	select {
	case <-q.stopped:
		metrics.QueueDroppedTotal.Inc()
		return false
	default:
	}

	select {
	case q.tasks <- task:
		metrics.QueueDepth.Set(float64(len(q.tasks)))
		return true
	default:
		metrics.QueueDroppedTotal.Inc()
		slog.Warn("background queue full, dropping task", "task", task.Name)
		return false
	}
}

// Healthy reports whether the queue is still accepting tasks.
func (q *Queue) Healthy() bool {
	select {
	case <-q.stopped:
		return false
	default:
		return true
	}
}

// Shutdown stops accepting tasks and waits for queued work to drain, up to
// the context deadline. Pending evaluations are worth finishing; they are
// only abandoned when the deadline forces it.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.once.Do(func() {
		close(q.stopped)
	})

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
