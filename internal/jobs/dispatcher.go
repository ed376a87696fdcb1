package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// Task is a unit of deferred work. Handlers must be idempotent: the
// dispatcher guarantees at-least-once execution per enqueue, and a handler
// retriggered after a partial failure must converge on the same state.
type Task struct {
	// Name identifies the task kind in logs
	Name string

	// EntityID identifies the record the task operates on
	EntityID string

	// Run does the work. Errors are logged, never returned to the
	// enqueuing caller - the triggering request has already returned.
	Run func(ctx context.Context) error
}

// Dispatcher is an in-process work queue for fire-and-forget stage
// transitions (upload -> extraction, approval -> second pass). The
// enqueuing request returns immediately; completion is discovered by
// polling state or by subscribing to the event hub.
type Dispatcher struct {
	queue   chan Task
	workers int
	timeout time.Duration

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewDispatcher creates a dispatcher with the given worker count and
// queue capacity. Each task gets taskTimeout to complete.
func NewDispatcher(workers, queueSize int, taskTimeout time.Duration) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		queue:   make(chan Task, queueSize),
		workers: workers,
		timeout: taskTimeout,
		stopped: make(chan struct{}),
	}
}

// Start launches the worker goroutines
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	log.Printf("Dispatcher: started %d workers (queue capacity %d)", d.workers, cap(d.queue))
}

// Stop drains the queue and waits for in-flight tasks
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopped)
		close(d.queue)
	})
	d.wg.Wait()
}

// Enqueue submits a task. Returns false if the queue is full or the
// dispatcher is stopped; the caller treats that the same as a dispatch
// failure (logged, not surfaced).
func (d *Dispatcher) Enqueue(task Task) bool {
	select {
	case <-d.stopped:
		log.Printf("Dispatcher: rejected %s task for %s (stopped)", task.Name, task.EntityID)
		return false
	default:
	}

	select {
	case d.queue <- task:
		return true
	default:
		log.Printf("Dispatcher: rejected %s task for %s (queue full)", task.Name, task.EntityID)
		return false
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for task := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		start := time.Now()
		if err := task.Run(ctx); err != nil {
			log.Printf("Dispatcher: %s task for %s failed after %s: %v",
				task.Name, task.EntityID, time.Since(start).Round(time.Millisecond), err)
		}
		cancel()
	}
}
