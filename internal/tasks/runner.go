package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	queueSize   = 1000
	taskTimeout = 5 * time.Minute
)

// Task is one unit of deferred work. Handlers are expected to be
// idempotent per entry they touch; the runner never retries.
type Task struct {
	ID   uuid.UUID
	Name string
	Run  func(ctx context.Context) error
}

// Runner schedules work to run outside the caller's request path.
type Runner interface {
	Schedule(task Task) bool
}

// QueueRunner executes tasks from a buffered channel on a single worker
// goroutine. Scheduling never blocks the caller beyond the channel send;
// a full queue drops the task.
type QueueRunner struct {
	queue  chan Task
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	log    *slog.Logger
}

func NewQueueRunner(log *slog.Logger) *QueueRunner {
	ctx, cancel := context.WithCancel(context.Background())

	r := &QueueRunner{
		queue:  make(chan Task, queueSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		log:    log,
	}

	go r.processQueue()

	return r
}

func (r *QueueRunner) Schedule(task Task) bool {
	if r.ctx.Err() != nil {
		return false
	}

	select {
	case r.queue <- task:
		return true
	default:
		r.log.Error("Task queue is full so task is dropped",
			"taskID", task.ID,
			"taskName", task.Name,
			"queueLen", len(r.queue))

		return false
	}
}

// Stop cancels the worker and waits for the in-flight task to finish.
// Queued tasks that have not started are discarded.
func (r *QueueRunner) Stop() {
	r.cancel()
	<-r.done
}

func (r *QueueRunner) processQueue() {
	defer close(r.done)

	for {
		select {
		case task := <-r.queue:
			r.runTask(task)
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *QueueRunner) runTask(task Task) {
	ctx, cancel := context.WithTimeout(r.ctx, taskTimeout)
	defer cancel()

	start := time.Now()

	if err := task.Run(ctx); err != nil {
		r.log.ErrorContext(ctx, "Task failed",
			"error", err,
			"taskID", task.ID,
			"taskName", task.Name,
			"duration", time.Since(start))

		return
	}

	r.log.DebugContext(ctx, "Task finished",
		"taskID", task.ID,
		"taskName", task.Name,
		"duration", time.Since(start))
}
