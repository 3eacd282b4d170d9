// Package dispatch runs outbound deliveries detached from the webhook
// request that triggered them. Failures land in the log instead of the
// webhook response, so the originating provider's ack cycle never
// blocks on our downstream calls.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	publishTimeout = 10 * time.Second
	taskTimeout    = 60 * time.Second
)

// Task is a named unit of outbound work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Dispatcher is a Go-channel backed queue of fire-and-forget tasks.
type Dispatcher struct {
	tasks  chan Task
	logger *slog.Logger
	mu     sync.RWMutex
	closed bool
}

// New creates a dispatcher with the given queue size.
func New(bufferSize int, logger *slog.Logger) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &Dispatcher{
		tasks:  make(chan Task, bufferSize),
		logger: logger,
	}
}

// Publish enqueues a task. Blocks up to 10 seconds if the queue is full
// instead of dropping.
func (d *Dispatcher) Publish(t Task) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("attempted to publish to closed dispatcher", "task", t.Name)
		return
	}

	select {
	case d.tasks <- t:
	default:
		d.logger.Warn("dispatch queue full, waiting...", "task", t.Name)
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case d.tasks <- t:
			d.logger.Info("task enqueued after wait", "task", t.Name)
		case <-timer.C:
			d.logger.Error("task dropped: queue full for 10s", "task", t.Name)
		}
	}
}

// Run consumes the queue until ctx is canceled or the dispatcher is
// closed. Each task runs in its own goroutine; one slow provider call
// never delays the next.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case t, ok := <-d.tasks:
			if !ok {
				wg.Wait()
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				// Detached from the run context: shutdown must not abort a
				// delivery that was already accepted with a 200. The timeout
				// bounds it instead.
				taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), taskTimeout)
				defer cancel()
				if err := t.Run(taskCtx); err != nil {
					d.logger.Error("dispatched task failed", "task", t.Name, "err", err)
				}
			}()
		}
	}
}

func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.closed {
		d.closed = true
		close(d.tasks)
	}
}
