package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestDispatcher_RunsTasks(t *testing.T) {
	d := New(10, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	var ran atomic.Int32
	done := make(chan struct{})
	d.Publish(Task{Name: "test", Run: func(ctx context.Context) error {
		ran.Add(1)
		close(done)
		return nil
	}})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
	if ran.Load() != 1 {
		t.Errorf("expected 1 run, got %d", ran.Load())
	}
}

func TestDispatcher_TaskFailureDoesNotStopOthers(t *testing.T) {
	d := New(10, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	done := make(chan struct{})
	d.Publish(Task{Name: "failing", Run: func(ctx context.Context) error {
		return errors.New("boom")
	}})
	d.Publish(Task{Name: "ok", Run: func(ctx context.Context) error {
		close(done)
		return nil
	}})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second task did not run after a failure")
	}
}

func TestDispatcher_PublishAfterClose(t *testing.T) {
	d := New(10, testLogger())
	d.Close()
	// Must not panic.
	d.Publish(Task{Name: "late", Run: func(ctx context.Context) error { return nil }})
}

func TestDispatcher_AcceptedTaskSurvivesShutdown(t *testing.T) {
	// Once a webhook has been acked, its delivery must not be aborted by
	// the server's shutdown signal.
	d := New(10, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(runDone)
	}()

	started := make(chan struct{})
	release := make(chan struct{})
	errCh := make(chan error, 1)
	d.Publish(Task{Name: "delivery", Run: func(taskCtx context.Context) error {
		close(started)
		<-release
		errCh <- taskCtx.Err()
		return nil
	}})

	<-started
	cancel()
	close(release)

	if err := <-errCh; err != nil {
		t.Errorf("task context should outlive the run context, got %v", err)
	}
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not drain after cancel")
	}
}

func TestDispatcher_SlowTaskDoesNotBlockNext(t *testing.T) {
	d := New(10, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	release := make(chan struct{})
	fastDone := make(chan struct{})
	d.Publish(Task{Name: "slow", Run: func(ctx context.Context) error {
		<-release
		return nil
	}})
	d.Publish(Task{Name: "fast", Run: func(ctx context.Context) error {
		close(fastDone)
		return nil
	}})

	select {
	case <-fastDone:
	case <-time.After(2 * time.Second):
		t.Fatal("fast task blocked behind slow task")
	}
	close(release)
}
