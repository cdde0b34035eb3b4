package sim

import (
	"context"
	"time"
)

// Task is a cancelable periodic or one-shot job.
type Task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
}

// Name returns the label the task was scheduled with.
func (t *Task) Name() string { return t.name }

// Cancel stops future runs without waiting. Safe to call more than once.
func (t *Task) Cancel() { t.cancel() }

// Stop cancels the task and waits for its goroutine to exit.
func (t *Task) Stop() {
	t.cancel()
	<-t.done
}

// Done is closed once the task goroutine has exited.
func (t *Task) Done() <-chan struct{} { return t.done }

// Every runs fn every interval until ctx or the task is canceled. fn receives
// the task context and must check it before touching shared state.
func Every(ctx context.Context, name string, interval time.Duration, fn func(context.Context)) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{name: name, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
	return t
}

// After runs fn once after delay unless canceled first.
func After(ctx context.Context, name string, delay time.Duration, fn func(context.Context)) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{name: name, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(t.done)
		defer cancel()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
			fn(ctx)
		}
	}()
	return t
}
