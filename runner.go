package emote

import (
	"context"
	"runtime"
	"sync"
)

// Runner is the single goroutine that owns the GPU.
//
// Devices are not safe for concurrent use, so every device call is sent
// here as a task. Tasks run one at a time in submission order; a
// multi-step job interleaves with other work only between its tasks.
type Runner struct {
	tasks chan func()
	quit  chan struct{}
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewRunner starts a runner goroutine.
func NewRunner() *Runner {
	r := &Runner{
		tasks: make(chan func()),
		quit:  make(chan struct{}),
	}
	r.wg.Add(1)
	go r.loop()
	return r
}

func (r *Runner) loop() {
	defer r.wg.Done()

	// GL contexts are bound to the thread that created them.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case task := <-r.tasks:
			task()
		case <-r.quit:
			return
		}
	}
}

// Do runs fn on the runner goroutine and waits for it. It returns
// ctx.Err() if ctx ends before fn starts; once started, fn always runs to
// completion.
func (r *Runner) Do(ctx context.Context, fn func()) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}
	select {
	case r.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	}
	<-done
	return nil
}

// Close waits for the running task and stops the goroutine. Do calls
// after Close return ErrClosed. Close is idempotent.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	close(r.quit)
	r.wg.Wait()
}
