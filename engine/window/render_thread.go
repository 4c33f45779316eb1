package window

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-frame/common"
)

// RenderThread is a single goroutine locked to one OS thread that owns a GPU context.
// Work submitted through DoSync and DoAsync runs in submission order.
type RenderThread interface {
	// DoSync runs action on the thread and blocks until it returns.
	//
	// Parameters:
	//   - action: the work to run
	//
	// Returns:
	//   - error: the action's error, a recovered panic, or common.ErrSessionClosed if the thread stopped
	DoSync(action func() error) error

	// DoAsync queues action without waiting. Panics are recovered and logged.
	// Work queued after Stop is dropped.
	//
	// Parameters:
	//   - action: the work to run
	DoAsync(action func())

	// Stop drains every queued action, runs the teardown hook on the thread, and waits for the thread to exit.
	// Safe to call multiple times.
	Stop()
}

// renderJob is one queued unit of work. done is nil for async jobs.
type renderJob struct {
	action func() error
	done   chan error
}

// renderThread implements RenderThread with an unbounded FIFO drained by one locked goroutine.
type renderThread struct {
	name string

	mu       sync.Mutex
	queue    []renderJob
	stopping bool
	wake     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	teardown func()
}

var _ RenderThread = &renderThread{}

// NewRenderThread starts a render thread. setup runs first on the new thread (typically making a context
// current); if it fails the thread exits and the error is returned. teardown runs on the thread after the
// queue is drained by Stop.
//
// Parameters:
//   - name: identifier used in log output
//   - setup: optional hook run once on the thread before any work
//   - teardown: optional hook run once on the thread after the last queued action
//
// Returns:
//   - RenderThread: the running thread
//   - error: the setup error, if any
func NewRenderThread(name string, setup func() error, teardown func()) (RenderThread, error) {
	t := &renderThread{
		name:     name,
		wake:     make(chan struct{}, 1),
		stopped:  make(chan struct{}),
		teardown: teardown,
	}

	// Context operations must happen on a single OS thread, so setup reports through a channel.
	initErr := make(chan error)
	go func() {
		defer close(t.stopped)
		runtime.LockOSThread()
		// Don't UnlockOSThread so the Go runtime retires the thread with the context.

		if setup != nil {
			if err := setup(); err != nil {
				initErr <- err
				return
			}
		}
		initErr <- nil
		t.loop()
	}()

	if err := <-initErr; err != nil {
		return nil, fmt.Errorf("render thread %s: setup failed: %w", name, err)
	}
	common.Logger().Info("render thread started", "thread", name)
	return t, nil
}

func (t *renderThread) DoSync(action func() error) error {
	done := make(chan error, 1)
	if !t.enqueue(renderJob{action: action, done: done}) {
		return common.ErrSessionClosed
	}
	return <-done
}

func (t *renderThread) DoAsync(action func()) {
	queued := t.enqueue(renderJob{action: func() error {
		action()
		return nil
	}})
	if !queued {
		common.Logger().Debug("dropped async action on stopped render thread", "thread", t.name)
	}
}

func (t *renderThread) Stop() {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.stopping = true
		t.mu.Unlock()
		t.signal()
	})
	<-t.stopped
}

// enqueue appends job to the queue unless the thread is stopping.
func (t *renderThread) enqueue(job renderJob) bool {
	t.mu.Lock()
	if t.stopping {
		t.mu.Unlock()
		return false
	}
	t.queue = append(t.queue, job)
	t.mu.Unlock()
	t.signal()
	return true
}

// signal wakes the loop without blocking; one pending wake-up is enough.
func (t *renderThread) signal() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// loop drains the queue in order until Stop has been requested and nothing is left.
func (t *renderThread) loop() {
	for {
		t.mu.Lock()
		batch := t.queue
		t.queue = nil
		stopping := t.stopping
		t.mu.Unlock()

		for _, job := range batch {
			t.run(job)
		}

		if len(batch) == 0 {
			if stopping {
				break
			}
			<-t.wake
		}
	}

	if t.teardown != nil {
		t.teardown()
	}
	common.Logger().Info("render thread stopped", "thread", t.name)
}

// run executes one job, converting panics into errors for sync jobs and log lines for async ones.
func (t *renderThread) run(job renderJob) {
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("render thread %s: panic: %v", t.name, r)
			}
		}()
		err = job.action()
	}()

	if job.done != nil {
		job.done <- err
		return
	}
	if err != nil {
		common.Logger().Warn("async render action failed", "thread", t.name, "error", err)
	}
}
