package pipeline

import (
	"sync"
	"sync/atomic"
)

const taskQueueCapacity = 512 // TODO: Figure out good values for this.

// taskLoop serializes all pipeline mutation onto one goroutine. Frame
// callbacks and public controls post tasks; chunk completions post deferred
// continuations onto the same queue so chaining never recurses.
type taskLoop struct {
	tasks   chan func()
	closeCh chan struct{}
	done    chan struct{}

	startOnce sync.Once
	endOnce   sync.Once

	started atomic.Bool
}

func newTaskLoop() *taskLoop {
	return &taskLoop{
		tasks:   make(chan func(), taskQueueCapacity),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (loop *taskLoop) CanPost() bool {
	if loop == nil {
		return false
	}

	select {
	case <-loop.closeCh:
		return false
	default:
		return true
	}
}

func (loop *taskLoop) Start() (started bool) {
	if loop == nil || !loop.CanPost() {
		return false
	}

	loop.startOnce.Do(func() {
		started = true
		loop.started.Store(true)
		go func() {
			defer close(loop.done)

			for {
				select {
				case <-loop.closeCh:
					return
				case task := <-loop.tasks:
					task()
				}
			}
		}()
	})

	return started
}

// Post queues task for the loop goroutine. It never blocks: posting to a full
// or stopped loop drops the task and reports false.
func (loop *taskLoop) Post(task func()) bool {
	if loop == nil || task == nil || !loop.CanPost() {
		return false
	}

	select {
	case <-loop.closeCh:
		return false
	case loop.tasks <- task:
		return true
	default:
		return false
	}
}

func (loop *taskLoop) Stop() {
	if loop == nil {
		return
	}

	loop.endOnce.Do(func() { close(loop.closeCh) })
}

func (loop *taskLoop) AwaitDone() {
	if loop == nil {
		return
	}

	if loop.started.Load() {
		<-loop.done
	}
}

func (loop *taskLoop) IsRunning() bool {
	return loop != nil && loop.started.Load() && loop.CanPost()
}
