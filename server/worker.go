package server

import "fmt"

// job is a unit of work to be executed on the worker goroutine.
type job struct {
	fn   func() any
	done chan jobResult
}

type jobResult struct {
	value any
	err   error
}

// Worker runs document analyses one at a time on a dedicated goroutine,
// so edits arriving quickly are analysed in order and a compiler panic
// becomes an error instead of taking the server down.
type Worker struct {
	jobs chan job
	quit chan struct{}
}

// NewWorker creates a Worker and starts its goroutine.
func NewWorker() *Worker {
	w := &Worker{
		jobs: make(chan job, 64),
		quit: make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	for {
		select {
		case j := <-w.jobs:
			j.done <- w.execute(j.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn, recovering from panics.
func (w *Worker) execute(fn func() any) (result jobResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("analysis panicked: %v", r)
			result.err = fmt.Errorf("%v", r)
		}
	}()
	result.value = fn()
	return result
}

// Do submits fn and blocks until it completes.
func (w *Worker) Do(fn func() any) (any, error) {
	j := job{fn: fn, done: make(chan jobResult, 1)}
	w.jobs <- j
	r := <-j.done
	return r.value, r.err
}

// Stop shuts down the worker goroutine.
func (w *Worker) Stop() {
	close(w.quit)
}
