// Package parallel runs bounded batches of independent setup work.
package parallel

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// ErrTooManyWorkers is returned when the worker count exceeds MaxWorkers.
var ErrTooManyWorkers = errors.New("worker count exceeds maximum")

// MaxWorkers bounds pool size.
const MaxWorkers = 1024

// Task is one unit of work. A non-nil error is reported by Wait.
type Task func() error

// Pool is a fixed set of goroutines draining a task queue. The first error
// (or recovered panic) from any task is returned by Wait; later tasks still
// run so callers always observe a consistent set of partial results.
type Pool struct {
	workers   int
	taskQueue chan Task
	wg        sync.WaitGroup
	once      sync.Once

	mu     sync.RWMutex // guards closed against concurrent send
	closed bool

	errMu sync.Mutex
	err   error
}

// NewPool starts a pool with the given number of workers. workers <= 0
// selects GOMAXPROCS.
func NewPool(workers int) (*Pool, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > MaxWorkers {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrTooManyWorkers, workers, MaxWorkers)
	}

	p := &Pool{
		workers:   workers,
		taskQueue: make(chan Task, workers*2),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p, nil
}

// Workers returns the pool size.
func (p *Pool) Workers() int {
	return p.workers
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.taskQueue {
		p.run(task)
	}
}

func (p *Pool) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.fail(fmt.Errorf("task panicked: %v", r))
		}
	}()
	if err := task(); err != nil {
		p.fail(err)
	}
}

func (p *Pool) fail(err error) {
	p.errMu.Lock()
	if p.err == nil {
		p.err = err
	}
	p.errMu.Unlock()
}

// Submit queues task. It returns false once the pool has been waited on.
func (p *Pool) Submit(task Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.taskQueue <- task
	return true
}

// Wait stops accepting tasks, blocks until queued ones finish, and returns
// the first task error. Calling Wait again returns the same error.
func (p *Pool) Wait() error {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.taskQueue)
		p.mu.Unlock()
	})
	p.wg.Wait()

	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

// Run executes tasks on a pool of the given size and returns the first
// error.
func Run(workers int, tasks ...Task) error {
	if len(tasks) == 0 {
		return nil
	}
	if workers <= 0 || workers > len(tasks) {
		workers = min(len(tasks), runtime.GOMAXPROCS(0))
	}
	p, err := NewPool(workers)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		p.Submit(t)
	}
	return p.Wait()
}
