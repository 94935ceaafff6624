package consumer

import "sync"

// WorkerPool bounds concurrent record processing for one consumer group.
type WorkerPool struct {
	jobs chan func()
	wg   sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	wp := &WorkerPool{jobs: make(chan func(), workers*2)}
	for i := 0; i < workers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
	return wp
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for job := range wp.jobs {
		job()
	}
}

// Submit enqueues a job, blocking while the pool is at capacity. Jobs are
// dropped once the pool is stopping.
func (wp *WorkerPool) Submit(job func()) {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.stopped {
		return
	}
	wp.jobs <- job
}

// Stop drains the queue and waits for the workers to exit.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if !wp.stopped {
		wp.stopped = true
		close(wp.jobs)
	}
	wp.mu.Unlock()
	wp.wg.Wait()
}
