package worker

import (
	"context"
	"log/slog"
	"sync"
)

type Job any

type ProcessFunc func(ctx context.Context, job Job) error

// WorkerPool runs a fixed number of workers over a buffered job queue.
type WorkerPool struct {
	name       string
	numWorkers int
	jobs       chan Job
	processor  ProcessFunc
	wg         sync.WaitGroup
}

func NewWorkerPool(name string, numWorkers int, bufferSize int, processor ProcessFunc) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &WorkerPool{
		name:       name,
		numWorkers: numWorkers,
		jobs:       make(chan Job, bufferSize),
		processor:  processor,
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 1; i <= wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			if err := wp.processor(ctx, job); err != nil {
				slog.Debug("job failed", "pool", wp.name, "worker", id, "error", err)
			}
		}
	}
}

// Submit queues a job, blocking while the queue is full.
func (wp *WorkerPool) Submit(job Job) {
	wp.jobs <- job
}

// SubmitUntil queues a job unless done is closed first and reports whether
// the job was queued.
func (wp *WorkerPool) SubmitUntil(done <-chan struct{}, job Job) bool {
	select {
	case wp.jobs <- job:
		return true
	case <-done:
		return false
	}
}

// Pending is the number of queued jobs not yet picked up.
func (wp *WorkerPool) Pending() int {
	return len(wp.jobs)
}

// Stop closes the queue and waits for in-flight jobs.
func (wp *WorkerPool) Stop() {
	close(wp.jobs)
	wp.wg.Wait()
}
