package parallel

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned by Spawn after Close.
var ErrPoolClosed = errors.New("parallel: worker pool closed")

// Job is a unit of work. worker is the index of the goroutine running it,
// in [0, Workers()).
type Job = func(worker int)

// WorkerPool is a fixed-size pool of goroutines.
//
// Each worker owns a queue and steals from the others when its own queue is
// empty. Jobs receive the index of the worker that actually runs them, so
// per-worker state indexed by that value is never touched by two goroutines
// at once, even when a job was stolen.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers    int
	workQueues []chan Job

	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool

	// submitMu orders Spawn against Close so that no job is queued after
	// the workers have drained their queues.
	submitMu sync.RWMutex

	queueSize int
}

// NewWorkerPool creates a new worker pool with the specified number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
// The pool starts immediately and workers begin waiting for work.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	queueSize := workers * 4
	if queueSize < 8 {
		queueSize = 8
	}

	p := &WorkerPool{
		workers:    workers,
		workQueues: make([]chan Job, workers),
		done:       make(chan struct{}),
		queueSize:  queueSize,
	}
	for i := range workers {
		p.workQueues[i] = make(chan Job, queueSize)
	}

	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}

	return p
}

// worker is the main loop for each worker goroutine.
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	myQueue := p.workQueues[id]

	for {
		select {
		case <-p.done:
			p.drainQueue(id, myQueue)
			return

		case job := <-myQueue:
			if job != nil {
				job(id)
			}

		default:
			if stolen := p.steal(id); stolen != nil {
				stolen(id)
				continue
			}
			select {
			case <-p.done:
				p.drainQueue(id, myQueue)
				return
			case job := <-myQueue:
				if job != nil {
					job(id)
				}
			}
		}
	}
}

// drainQueue executes all remaining work in a queue.
func (p *WorkerPool) drainQueue(id int, queue chan Job) {
	for {
		select {
		case job := <-queue:
			if job != nil {
				job(id)
			}
		default:
			return
		}
	}
}

// steal attempts to take work from another worker's queue.
// Returns nil if no work is available.
func (p *WorkerPool) steal(myID int) Job {
	for i := range p.workers {
		if i == myID {
			continue
		}
		select {
		case job := <-p.workQueues[i]:
			return job
		default:
		}
	}
	return nil
}

// Spawn queues job on the worker with the shortest queue and returns
// without waiting for it. It blocks while every queue is full.
func (p *WorkerPool) Spawn(job Job) error {
	if job == nil {
		return nil
	}

	p.submitMu.RLock()
	defer p.submitMu.RUnlock()
	if !p.running.Load() {
		return ErrPoolClosed
	}

	minLen := len(p.workQueues[0])
	minIdx := 0
	for i := 1; i < p.workers; i++ {
		if qLen := len(p.workQueues[i]); qLen < minLen {
			minLen = qLen
			minIdx = i
		}
	}

	p.workQueues[minIdx] <- job
	return nil
}

// CurrentNumThreads returns the number of workers in the pool.
func (p *WorkerPool) CurrentNumThreads() int {
	return p.workers
}

// Close stops accepting new work, runs everything already queued and waits
// for the workers to exit. Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	p.submitMu.Lock()
	if !p.running.CompareAndSwap(true, false) {
		p.submitMu.Unlock()
		return
	}
	close(p.done)
	p.submitMu.Unlock()

	p.wg.Wait()
}
