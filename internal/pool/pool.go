// Package pool implements the worker pool (C4): a fixed number of isolated
// workers executing one job at a time, with crash detection, backoff
// respawn, and graceful shutdown.
package pool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/icon-forge/iconforge/internal/queue"
)

// Processor executes one job's work. A panic inside Processor is treated
// as a worker crash: the job fails with ErrWorkerCrashed and the worker
// exits so the dispatcher can respawn it.
type Processor func(ctx context.Context, payload interface{}) (interface{}, error)

// ErrWorkerCrashed is the error a job fails with when its worker panics.
var ErrWorkerCrashed = fmt.Errorf("worker crashed while processing job")

const (
	shutdownGrace   = 5 * time.Second
	minRespawnDelay = 50 * time.Millisecond
	maxRespawnDelay = 5 * time.Second
)

type jobMsg struct {
	id      string
	payload interface{}
}

type resultMsg struct {
	workerID int
	id       string
	value    interface{}
	err      error
	crashed  bool
}

type worker struct {
	id       int
	jobs     chan jobMsg
	shutdown chan struct{}
	done     chan struct{}
}

// Pool fans jobs taken from a queue.Queue out to a fixed number of
// goroutine-isolated workers.
type Pool struct {
	size      int
	process   Processor
	logger    zerolog.Logger
	onWorkers func(n int)

	mu          sync.Mutex
	workers     map[int]*worker
	nextWID     int
	crashCounts map[int]int

	results chan resultMsg
	ready   chan int
}

// New creates a Pool of size workers that execute jobs with process.
func New(size int, process Processor, logger zerolog.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		size:        size,
		process:     process,
		logger:      logger,
		workers:     make(map[int]*worker),
		crashCounts: make(map[int]int),
		results:     make(chan resultMsg, size*2),
		ready:       make(chan int, size),
	}
}

// ActiveWorkers reports the current number of live workers, for metrics.
func (p *Pool) ActiveWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// OnActiveWorkersChanged registers a callback invoked whenever the live
// worker count changes, so the caller can update a gauge.
func (p *Pool) OnActiveWorkersChanged(fn func(n int)) {
	p.onWorkers = fn
}

// Run dispatches jobs from q to idle workers until ctx is canceled, then
// shuts the pool down.
func (p *Pool) Run(ctx context.Context, q *queue.Queue) {
	for i := 0; i < p.size; i++ {
		p.spawnWorker(i)
	}
	p.reportActiveWorkers()

	var idle []int

	assign := func() {
		for len(idle) > 0 {
			id, payload, ok := q.Take()
			if !ok {
				break
			}
			wid := idle[0]
			idle = idle[1:]

			p.mu.Lock()
			w, exists := p.workers[wid]
			p.mu.Unlock()
			if !exists {
				// Worker crashed between becoming idle and being assigned; fail
				// this job immediately so it isn't silently dropped.
				q.Fail(id, ErrWorkerCrashed)
				continue
			}
			w.jobs <- jobMsg{id: id, payload: payload}
		}
	}

	for {
		select {
		case <-ctx.Done():
			p.shutdownAll()
			return

		case wid := <-p.ready:
			idle = append(idle, wid)
			assign()

		case res := <-p.results:
			// The worker that produced this result re-announces itself as
			// idle via p.ready once runWorker regains control; this branch
			// only settles the job's outcome and must not also add it to
			// idle, or the dispatcher would assign it a job while the
			// worker is still busy.
			if res.crashed {
				q.Fail(res.id, ErrWorkerCrashed)
				p.removeWorker(res.workerID)
				go p.respawnWithBackoff(res.workerID)
			} else if res.err != nil {
				q.Fail(res.id, res.err)
				p.resetCrashCount(res.workerID)
			} else {
				q.Complete(res.id, res.value)
				p.resetCrashCount(res.workerID)
			}
			assign()

		case <-q.Notify():
			assign()
		}
	}
}

func (p *Pool) spawnWorker(id int) {
	w := &worker{
		id:       id,
		jobs:     make(chan jobMsg),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	p.mu.Lock()
	p.workers[id] = w
	p.mu.Unlock()

	go p.runWorker(w)
}

func (p *Pool) runWorker(w *worker) {
	defer close(w.done)
	p.ready <- w.id

	for {
		select {
		case <-w.shutdown:
			return
		case job := <-w.jobs:
			p.executeJob(w, job)
			select {
			case <-w.shutdown:
				return
			default:
				p.ready <- w.id
			}
		}
	}
}

func (p *Pool) executeJob(w *worker, job jobMsg) {
	var (
		value   interface{}
		err     error
		crashed bool
	)

	func() {
		defer func() {
			if r := recover(); r != nil {
				crashed = true
				p.logger.Error().
					Interface("panic", r).
					Str("job_id", job.id).
					Bytes("stack", debug.Stack()).
					Msg("worker panicked while processing job")
			}
		}()
		value, err = p.process(context.Background(), job.payload)
	}()

	p.results <- resultMsg{workerID: w.id, id: job.id, value: value, err: err, crashed: crashed}

	if crashed {
		// The worker goroutine must exit after a crash so the dispatcher's
		// view of live workers matches reality; runWorker returns next.
		close(w.shutdown)
	}
}

func (p *Pool) removeWorker(id int) {
	p.mu.Lock()
	delete(p.workers, id)
	p.mu.Unlock()
	p.reportActiveWorkers()
}

// resetCrashCount clears a worker's consecutive-crash count after it
// completes a job without panicking.
func (p *Pool) resetCrashCount(id int) {
	p.mu.Lock()
	delete(p.crashCounts, id)
	p.mu.Unlock()
}

// respawnWithBackoff respawns worker id after a delay that doubles with
// each consecutive crash (capped at maxRespawnDelay), so a worker that
// crashes repeatedly on restart doesn't spin the dispatcher in a tight loop.
func (p *Pool) respawnWithBackoff(id int) {
	p.mu.Lock()
	p.crashCounts[id]++
	count := p.crashCounts[id]
	p.mu.Unlock()

	delay := minRespawnDelay << (count - 1)
	if delay > maxRespawnDelay || delay <= 0 {
		delay = maxRespawnDelay
	}
	time.Sleep(delay)
	p.spawnWorker(id)
	p.reportActiveWorkers()
}

func (p *Pool) reportActiveWorkers() {
	if p.onWorkers != nil {
		p.onWorkers(p.ActiveWorkers())
	}
}

// shutdownAll signals every worker to stop, waiting up to shutdownGrace per
// worker before giving up on it.
func (p *Pool) shutdownAll() {
	p.mu.Lock()
	workers := make([]*worker, 0, len(p.workers))
	for _, w := range p.workers {
		workers = append(workers, w)
	}
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(w *worker) {
			defer wg.Done()
			select {
			case <-w.shutdown:
			default:
				close(w.shutdown)
			}
			select {
			case <-w.done:
			case <-time.After(shutdownGrace):
				p.logger.Warn().Int("worker_id", w.id).Msg("worker did not exit within shutdown grace period")
			}
		}(w)
	}
	wg.Wait()
}
