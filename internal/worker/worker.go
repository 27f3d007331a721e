package worker

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"threadpool/internal/events"
	"threadpool/internal/logger"
	"threadpool/internal/metrics"
	"threadpool/internal/queue"
)

var (
	// ErrInvalidSize is returned when a pool is configured with fewer than one worker.
	ErrInvalidSize = errors.New("worker: pool size must be at least 1")
	// ErrPoolClosed is returned by Submit once shutdown has begun.
	ErrPoolClosed = errors.New("worker: pool is shut down")
	// ErrNilTask is returned by Submit for a nil task.
	ErrNilTask = errors.New("worker: nil task")
)

// Task is a unit of work executed by the pool.
type Task = queue.Task

// PoolConfig configures a pool.
type PoolConfig struct {
	Name       string // label used in logs and metrics; defaults to the pool ID
	NumWorkers int    // must be at least 1

	Logger  *logger.Logger   // defaults to logger.Default
	Metrics *metrics.Metrics // optional
	Events  *events.Bus      // optional
}

// DefaultPoolConfig returns a single-worker configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		NumWorkers: 1,
	}
}

// handle is the pool's reference to one worker goroutine.
type handle struct {
	id   int
	done chan struct{}
}

// Pool runs tasks on a fixed set of worker goroutines.
type Pool struct {
	id         string
	name       string
	numWorkers int

	queue *queue.Queue

	stopMu sync.Mutex // serializes Shutdown

	mu      sync.Mutex
	workers []*handle

	alive atomic.Int32
	busy  atomic.Int32

	log     *logger.Logger
	metrics *metrics.Metrics
	events  *events.Bus
}

// NewPool starts a pool of numWorkers workers.
func NewPool(numWorkers int) (*Pool, error) {
	config := DefaultPoolConfig()
	config.NumWorkers = numWorkers
	return NewPoolWithConfig(config)
}

// NewPoolWithConfig starts a pool described by config. Every worker has
// been spawned when it returns.
func NewPoolWithConfig(config PoolConfig) (*Pool, error) {
	if config.NumWorkers < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, config.NumWorkers)
	}

	id := uuid.NewString()
	name := config.Name
	if name == "" {
		name = id
	}
	log := config.Logger
	if log == nil {
		log = logger.Default
	}

	p := &Pool{
		id:         id,
		name:       name,
		numWorkers: config.NumWorkers,
		queue:      queue.New(),
		workers:    make([]*handle, config.NumWorkers),
		log:        log,
		metrics:    config.Metrics,
		events:     config.Events,
	}

	for i := range p.workers {
		h := &handle{id: i + 1, done: make(chan struct{})}
		p.workers[i] = h
		p.alive.Add(1)
		go p.run(h)
	}

	if p.metrics != nil {
		p.metrics.SetWorkers(p.name, p.numWorkers)
		p.metrics.SetQueueSize(p.name, 0)
		p.metrics.SetBusy(p.name, 0)
	}
	p.events.Publish(events.NewPoolStartedEvent(p.id, p.numWorkers))
	p.log.Info(p.name, "pool started with %d workers", p.numWorkers)

	return p, nil
}

// run is the worker loop: dequeue and execute until the queue reports
// closed and drained.
func (p *Pool) run(h *handle) {
	defer close(h.done)
	defer func() {
		left := p.alive.Add(-1)
		if p.metrics != nil {
			p.metrics.SetWorkers(p.name, int(left))
		}
		p.events.Publish(events.NewWorkerExitedEvent(p.id, h.id))
		p.log.Debug(p.name, "worker %d exited", h.id)
	}()

	for {
		task, ok := p.queue.Dequeue()
		if !ok {
			return
		}
		if p.metrics != nil {
			p.metrics.SetQueueSize(p.name, p.queue.Len())
		}
		p.execute(h, task)
	}
}

// execute runs one task and isolates a panic to that task.
func (p *Pool) execute(h *handle, task Task) {
	start := time.Now()
	p.setBusy(p.busy.Add(1))

	defer func() {
		r := recover()
		elapsed := time.Since(start)
		p.setBusy(p.busy.Add(-1))

		if r == nil {
			if p.metrics != nil {
				p.metrics.RecordCompleted(p.name, elapsed)
			}
			return
		}

		err := fmt.Errorf("task panicked: %v", r)
		p.log.Error(p.name, "worker %d: %v", h.id, err)
		if p.metrics != nil {
			p.metrics.RecordPanicked(p.name, elapsed)
		}
		p.events.Publish(events.NewTaskPanickedEvent(p.id, h.id, err))
	}()

	task()
}

func (p *Pool) setBusy(n int32) {
	if p.metrics != nil {
		p.metrics.SetBusy(p.name, int(n))
	}
}

// Submit queues task for execution. It fails with ErrPoolClosed once
// shutdown has begun; the task is then never queued or run.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}

	if err := p.queue.Enqueue(task); err != nil {
		if p.metrics != nil {
			p.metrics.RecordRejected(p.name)
		}
		p.events.Publish(events.NewTaskRejectedEvent(p.id, ErrPoolClosed))
		p.log.Warn(p.name, "task rejected: %v", ErrPoolClosed)
		return ErrPoolClosed
	}

	if p.metrics != nil {
		p.metrics.RecordSubmitted(p.name)
		p.metrics.SetQueueSize(p.name, p.queue.Len())
	}
	return nil
}

// Shutdown stops accepting tasks, wakes every idle worker and waits for
// all of them to exit. Tasks accepted before the call are still run.
// Concurrent and repeated calls block until the first one has finished.
func (p *Pool) Shutdown() {
	p.stopMu.Lock()
	defer p.stopMu.Unlock()

	p.mu.Lock()
	workers := p.workers
	p.mu.Unlock()
	if workers == nil {
		return
	}

	p.events.Publish(events.NewPoolStoppingEvent(p.id, len(workers)))
	p.log.Info(p.name, "pool stopping")

	p.queue.Close()
	for _, h := range workers {
		<-h.done
	}

	p.mu.Lock()
	p.workers = nil
	p.mu.Unlock()

	// exit-time gauge updates can land out of order
	if p.metrics != nil {
		p.metrics.SetWorkers(p.name, p.Alive())
		p.metrics.SetBusy(p.name, p.Busy())
		p.metrics.SetQueueSize(p.name, p.queue.Len())
	}
	p.events.Publish(events.NewPoolStoppedEvent(p.id))
	p.log.Info(p.name, "pool stopped")
}

// Close shuts the pool down if it is still running.
func (p *Pool) Close() error {
	p.Shutdown()
	return nil
}

// ID returns the pool's unique identifier.
func (p *Pool) ID() string {
	return p.id
}

// Name returns the pool's label.
func (p *Pool) Name() string {
	return p.name
}

// NumWorkers returns the configured worker count.
func (p *Pool) NumWorkers() int {
	return p.numWorkers
}

// Workers returns the number of worker handles still owned by the pool.
// It drops to zero once Shutdown has joined every worker.
func (p *Pool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Alive returns the number of worker goroutines still in their loop.
func (p *Pool) Alive() int {
	return int(p.alive.Load())
}

// Busy returns the number of workers currently executing a task.
func (p *Pool) Busy() int {
	return int(p.busy.Load())
}

// QueueSize returns the number of tasks waiting for a worker.
func (p *Pool) QueueSize() int {
	return p.queue.Len()
}

// Running reports whether the pool still accepts tasks.
func (p *Pool) Running() bool {
	return !p.queue.Closed()
}
