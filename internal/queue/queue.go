package queue

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Enqueue once the queue has been closed.
var ErrClosed = errors.New("queue: closed")

// Task is a unit of work with no arguments and no result.
type Task func()

// Queue is an unbounded FIFO of tasks guarded by one lock.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  []Task
	closed bool
}

// New creates an empty, open queue.
func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends task to the back and wakes one waiting consumer.
func (q *Queue) Enqueue(task Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.tasks = append(q.tasks, task)
	q.mu.Unlock()

	q.cond.Signal()
	return nil
}

// Dequeue removes and returns the front task, blocking while the queue is
// empty and open. It returns false when the queue is closed and drained.
func (q *Queue) Dequeue() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.tasks) == 0 && !q.closed {
		q.cond.Wait()
	}

	if len(q.tasks) == 0 {
		return nil, false
	}

	task := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	if len(q.tasks) == 0 {
		q.tasks = nil
	}
	return task, true
}

// Close marks the queue closed and wakes every waiting consumer.
// It reports whether this call performed the transition.
func (q *Queue) Close() bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.closed = true
	q.mu.Unlock()

	q.cond.Broadcast()
	return true
}

// Len returns the number of pending tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
