// Package queue provides the synchronized FIFO that feeds a worker pool.
//
// A Queue holds pending tasks behind a single mutex and a condition
// variable. Producers never block beyond the lock hold time; consumers
// suspend in Dequeue until a task arrives or the queue is closed.
//
// # Basic Usage
//
//	q := queue.New()
//
//	// producer
//	if err := q.Enqueue(func() { fmt.Println("hello") }); err != nil {
//	    // queue closed
//	}
//
//	// consumer
//	for {
//	    task, ok := q.Dequeue()
//	    if !ok {
//	        return // closed and empty
//	    }
//	    task()
//	}
//
// # Closing
//
// Close wakes every waiting consumer. Tasks already queued are still
// handed out; Dequeue reports the exit sentinel only once the queue is
// both closed and empty. Enqueue after Close returns ErrClosed.
package queue
