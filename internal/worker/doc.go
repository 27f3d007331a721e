// Package worker provides a fixed-size goroutine pool.
//
// A Pool owns a set of long-lived workers that take tasks from a shared
// FIFO queue and run them one at a time. The worker count is fixed when
// the pool is created and never changes.
//
// # Basic Usage
//
//	pool, err := worker.NewPool(4) // 4 workers, already running
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	for i := 0; i < 100; i++ {
//	    if err := pool.Submit(func() {
//	        // do work
//	    }); err != nil {
//	        // pool already shut down
//	    }
//	}
//
//	pool.Shutdown()
//
// # Configuration
//
// Use NewPoolWithConfig to attach a logger, Prometheus metrics or an
// event bus:
//
//	pool, err := worker.NewPoolWithConfig(worker.PoolConfig{
//	    Name:       "images",
//	    NumWorkers: 8,
//	    Metrics:    metrics.New(reg),
//	    Events:     bus,
//	})
//
// # Shutdown
//
// Shutdown rejects new tasks, wakes idle workers and waits for every
// worker to exit. Tasks accepted before Shutdown are still executed,
// and a running task is never interrupted, so a task that never returns
// keeps Shutdown blocked. Close performs the same shutdown and may be
// deferred safely.
//
// # Panics
//
// A panicking task is recovered on its worker, logged, counted and
// reported as a task_panicked event; the worker then takes the next task.
package worker
