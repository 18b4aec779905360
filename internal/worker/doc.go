// Package worker provides a fixed-size goroutine pool for concurrent job execution.
//
// The Pool manages a fixed number of worker goroutines that take jobs from a
// shared, unbounded FIFO queue. Every job accepted by Execute runs exactly
// once; Shutdown closes the queue, lets the workers drain what is already
// queued, and joins every worker before returning.
//
// # Basic Usage
//
//	pool, err := worker.NewPool(4) // 4 workers
//	if err != nil {
//	    return err
//	}
//	defer pool.Shutdown()
//
//	for i := 0; i < 100; i++ {
//	    if err := pool.Execute(func() {
//	        // do work
//	    }); err != nil {
//	        return err
//	    }
//	}
//
// # Configuration
//
// Use NewPoolWithConfig to attach an Observer or change the panic policy:
//
//	pool, err := worker.NewPoolWithConfig(worker.PoolConfig{
//	    Size:        8,
//	    PanicPolicy: worker.PanicRetire,
//	    Observer:    obs,
//	})
//
// # Failure Isolation
//
// A job that panics is converted into a *PanicError and reported to the
// Observer. Under PanicRecover (the default) the worker keeps serving the
// queue. Under PanicRetire the worker exits, permanently shrinking the pool;
// once no worker is left Execute returns ErrNoWorkers.
//
// # Shutdown
//
// Shutdown moves the pool from Running to Closing to Terminated. It is safe
// to call more than once and from several goroutines; every call returns only
// after all workers have exited. A job that never returns blocks Shutdown.
// ShutdownContext bounds the wait with a context instead.
//
// Done returns a channel that is closed once the pool is Terminated, so a
// goroutine that did not call Shutdown can still wait for it:
//
//	go func() {
//	    <-pool.Done()
//	    log.Println("pool terminated")
//	}()
package worker
