// Package metrics provides job metrics collection and reporting.
//
// Metrics collects statistics about job latency, completion/panic rates,
// and throughput (jobs per second). It is thread-safe and optimized for
// high-concurrency scenarios.
//
// # Basic Usage
//
//	m := metrics.New()
//
//	// Record jobs
//	start := time.Now()
//	// ... do work ...
//	m.RecordSuccess(time.Since(start))
//
//	// Get statistics
//	fmt.Printf("Total: %d, Throughput: %.2f, P99: %v\n",
//	    m.TotalJobs(), m.Throughput(), m.P99Latency())
//
// # Prometheus
//
// Collector implements worker.Observer. Attach it to a pool and register it
// on a Prometheus registry:
//
//	c := metrics.NewCollector("taskpool")
//	_ = c.Register(reg)
//	pool, _ := worker.NewPoolWithConfig(worker.PoolConfig{Size: 4, Observer: c})
//	reg.MustRegister(metrics.QueueLengthGauge("taskpool", pool.QueueLen))
//
// # Thread Safety
//
// All operations use atomic counters and are safe for concurrent access.
package metrics
