// Package scenario runs benchmark workloads against a worker pool.
//
// A scenario builds a pool, submits a fixed number of jobs from several
// producer goroutines, shuts the pool down and reports how every job ended.
// Submitted jobs are always accounted for: each one is executed, panicked,
// or stranded when every worker has retired.
//
// # Presets
//
//   - basic: steady load without failures
//   - latency: slow jobs on a small pool
//   - stress: many producers, zero-cost jobs
//   - panic: a share of jobs panic, workers recover
//   - retire: panics retire workers until none are left
//   - quick: short smoke test
//
// # Usage
//
//	config, _ := scenario.GetPreset("panic")
//	engine := scenario.New(config)
//	result, err := engine.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Report())
package scenario
