package worker

import "time"

// Observer receives pool lifecycle events.
// Calls are made from worker goroutines and must be safe for concurrent use.
type Observer interface {
	// WorkerStart is called once when a worker begins serving the queue.
	WorkerStart(id int)
	// JobBegin is called right before a worker runs a job.
	JobBegin(id int)
	// JobEnd is called after the job returns. err is a *PanicError when the job panicked.
	JobEnd(id int, elapsed time.Duration, err error)
	// WorkerShutdown is called once when a worker exits. cause is nil when the
	// worker drained a closed queue and the *PanicError when it was retired.
	WorkerShutdown(id int, cause error)
}

// NopObserver ignores every event. Embed it to implement only part of Observer.
type NopObserver struct{}

func (NopObserver) WorkerStart(int)                  {}
func (NopObserver) JobBegin(int)                     {}
func (NopObserver) JobEnd(int, time.Duration, error) {}
func (NopObserver) WorkerShutdown(int, error)        {}

// Observers fans every event out to each observer in order.
type Observers []Observer

func (o Observers) WorkerStart(id int) {
	for _, obs := range o {
		obs.WorkerStart(id)
	}
}

func (o Observers) JobBegin(id int) {
	for _, obs := range o {
		obs.JobBegin(id)
	}
}

func (o Observers) JobEnd(id int, elapsed time.Duration, err error) {
	for _, obs := range o {
		obs.JobEnd(id, elapsed, err)
	}
}

func (o Observers) WorkerShutdown(id int, cause error) {
	for _, obs := range o {
		obs.WorkerShutdown(id, cause)
	}
}

var (
	_ Observer = NopObserver{}
	_ Observer = Observers(nil)
)
