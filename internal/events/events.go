// Package events provides an event system for worker pool notifications.
package events

import (
	"time"

	"taskpool/internal/worker"
)

// EventType represents the type of event
type EventType string

const (
	// EventWorkerStart is emitted when a worker begins serving the queue
	EventWorkerStart EventType = "worker_start"
	// EventJobBegin is emitted when a worker takes a job
	EventJobBegin EventType = "job_begin"
	// EventJobEnd is emitted when a job returns normally
	EventJobEnd EventType = "job_end"
	// EventJobPanic is emitted when a job panics
	EventJobPanic EventType = "job_panic"
	// EventWorkerShutdown is emitted when a worker drains the closed queue and exits
	EventWorkerShutdown EventType = "worker_shutdown"
	// EventWorkerLost is emitted when a worker is retired after a panic
	EventWorkerLost EventType = "worker_lost"
)

// Event represents a pool lifecycle event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	WorkerID  int       `json:"worker_id"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	Elapsed string `json:"elapsed,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewWorkerStartEvent creates a worker start event
func NewWorkerStartEvent(workerID int) Event {
	return Event{
		Type:      EventWorkerStart,
		Timestamp: time.Now(),
		WorkerID:  workerID,
	}
}

// NewJobBeginEvent creates a job begin event
func NewJobBeginEvent(workerID int) Event {
	return Event{
		Type:      EventJobBegin,
		Timestamp: time.Now(),
		WorkerID:  workerID,
	}
}

// NewJobEndEvent creates a job end event, or a job panic event when err is set
func NewJobEndEvent(workerID int, elapsed time.Duration, err error) Event {
	event := Event{
		Type:      EventJobEnd,
		Timestamp: time.Now(),
		WorkerID:  workerID,
		Data: EventData{
			Elapsed: elapsed.String(),
		},
	}
	if err != nil {
		event.Type = EventJobPanic
		event.Data.Error = err.Error()
	}
	return event
}

// NewWorkerShutdownEvent creates a worker shutdown event, or a worker lost
// event when the worker exited because of cause
func NewWorkerShutdownEvent(workerID int, cause error) Event {
	event := Event{
		Type:      EventWorkerShutdown,
		Timestamp: time.Now(),
		WorkerID:  workerID,
	}
	if cause != nil {
		event.Type = EventWorkerLost
		event.Data.Error = cause.Error()
	}
	return event
}

// Observer publishes pool events to a Bus
type Observer struct {
	bus *Bus
}

var _ worker.Observer = (*Observer)(nil)

// NewObserver creates an Observer publishing to bus
func NewObserver(bus *Bus) *Observer {
	return &Observer{bus: bus}
}

func (o *Observer) WorkerStart(id int) {
	o.bus.Publish(NewWorkerStartEvent(id))
}

func (o *Observer) JobBegin(id int) {
	o.bus.Publish(NewJobBeginEvent(id))
}

func (o *Observer) JobEnd(id int, elapsed time.Duration, err error) {
	o.bus.Publish(NewJobEndEvent(id, elapsed, err))
}

func (o *Observer) WorkerShutdown(id int, cause error) {
	o.bus.Publish(NewWorkerShutdownEvent(id, cause))
}

// IsFailure reports whether the event signals a job panic or a lost worker
func (e Event) IsFailure() bool {
	return e.Type == EventJobPanic || e.Type == EventWorkerLost
}
