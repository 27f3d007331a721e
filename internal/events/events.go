// Package events publishes worker pool lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies what happened.
type EventType string

const (
	// EventPoolStarted is emitted once every worker has been spawned
	EventPoolStarted EventType = "pool_started"
	// EventPoolStopping is emitted when shutdown begins
	EventPoolStopping EventType = "pool_stopping"
	// EventPoolStopped is emitted after every worker has been joined
	EventPoolStopped EventType = "pool_stopped"
	// EventWorkerExited is emitted when a worker leaves its loop
	EventWorkerExited EventType = "worker_exited"
	// EventTaskPanicked is emitted when a task panics on a worker
	EventTaskPanicked EventType = "task_panicked"
	// EventTaskRejected is emitted when Submit refuses a task
	EventTaskRejected EventType = "task_rejected"
)

// Event is a single pool notification.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	PoolID    string    `json:"pool_id"`
	Data      EventData `json:"data,omitempty"`
}

// EventData carries the event-specific fields.
type EventData struct {
	WorkerID int    `json:"worker_id,omitempty"`
	Workers  int    `json:"workers,omitempty"`
	Error    string `json:"error,omitempty"`
}

func newEvent(t EventType, poolID string, data EventData) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now(),
		PoolID:    poolID,
		Data:      data,
	}
}

// NewPoolStartedEvent creates a pool_started event.
func NewPoolStartedEvent(poolID string, workers int) Event {
	return newEvent(EventPoolStarted, poolID, EventData{Workers: workers})
}

// NewPoolStoppingEvent creates a pool_stopping event.
func NewPoolStoppingEvent(poolID string, workers int) Event {
	return newEvent(EventPoolStopping, poolID, EventData{Workers: workers})
}

// NewPoolStoppedEvent creates a pool_stopped event.
func NewPoolStoppedEvent(poolID string) Event {
	return newEvent(EventPoolStopped, poolID, EventData{})
}

// NewWorkerExitedEvent creates a worker_exited event.
func NewWorkerExitedEvent(poolID string, workerID int) Event {
	return newEvent(EventWorkerExited, poolID, EventData{WorkerID: workerID})
}

// NewTaskPanickedEvent creates a task_panicked event.
func NewTaskPanickedEvent(poolID string, workerID int, err error) Event {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	return newEvent(EventTaskPanicked, poolID, EventData{WorkerID: workerID, Error: errMsg})
}

// NewTaskRejectedEvent creates a task_rejected event.
func NewTaskRejectedEvent(poolID string, err error) Event {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	return newEvent(EventTaskRejected, poolID, EventData{Error: errMsg})
}
