package lanes

import (
	"context"
	"time"
)

// Executor runs a single work item. It is invoked on the lane's worker goroutine.
// Returned errors and panics are contained by the worker.
type Executor interface {
	Run(ctx context.Context, item *WorkItem) error
}

// ExecutorFunc adapts a function to the Executor interface
type ExecutorFunc func(ctx context.Context, item *WorkItem) error

// Run calls f(ctx, item)
func (f ExecutorFunc) Run(ctx context.Context, item *WorkItem) error {
	return f(ctx, item)
}

// WorkItem is one unit of submitted work
type WorkItem struct {
	ID          string
	LaneID      int
	Source      string      // human-readable text, shown by introspection
	Payload     interface{} // opaque to the scheduler
	SubmittedAt time.Time

	ctx context.Context
}

// ItemInfo is a stable copy of a pending item's identifying fields
type ItemInfo struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// LaneSnapshot lists the first pending items of one registered lane
type LaneSnapshot struct {
	LaneID int        `json:"lane_id"`
	Items  []ItemInfo `json:"items"`
}

// State is the lifecycle state of a Scheduler
type State int

const (
	StateNeverStarted State = iota
	StateEnabled
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateNeverStarted:
		return "never_started"
	case StateEnabled:
		return "enabled"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// WaitResult reports how a Wait call ended
type WaitResult int

const (
	// WaitNothing means no work was pending when Wait was called
	WaitNothing WaitResult = iota
	// WaitDrained means every lane became empty before the timeout
	WaitDrained
	// WaitTimeout means the timeout elapsed (or the context ended) with work still pending
	WaitTimeout
)

func (r WaitResult) String() string {
	switch r {
	case WaitNothing:
		return "nothing"
	case WaitDrained:
		return "drained"
	case WaitTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Event types emitted by the scheduler
const (
	EventSpawned   = "spawned"
	EventEnqueued  = "enqueued"
	EventStarted   = "started"
	EventCompleted = "completed"
	EventRetired   = "retired"
	EventEnabled   = "enabled"
	EventDisabled  = "disabled"
)

// EventHandler is a function that handles scheduler events
type EventHandler func(event Event)

// Event represents a scheduler event
type Event struct {
	Type      string                 // one of the Event* constants
	LaneID    int                    // the new lane for enabled, 0 for disabled
	ItemID    string                 // empty for lane and lifecycle events
	Data      map[string]interface{} // additional event data
	Timestamp time.Time
}
