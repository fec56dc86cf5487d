package automation

import "time"

// State is the lifecycle state of a run.
//
//	ready → running ⇄ paused → completed | cancelled | faulted
type State string

const (
	StateReady     State = "ready"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFaulted   State = "faulted"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateFaulted:
		return true
	default:
		return false
	}
}

// TeardownKind is the kind recorded for errors raised by the instance sweep.
const TeardownKind = "teardown"

// RunError is a failure recorded during a run.
// Index is the 1-based command position, or 0 for teardown errors.
type RunError struct {
	Index   int       `json:"index"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Result is the outcome of a finished run.
type Result struct {
	RunID string `json:"run_id"`
	Name  string `json:"name,omitempty"`
	State State  `json:"state"`

	// Command counts
	Total    int `json:"total"`
	Executed int `json:"executed"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"` // disabled commands

	Errors    []RunError        `json:"errors,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	DurationMS  *int64     `json:"duration_ms,omitempty"`
}

// Status is a point-in-time view of a run, safe to hand to other goroutines.
type Status struct {
	RunID           string         `json:"run_id"`
	Name            string         `json:"name,omitempty"`
	State           State          `json:"state"`
	Position        int            `json:"position"` // 1-based index of the current command, 0 before the first
	Total           int            `json:"total"`
	CurrentKind     string         `json:"current_kind,omitempty"`
	PauseRequested  bool           `json:"pause_requested"`
	CancelRequested bool           `json:"cancel_requested"`
	CancellationKey string         `json:"cancellation_key,omitempty"`
	Errors          []RunError     `json:"errors,omitempty"`
	Instances       []InstanceInfo `json:"instances,omitempty"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

// Event types published while a run progresses. They double as WebSocket
// channel names.
const (
	EventRunState        = "run.state"
	EventCommandStarted  = "command.started"
	EventCommandComplete = "command.completed"
	EventCommandFailed   = "command.failed"
	EventRunFinished     = "run.finished"
)

// Event is a progress notification for hubs and publishers.
type Event struct {
	Type       string    `json:"type"`
	RunID      string    `json:"run_id"`
	Name       string    `json:"name,omitempty"`
	State      State     `json:"state"`
	Index      int       `json:"index,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	Message    string    `json:"message,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Time       time.Time `json:"time"`
}

// CommandMetric is one measured command execution.
type CommandMetric struct {
	RunID     string
	Index     int
	Kind      string
	Succeeded bool
	Duration  time.Duration
	Time      time.Time
}
