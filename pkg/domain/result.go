package domain

import "time"

// ExecutionStatus defines the current mode of a run.
type ExecutionStatus string

const (
	StatusRunning       ExecutionStatus = "running"        // Executing step nodes
	StatusAwaitingTools ExecutionStatus = "awaiting_tools" // Inside a tool node, dispatching calls
	StatusDone          ExecutionStatus = "done"           // Terminal marker reached
	StatusFailed        ExecutionStatus = "failed"         // Halted by a run error
)

// Terminal reports whether no further transition can happen.
func (s ExecutionStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// StatusChange records one transition of the run state machine.
type StatusChange struct {
	From ExecutionStatus `json:"from"`
	To   ExecutionStatus `json:"to"`
	// Node is the node being entered (or End) when the change happened.
	Node string `json:"node"`
	Step int    `json:"step"`
}

// Result is the outcome of one run.
type Result struct {
	RunID  string          `json:"run_id"`
	Status ExecutionStatus `json:"status"`

	// State is the final state on Done, or the last merged state on Failed.
	State State `json:"state"`

	// Path lists the visited nodes in execution order.
	Path []string `json:"path"`

	// Steps counts node invocations.
	Steps int `json:"steps"`

	Transitions []StatusChange `json:"transitions"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Err carries the original cause when Status is StatusFailed.
	Err error `json:"-"`
}

// Done reports whether the run completed successfully.
func (r *Result) Done() bool {
	return r != nil && r.Status == StatusDone
}

// Visited reports whether node appears in the path.
func (r *Result) Visited(node string) bool {
	for _, n := range r.Path {
		if n == node {
			return true
		}
	}
	return false
}
