package model

import (
	"encoding/json"
	"time"
)

// Task status constants. They mirror the future states so that a persisted
// record always reflects what a caller would observe on the handle.
const (
	StatusPending  = "pending"
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusAborted  = "aborted"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning: true,
		StatusAborted: true,
	},
	StatusRunning: {
		StatusFinished: true,
		StatusAborted:  true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// IsTerminal reports whether no further transitions are possible from status.
func IsTerminal(status string) bool {
	return status == StatusFinished || status == StatusAborted
}

// TaskRecord is the persisted view of a task submitted to the planner.
type TaskRecord struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Engine     string          `json:"engine"`
	Status     string          `json:"status"`
	WorkingDir string          `json:"working_dir"`
	StdoutPath string          `json:"stdout_path,omitempty"`
	StderrPath string          `json:"stderr_path,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMS *int            `json:"duration_ms,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}
