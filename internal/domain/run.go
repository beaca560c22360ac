package domain

import "time"

// RunState enumerates the lifecycle of one export run. Transitions are
// one-directional; a terminal state may only be followed by a fresh run.
type RunState string

const (
	StateIdle       RunState = "idle"
	StateRunning    RunState = "running"
	StateStopped    RunState = "stopped"
	StateCompleted  RunState = "completed"
	StateFatalError RunState = "fatal_error"
)

// Terminal reports whether the state ends a run.
func (s RunState) Terminal() bool {
	return s == StateStopped || s == StateCompleted || s == StateFatalError
}

// RunStats collects counters for one run. Owned and mutated only by the
// workflow controller; everyone else sees copies.
type RunStats struct {
	FilesProcessed int       `json:"filesProcessed"`
	FilesErrored   int       `json:"filesErrored"`
	FilesSkipped   int       `json:"filesSkipped"`
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime,omitzero"`
}

// ProcessedSet tracks titles already handled (successfully or not) within
// one run. It grows monotonically and is discarded when the run ends.
type ProcessedSet map[string]struct{}

// NewProcessedSet returns an empty set.
func NewProcessedSet() ProcessedSet {
	return ProcessedSet{}
}

// Add marks a title as handled.
func (p ProcessedSet) Add(title string) {
	p[title] = struct{}{}
}

// Has reports whether a title was already handled this run.
func (p ProcessedSet) Has(title string) bool {
	_, ok := p[title]
	return ok
}

// Len returns the number of distinct titles handled.
func (p ProcessedSet) Len() int {
	return len(p)
}

// ProgressEvent is pushed after every per-item completion, success or
// failure, and consumed by the presentation layer.
type ProgressEvent struct {
	RunID        string   `json:"runId"`
	Stats        RunStats `json:"stats"`
	CurrentTitle string   `json:"currentTitle"`
	ItemErrored  bool     `json:"itemErrored"`
}

// CompletionEvent carries the final snapshot of a finished run.
type CompletionEvent struct {
	RunID string   `json:"runId"`
	State RunState `json:"state"`
	Stats RunStats `json:"stats"`
	Error string   `json:"error,omitempty"`
}

// RunRecord is the persisted summary of a finished run.
type RunRecord struct {
	RunID     string    `json:"runId"`
	TargetID  string    `json:"targetId"`
	State     RunState  `json:"state"`
	Stats     RunStats  `json:"stats"`
	CreatedAt time.Time `json:"createdAt"`
}
