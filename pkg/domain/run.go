package domain

import "time"

// RunStatus is the lifecycle status of a recorded execution.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// RunRecord captures one execution of a rule: its outcome, the final
// context and the ordered event trace.
type RunRecord struct {
	ID         string         `json:"id"`
	Rule       string         `json:"rule"`
	Status     RunStatus      `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at,omitzero"`
	Error      string         `json:"error,omitempty"`
	Context    map[string]any `json:"context,omitempty"`
	Trace      []TraceEntry   `json:"trace,omitempty"`
}

// NewRunRecord starts a record in the running state.
func NewRunRecord(id, rule string) *RunRecord {
	return &RunRecord{
		ID:        id,
		Rule:      rule,
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
		Context:   make(map[string]any),
	}
}

// Duration is the wall time of a finished run, zero while running.
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
