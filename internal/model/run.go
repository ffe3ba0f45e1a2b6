package model

import "time"

// StepStatus is the lifecycle state of a recorded pipeline step.
type StepStatus string

const (
	StepStatusRunning   StepStatus = "running"
	StepStatusSucceeded StepStatus = "succeeded"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// StepResult captures the outcome of a pipeline step for the run ledger.
type StepResult struct {
	Status     StepStatus `json:"status"`
	Documents  int        `json:"documents,omitempty"`
	Errors     int        `json:"errors,omitempty"`
	CostUSD    float64    `json:"cost_usd,omitempty"`
	Error      string     `json:"error,omitempty"`
	DurationMS int64      `json:"duration_ms,omitempty"`
}

// PipelineRun is one ledger entry: a single pipeline step executed for a loan.
type PipelineRun struct {
	ID         string      `json:"id"`
	LoanID     string      `json:"loan_id"`
	Step       string      `json:"step"`
	Status     StepStatus  `json:"status"`
	Result     *StepResult `json:"result,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}
