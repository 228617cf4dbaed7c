package models

import "time"

// JobState is the lifecycle state of a generation job.
type JobState string

const (
	StateSubmitted  JobState = "submitted"
	StateProcessing JobState = "processing"
	StateSucceeded  JobState = "succeeded"
	StateFailed     JobState = "failed"
	StateCanceled   JobState = "canceled"
	StateTimedOut   JobState = "timed_out"
)

// IsTerminal reports whether no further transition can leave the state.
func (s JobState) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCanceled, StateTimedOut:
		return true
	default:
		return false
	}
}

// FailureCause tells a backend-reported failure apart from a failure to reach
// the backend at all.
type FailureCause string

const (
	CauseBackend   FailureCause = "backend"
	CauseTransport FailureCause = "transport"
)

// Job is one in-flight or completed remote generation.
type Job struct {
	ID          string       `json:"id"`
	State       JobState     `json:"state"`
	StyleID     string       `json:"style_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Attempts    int          `json:"attempts"`
	Progress    int          `json:"progress"`
	ResultURL   string       `json:"result_url,omitempty"`
	ErrorDetail string       `json:"error_detail,omitempty"`
	Cause       FailureCause `json:"cause,omitempty"`
}

// ProgressEvent is emitted while a job is driven to completion. A stream of
// events carries exactly one event with Terminal set, and it is the last one.
type ProgressEvent struct {
	JobID    string   `json:"jobId"`
	State    JobState `json:"status"`
	Progress int      `json:"progress"`
	Attempt  int      `json:"attempt,omitempty"`
	Terminal bool     `json:"terminal"`
	ImageURL string   `json:"imageUrl,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// TerminalEvent builds the final event for a job that reached a terminal state.
func TerminalEvent(job Job) ProgressEvent {
	return ProgressEvent{
		JobID:    job.ID,
		State:    job.State,
		Progress: job.Progress,
		Attempt:  job.Attempts,
		Terminal: true,
		ImageURL: job.ResultURL,
		Error:    job.ErrorDetail,
	}
}
