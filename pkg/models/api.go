package models

import "time"

// GenerateRequest is the relay's POST /generate body. Image is a data URL.
type GenerateRequest struct {
	Image string `json:"image" validate:"required"`
	Style string `json:"style" validate:"required"`
}

// GenerateResponse is returned by POST /generate in async mode.
type GenerateResponse struct {
	JobID  string   `json:"jobId"`
	Status JobState `json:"status"`
}

// SyncResponse is returned by POST /generate in sync mode.
type SyncResponse struct {
	JobID    string `json:"jobId,omitempty"`
	ImageURL string `json:"imageUrl"`
}

// StatusResponse is returned by GET /status/{jobId}.
type StatusResponse struct {
	JobID    string   `json:"jobId"`
	Status   JobState `json:"status"`
	Progress *int     `json:"progress,omitempty"`
	ImageURL string   `json:"imageUrl,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// CancelResponse is returned by POST /cancel/{jobId}.
type CancelResponse struct {
	Status JobState `json:"status"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// StyleSummary is the public view of a style.
type StyleSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

// SummaryOf returns the public view of a style definition.
func SummaryOf(s StyleDefinition) StyleSummary {
	return StyleSummary{ID: s.ID, Name: s.Name, Prompt: s.Prompt}
}

// StylesResponse is returned by GET /styles.
type StylesResponse struct {
	Styles []StyleSummary `json:"styles"`
}

// ErrorResponse is the body of every non-2xx relay response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// StatusFromJob converts a job snapshot into its wire form.
func StatusFromJob(job Job) StatusResponse {
	resp := StatusResponse{
		JobID:    job.ID,
		Status:   job.State,
		ImageURL: job.ResultURL,
		Error:    job.ErrorDetail,
	}
	if job.State == StateSucceeded || !job.State.IsTerminal() {
		progress := job.Progress
		resp.Progress = &progress
	}
	return resp
}
