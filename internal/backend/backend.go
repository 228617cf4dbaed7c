package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Status is the lifecycle status reported by a generation backend.
type Status string

const (
	StatusStarting   Status = "starting"
	StatusSubmitted  Status = "submitted"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
	StatusTimedOut   Status = "timed_out"
)

// IsTerminal reports whether the backend will not change the status again.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCanceled || s == StatusTimedOut
}

// Input is the model input sent with every prediction.
type Input struct {
	Image             string  `json:"image"`
	Prompt            string  `json:"prompt"`
	NegativePrompt    string  `json:"negative_prompt"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
	Strength          float64 `json:"strength"`
	NumOutputs        int     `json:"num_outputs"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
}

// Request asks a backend to start one generation.
type Request struct {
	StyleID string
	Input   Input
}

// Output is a prediction output. Backends report either a single URL or a
// list of URLs.
type Output []string

// UnmarshalJSON accepts a string, an array of strings or null.
func (o *Output) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}
	if data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*o = Output{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("unsupported prediction output: %w", err)
	}
	*o = Output(many)
	return nil
}

// First returns the canonical result URL: the first non-empty element.
func (o Output) First() string {
	for _, u := range o {
		if u = strings.TrimSpace(u); u != "" {
			return u
		}
	}
	return ""
}

// Prediction is a snapshot of a remote job.
type Prediction struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	Output Output `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Backend is the remote generation service.
type Backend interface {
	// Create starts a prediction and returns its initial snapshot.
	Create(ctx context.Context, req Request) (*Prediction, error)
	// Get returns the current snapshot of a prediction.
	Get(ctx context.Context, id string) (*Prediction, error)
	// Cancel asks the backend to stop a prediction.
	Cancel(ctx context.Context, id string) error
	// Wait blocks until the prediction is terminal or ctx is done.
	Wait(ctx context.Context, id string) (*Prediction, error)
}

// APIError is returned when the backend answered with a non-2xx status.
// Any other error from a Backend means the backend could not be reached.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Detail)
}

// IsAPIError reports whether err carries a backend rejection.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
