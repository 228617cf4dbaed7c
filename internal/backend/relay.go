package backend

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RelayOptions configures a client for another arqia relay.
type RelayOptions struct {
	BaseURL        string
	HTTPClient     *http.Client
	Logger         *zap.Logger
	RequestTimeout time.Duration
}

// Relay forwards generations to a remote relay, keeping provider credentials
// off the calling host.
type Relay struct {
	baseURL        string
	requestTimeout time.Duration
	httpClient     *http.Client
	logger         *zap.Logger
}

type relayGenerate struct {
	Image string `json:"image"`
	Style string `json:"style"`
}

type relayStatus struct {
	JobID    string `json:"jobId"`
	Status   string `json:"status"`
	ImageURL string `json:"imageUrl"`
	Error    string `json:"error"`
}

// NewRelay constructs a relay client. BaseURL includes the API prefix, for
// example http://localhost:3001/api.
func NewRelay(opts RelayOptions) *Relay {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		requestTimeout: timeout,
		httpClient:     httpClient,
		logger:         logger,
	}
}

// Create submits the image and style; the relay composes the prompt itself.
func (r *Relay) Create(ctx context.Context, req Request) (*Prediction, error) {
	ctx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	defer cancel()

	var status relayStatus
	body := relayGenerate{Image: req.Input.Image, Style: req.StyleID}
	if err := doJSON(ctx, r.httpClient, http.MethodPost, r.baseURL+"/generate", nil, body, &status); err != nil {
		return nil, err
	}

	r.logger.Debug("Relay accepted job", zap.String("job_id", status.JobID))
	return status.prediction(), nil
}

// Get queries the relay for the job status.
func (r *Relay) Get(ctx context.Context, id string) (*Prediction, error) {
	ctx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	defer cancel()
	return r.status(ctx, id, false)
}

// Wait asks the relay to block until the job is terminal. Only ctx bounds it.
func (r *Relay) Wait(ctx context.Context, id string) (*Prediction, error) {
	return r.status(ctx, id, true)
}

// Cancel asks the relay to cancel the job.
func (r *Relay) Cancel(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	defer cancel()
	return doJSON(ctx, r.httpClient, http.MethodPost, r.baseURL+"/cancel/"+url.PathEscape(id), nil, nil, nil)
}

func (r *Relay) status(ctx context.Context, id string, wait bool) (*Prediction, error) {
	endpoint := r.baseURL + "/status/" + url.PathEscape(id)
	if wait {
		endpoint += "?wait=true"
	}

	var status relayStatus
	if err := doJSON(ctx, r.httpClient, http.MethodGet, endpoint, nil, nil, &status); err != nil {
		return nil, err
	}
	if status.JobID == "" {
		status.JobID = id
	}
	return status.prediction(), nil
}

func (s relayStatus) prediction() *Prediction {
	pred := &Prediction{ID: s.JobID, Error: s.Error}
	if s.ImageURL != "" {
		pred.Output = Output{s.ImageURL}
	}

	switch s.Status {
	case "succeeded", "completed":
		pred.Status = StatusSucceeded
	case "failed":
		pred.Status = StatusFailed
	case "timed_out":
		pred.Status = StatusTimedOut
	case "canceled":
		pred.Status = StatusCanceled
	case "submitted", "starting":
		pred.Status = StatusStarting
	default:
		pred.Status = StatusProcessing
	}
	return pred
}
