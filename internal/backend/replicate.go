package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultReplicateVersion is the image-to-image model version used for room redesigns.
const DefaultReplicateVersion = "39ed52f2a78e934b3ba6e2a89f5b1c712de7dfea535525255b1aa35c5565e08b"

// ErrMissingToken indicates that the Replicate client was configured without credentials.
var ErrMissingToken = errors.New("replicate: api token is required")

// ReplicateOptions configures the Replicate client.
type ReplicateOptions struct {
	Token          string
	BaseURL        string
	Version        string
	HTTPClient     *http.Client
	Logger         *zap.Logger
	RequestTimeout time.Duration
	// WaitInterval spaces the status queries issued by Wait.
	WaitInterval time.Duration
}

// Replicate talks to the Replicate predictions API.
type Replicate struct {
	token        string
	baseURL      string
	version      string
	waitInterval time.Duration
	httpClient   *http.Client
	logger       *zap.Logger
}

type createPrediction struct {
	Version string `json:"version"`
	Input   Input  `json:"input"`
}

// NewReplicate constructs a client with defaults for every unset option.
func NewReplicate(opts ReplicateOptions) (*Replicate, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, ErrMissingToken
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com/v1"
	}

	version := strings.TrimSpace(opts.Version)
	if version == "" {
		version = DefaultReplicateVersion
	}

	waitInterval := opts.WaitInterval
	if waitInterval <= 0 {
		waitInterval = time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Replicate{
		token:        token,
		baseURL:      baseURL,
		version:      version,
		waitInterval: waitInterval,
		httpClient:   httpClient,
		logger:       logger,
	}, nil
}

func (r *Replicate) header() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Token "+r.token)
	return h
}

func (r *Replicate) predictionURL(id string, suffix ...string) string {
	parts := append([]string{r.baseURL, "predictions", url.PathEscape(id)}, suffix...)
	return strings.Join(parts, "/")
}

// Create starts a prediction.
func (r *Replicate) Create(ctx context.Context, req Request) (*Prediction, error) {
	var pred Prediction
	payload := createPrediction{Version: r.version, Input: req.Input}
	if err := doJSON(ctx, r.httpClient, http.MethodPost, r.baseURL+"/predictions", r.header(), payload, &pred); err != nil {
		return nil, err
	}

	r.logger.Debug("Created prediction",
		zap.String("prediction_id", pred.ID),
		zap.String("style", req.StyleID),
		zap.String("status", string(pred.Status)))

	return &pred, nil
}

// Get returns the current prediction snapshot.
func (r *Replicate) Get(ctx context.Context, id string) (*Prediction, error) {
	var pred Prediction
	if err := doJSON(ctx, r.httpClient, http.MethodGet, r.predictionURL(id), r.header(), nil, &pred); err != nil {
		return nil, err
	}
	return &pred, nil
}

// Cancel asks Replicate to stop the prediction.
func (r *Replicate) Cancel(ctx context.Context, id string) error {
	return doJSON(ctx, r.httpClient, http.MethodPost, r.predictionURL(id, "cancel"), r.header(), nil, nil)
}

// Wait polls the prediction until it is terminal. Replicate has no blocking
// read for an existing prediction, so the loop lives here.
func (r *Replicate) Wait(ctx context.Context, id string) (*Prediction, error) {
	ticker := time.NewTicker(r.waitInterval)
	defer ticker.Stop()

	for {
		pred, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if pred.Status.IsTerminal() {
			return pred, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
