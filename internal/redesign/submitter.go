package redesign

import (
	"context"
	"errors"

	"github.com/koios/arqia/internal/backend"
	"go.uber.org/zap"
)

// JobHandle identifies an accepted remote job.
type JobHandle struct {
	JobID string
}

// GenerationRequest is a validated unit of work. It is immutable once built.
type GenerationRequest struct {
	image   Image
	styleID string
	params  TechnicalParams
}

// NewGenerationRequest resolves the style and validates the image. It never
// touches the network.
func NewGenerationRequest(catalog *Catalog, image Image, styleID string, params TechnicalParams) (GenerationRequest, error) {
	if _, err := catalog.Lookup(styleID); err != nil {
		return GenerationRequest{}, err
	}
	if err := image.Validate(); err != nil {
		return GenerationRequest{}, err
	}
	return GenerationRequest{image: image, styleID: styleID, params: params}, nil
}

func (r GenerationRequest) Image() Image { return r.image }

func (r GenerationRequest) StyleID() string { return r.styleID }

func (r GenerationRequest) Params() TechnicalParams { return r.params }

// Submitter sends validated requests to the backend.
type Submitter struct {
	backend backend.Backend
	logger  *zap.Logger
}

// NewSubmitter creates a submitter.
func NewSubmitter(b backend.Backend, logger *zap.Logger) *Submitter {
	return &Submitter{backend: b, logger: logger}
}

// Submit validates the image and issues exactly one create call. It never retries.
func (s *Submitter) Submit(ctx context.Context, image Image, payload PromptPayload) (JobHandle, error) {
	if err := image.Validate(); err != nil {
		return JobHandle{}, err
	}

	req := backend.Request{
		StyleID: payload.StyleID,
		Input: backend.Input{
			Image:             image.DataURL(),
			Prompt:            payload.Prompt,
			NegativePrompt:    payload.NegativePrompt,
			NumInferenceSteps: payload.Steps,
			GuidanceScale:     payload.GuidanceScale,
			Strength:          payload.Strength,
			NumOutputs:        payload.NumOutputs,
			Width:             payload.Width,
			Height:            payload.Height,
		},
	}

	pred, err := s.backend.Create(ctx, req)
	if err != nil {
		s.logger.Warn("Submission failed", zap.String("style", payload.StyleID), zap.Error(err))
		return JobHandle{}, submissionError(err)
	}
	if pred.ID == "" {
		return JobHandle{}, &Error{Kind: KindSubmissionFailed, Detail: "backend returned no job id"}
	}

	s.logger.Info("Job submitted",
		zap.String("job_id", pred.ID),
		zap.String("style", payload.StyleID))

	return JobHandle{JobID: pred.ID}, nil
}

func submissionError(err error) error {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return &Error{Kind: KindSubmissionFailed, Detail: apiErr.Detail, Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTransport, Detail: "submission interrupted", Err: err}
	}
	return &Error{Kind: KindTransport, Err: err}
}
