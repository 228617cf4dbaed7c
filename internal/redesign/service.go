package redesign

import (
	"context"
	"errors"
	"fmt"

	"github.com/koios/arqia/internal/backend"
	"github.com/koios/arqia/pkg/models"
	"go.uber.org/zap"
)

// Mode selects how Generate waits for the backend.
type Mode string

const (
	ModePoll Mode = "poll"
	ModeWait Mode = "wait"
)

// Settings configures a Service.
type Settings struct {
	Mode    Mode
	Tracker TrackerSettings
	Params  TechnicalParams
}

// DefaultSettings polls with the default tracker settings and parameters.
func DefaultSettings() Settings {
	return Settings{
		Mode:    ModePoll,
		Tracker: DefaultTrackerSettings(),
		Params:  DefaultTechnicalParams(),
	}
}

// Service is the entry point used by the CLI and the relay.
type Service struct {
	catalog   *Catalog
	builder   *Builder
	submitter *Submitter
	tracker   *Tracker
	store     Store
	settings  Settings
	logger    *zap.Logger
}

// NewService wires a catalog, a backend and a job store together.
func NewService(catalog *Catalog, b backend.Backend, store Store, settings Settings, logger *zap.Logger) *Service {
	if settings.Mode == "" {
		settings.Mode = ModePoll
	}
	return &Service{
		catalog:   catalog,
		builder:   NewBuilder(catalog),
		submitter: NewSubmitter(b, logger),
		tracker:   NewTracker(b, store, settings.Tracker, logger),
		store:     store,
		settings:  settings,
		logger:    logger,
	}
}

// Tracker exposes the underlying tracker.
func (s *Service) Tracker() *Tracker {
	return s.tracker
}

// Styles lists the catalog.
func (s *Service) Styles() []models.StyleDefinition {
	return s.catalog.List()
}

// Start validates, submits and registers a job, then returns without waiting.
func (s *Service) Start(ctx context.Context, image Image, styleID string) (models.Job, error) {
	req, err := NewGenerationRequest(s.catalog, image, styleID, s.settings.Params)
	if err != nil {
		return models.Job{}, err
	}

	payload, err := s.builder.Compose(req.StyleID(), req.Params())
	if err != nil {
		return models.Job{}, err
	}

	handle, err := s.submitter.Submit(ctx, req.Image(), payload)
	if err != nil {
		return models.Job{}, err
	}

	return s.tracker.Track(ctx, handle, req.StyleID())
}

// Generate runs a full redesign in the configured mode. onProgress is only
// used in poll mode and may be nil.
func (s *Service) Generate(ctx context.Context, image Image, styleID string, onProgress ProgressFunc) (Result, error) {
	return s.generate(ctx, image, styleID, s.settings.Mode, onProgress)
}

// GeneratePolling runs a full redesign in poll mode regardless of the
// configured mode.
func (s *Service) GeneratePolling(ctx context.Context, image Image, styleID string, onProgress ProgressFunc) (Result, error) {
	return s.generate(ctx, image, styleID, ModePoll, onProgress)
}

// GenerateBlocking runs a full redesign in wait mode.
func (s *Service) GenerateBlocking(ctx context.Context, image Image, styleID string) (Result, error) {
	return s.generate(ctx, image, styleID, ModeWait, nil)
}

func (s *Service) generate(ctx context.Context, image Image, styleID string, mode Mode, onProgress ProgressFunc) (Result, error) {
	job, err := s.Start(ctx, image, styleID)
	if err != nil {
		return Result{}, err
	}

	var final models.Job
	switch mode {
	case ModeWait:
		final, err = s.tracker.Wait(ctx, job.ID)
	default:
		final, err = s.tracker.Poll(ctx, job.ID, onProgress)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Result{}, &Error{Kind: KindCanceled, JobID: job.ID, Detail: msgCanceled, Err: err}
		}
		return Result{}, err
	}

	return Deliver(final)
}

// Status performs one observation of the job.
func (s *Service) Status(ctx context.Context, jobID string) (models.Job, error) {
	return s.tracker.Observe(ctx, jobID)
}

// Await blocks until the job is terminal using the backend's blocking wait.
func (s *Service) Await(ctx context.Context, jobID string) (models.Job, error) {
	return s.tracker.Wait(ctx, jobID)
}

// Events streams progress for a tracked job. A job that already finished
// yields its terminal event only.
func (s *Service) Events(ctx context.Context, jobID string) (<-chan models.ProgressEvent, error) {
	_, err := s.store.Get(ctx, jobID)
	if err == nil {
		return s.tracker.Stream(ctx, jobID), nil
	}
	if !errors.Is(err, ErrJobNotFound) {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	job, err := s.tracker.Observe(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.State.IsTerminal() {
		return nil, &Error{Kind: KindNotFound, JobID: jobID, Detail: "job is not tracked here"}
	}

	ch := make(chan models.ProgressEvent, 1)
	ch <- models.TerminalEvent(job)
	close(ch)
	return ch, nil
}

// Cancel stops a job. Unknown and finished jobs are a no-op.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	return s.tracker.Cancel(ctx, jobID)
}
