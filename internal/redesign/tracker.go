package redesign

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/koios/arqia/internal/backend"
	"github.com/koios/arqia/pkg/models"
	"go.uber.org/zap"
)

const (
	msgGenerationFailed = "Generation failed"
	msgCanceled         = "Generation was canceled"
	msgTimedOut         = "Generation timed out"
	msgUntracked        = "job is no longer tracked"
	msgNoOutput         = "backend returned no output"

	// untrackedProgress is reported for jobs observed without a local record.
	untrackedProgress = 50
)

// TrackerSettings bounds how long a job is driven.
type TrackerSettings struct {
	MaxAttempts  int
	PollInterval time.Duration
	// WaitTimeout bounds blocking mode. Zero means MaxAttempts x PollInterval.
	WaitTimeout time.Duration
	// CancelTimeout bounds the best-effort backend cancel request.
	CancelTimeout time.Duration
}

// DefaultTrackerSettings polls every 2s for at most 60 attempts.
func DefaultTrackerSettings() TrackerSettings {
	return TrackerSettings{
		MaxAttempts:   60,
		PollInterval:  2 * time.Second,
		CancelTimeout: 10 * time.Second,
	}
}

// Budget is the total time a job may take before it times out.
func (s TrackerSettings) Budget() time.Duration {
	return time.Duration(s.MaxAttempts) * s.PollInterval
}

func (s TrackerSettings) waitTimeout() time.Duration {
	if s.WaitTimeout > 0 {
		return s.WaitTimeout
	}
	return s.Budget()
}

// ProgressFunc receives progress events. It is called with the job's watch
// lock held, so a callback that wants to cancel its own job must hand the
// Cancel call to another goroutine.
type ProgressFunc func(models.ProgressEvent)

// Tracker drives jobs from submission to exactly one terminal state.
type Tracker struct {
	backend  backend.Backend
	store    Store
	settings TrackerSettings
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	watches map[string]*watch
}

// watch is the in-process arbiter for one job. Whoever closes done first
// decides the terminal state reported to every local waiter.
type watch struct {
	refs int // guarded by Tracker.mu

	mu    sync.Mutex
	done  chan struct{}
	final *models.Job
	last  models.Job
}

func (w *watch) result() (models.Job, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.final == nil {
		return models.Job{}, false
	}
	return *w.final, true
}

func (w *watch) fallback(id string) models.Job {
	job := w.last
	if job.ID == "" {
		job = models.Job{ID: id, State: models.StateSubmitted}
	}
	return job
}

type terminalError struct {
	job models.Job
}

func (e *terminalError) Error() string {
	return fmt.Sprintf("job %s is already %s", e.job.ID, e.job.State)
}

// NewTracker creates a tracker.
func NewTracker(b backend.Backend, store Store, settings TrackerSettings, logger *zap.Logger) *Tracker {
	if settings.MaxAttempts <= 0 {
		settings.MaxAttempts = DefaultTrackerSettings().MaxAttempts
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = DefaultTrackerSettings().PollInterval
	}
	if settings.CancelTimeout <= 0 {
		settings.CancelTimeout = DefaultTrackerSettings().CancelTimeout
	}
	return &Tracker{
		backend:  b,
		store:    store,
		settings: settings,
		logger:   logger,
		now:      time.Now,
		watches:  make(map[string]*watch),
	}
}

// Settings returns the effective settings.
func (t *Tracker) Settings() TrackerSettings {
	return t.settings
}

// Track registers an accepted job as submitted.
func (t *Tracker) Track(ctx context.Context, handle JobHandle, styleID string) (models.Job, error) {
	now := t.now()
	job := models.Job{
		ID:        handle.JobID,
		State:     models.StateSubmitted,
		StyleID:   styleID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := t.store.Put(context.WithoutCancel(ctx), job); err != nil {
		return job, fmt.Errorf("failed to register job %s: %w", handle.JobID, err)
	}

	t.logger.Debug("Tracking job", zap.String("job_id", job.ID), zap.String("style", styleID))
	return job, nil
}

// Poll queries the backend every PollInterval until the job is terminal or
// MaxAttempts queries were spent. It returns the terminal job. The error is
// non-nil only when ctx ended first, in which case the job is canceled.
func (t *Tracker) Poll(ctx context.Context, id string, onProgress ProgressFunc) (models.Job, error) {
	w := t.acquire(id)
	defer t.release(id, w)

	start := t.now()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for attempt := 1; attempt <= t.settings.MaxAttempts; attempt++ {
		if attempt > 1 {
			timer.Reset(t.settings.PollInterval)
		}

		select {
		case <-ctx.Done():
			return t.abandon(ctx, id, w)
		case <-w.done:
			job, _ := w.result()
			return job, nil
		case <-timer.C:
		}

		if attempt > 1 && t.now().Sub(start) > t.settings.Budget() {
			break
		}

		pred, err := t.backend.Get(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return t.abandon(ctx, id, w)
			}
			return t.fail(ctx, id, w, err), nil
		}

		if job, terminal := t.apply(ctx, id, w, attempt, pred, onProgress); terminal {
			return job, nil
		}
	}

	return t.expire(ctx, id, w), nil
}

// Wait blocks on the backend until the job is terminal or WaitTimeout
// elapsed. No progress is reported.
func (t *Tracker) Wait(ctx context.Context, id string) (models.Job, error) {
	w := t.acquire(id)
	defer t.release(id, w)

	if job, ok := w.result(); ok {
		return job, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, t.settings.waitTimeout())
	defer cancel()

	if _, err := t.store.Get(ctx, id); errors.Is(err, ErrJobNotFound) {
		return t.passthroughWait(ctx, waitCtx, id)
	}

	type outcome struct {
		pred *backend.Prediction
		err  error
	}

	for attempt := 1; ; attempt++ {
		ch := make(chan outcome, 1)
		go func() {
			pred, err := t.backend.Wait(waitCtx, id)
			ch <- outcome{pred: pred, err: err}
		}()

		var out outcome
		select {
		case <-w.done:
			job, _ := w.result()
			return job, nil
		case out = <-ch:
		}

		if out.err != nil {
			switch {
			case ctx.Err() != nil:
				return t.abandon(ctx, id, w)
			case waitCtx.Err() != nil:
				return t.expire(ctx, id, w), nil
			default:
				return t.fail(ctx, id, w, out.err), nil
			}
		}

		if job, terminal := t.apply(ctx, id, w, attempt, out.pred, nil); terminal {
			return job, nil
		}

		// The backend gave up waiting before the job finished.
		select {
		case <-ctx.Done():
			return t.abandon(ctx, id, w)
		case <-waitCtx.Done():
			return t.expire(ctx, id, w), nil
		case <-w.done:
			job, _ := w.result()
			return job, nil
		case <-time.After(t.settings.PollInterval):
		}
	}
}

// Stream polls the job and delivers events on the returned channel. The
// channel carries exactly one terminal event and is then closed.
func (t *Tracker) Stream(ctx context.Context, id string) <-chan models.ProgressEvent {
	// One slot per poll attempt plus the terminal event, so sends never block.
	ch := make(chan models.ProgressEvent, t.settings.MaxAttempts+1)

	go func() {
		defer close(ch)
		job, _ := t.Poll(ctx, id, func(ev models.ProgressEvent) {
			if !ev.Terminal {
				ch <- ev
			}
		})
		ch <- models.TerminalEvent(job)
	}()

	return ch
}

// Observe performs a single status query and applies it to the job. Jobs
// without a local record are reported as the backend sees them.
func (t *Tracker) Observe(ctx context.Context, id string) (models.Job, error) {
	w := t.acquire(id)
	defer t.release(id, w)

	if job, ok := w.result(); ok {
		return job, nil
	}

	job, err := t.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return t.passthrough(ctx, id)
		}
		return models.Job{}, fmt.Errorf("failed to load job %s: %w", id, err)
	}

	attempt := job.Attempts + 1
	if attempt > t.settings.MaxAttempts || t.now().Sub(job.CreatedAt) >= t.settings.Budget() {
		return t.expire(ctx, id, w), nil
	}

	pred, err := t.backend.Get(ctx, id)
	if err != nil {
		return job, queryError(id, err)
	}

	job, _ = t.apply(ctx, id, w, attempt, pred, nil)
	return job, nil
}

// Cancel stops a job. Unknown and terminal jobs are left alone. Local waiters
// observe Canceled before the backend is asked to stop, and backend failures
// are only logged.
func (t *Tracker) Cancel(ctx context.Context, id string) error {
	w := t.acquire(id)
	defer t.release(id, w)

	w.mu.Lock()
	if w.final != nil {
		w.mu.Unlock()
		return nil
	}

	cancelJob := func(j *models.Job) {
		j.State = models.StateCanceled
		j.ErrorDetail = msgCanceled
	}

	job, err := t.commit(ctx, id, cancelJob)
	if err != nil {
		if isGone(err) {
			w.mu.Unlock()
			return nil
		}
		t.logger.Error("Failed to persist cancellation", zap.String("job_id", id), zap.Error(err))
		job = w.fallback(id)
		cancelJob(&job)
	}
	t.closeLocked(ctx, id, w, job)
	w.mu.Unlock()

	t.logger.Info("Job canceled", zap.String("job_id", id))
	t.cancelRemote(ctx, id)
	return nil
}

func (t *Tracker) acquire(id string) *watch {
	t.mu.Lock()
	defer t.mu.Unlock()

	w, ok := t.watches[id]
	if !ok {
		w = &watch{done: make(chan struct{})}
		t.watches[id] = w
	}
	w.refs++
	return w
}

func (t *Tracker) release(id string, w *watch) {
	t.mu.Lock()
	defer t.mu.Unlock()

	w.refs--
	if w.refs == 0 && t.watches[id] == w {
		delete(t.watches, id)
	}
}

// commit applies mutate to a non-terminal stored job.
func (t *Tracker) commit(ctx context.Context, id string, mutate func(*models.Job)) (models.Job, error) {
	return t.store.Update(context.WithoutCancel(ctx), id, func(j *models.Job) error {
		if j.State.IsTerminal() {
			return &terminalError{job: *j}
		}
		mutate(j)
		j.UpdatedAt = t.now()
		return nil
	})
}

// apply records one backend observation. onProgress runs under the watch
// lock so that no event is reported once another goroutine canceled the job.
func (t *Tracker) apply(ctx context.Context, id string, w *watch, attempt int, pred *backend.Prediction, onProgress ProgressFunc) (models.Job, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.final != nil {
		return *w.final, true
	}

	if pred.Status.IsTerminal() {
		job, _ := t.finishLocked(ctx, id, w, func(j *models.Job) {
			advance(j, pred.Status, attempt)
			settle(j, pred)
		}, onProgress)
		return job, true
	}

	job, err := t.commit(ctx, id, func(j *models.Job) {
		advance(j, pred.Status, attempt)
	})
	if err != nil {
		if isGone(err) {
			job = goneJob(id, err)
			t.closeLocked(ctx, id, w, job)
			return job, true
		}
		t.logger.Warn("Failed to persist job progress", zap.String("job_id", id), zap.Error(err))
		job = w.fallback(id)
		advance(&job, pred.Status, attempt)
	}

	w.last = job
	if onProgress != nil {
		onProgress(models.ProgressEvent{
			JobID:    job.ID,
			State:    job.State,
			Progress: job.Progress,
			Attempt:  attempt,
		})
	}
	return job, false
}

func (t *Tracker) finish(ctx context.Context, id string, w *watch, mutate func(*models.Job)) (models.Job, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.final != nil {
		return *w.final, false
	}
	return t.finishLocked(ctx, id, w, mutate, nil)
}

// finishLocked moves the job to a terminal state and releases local waiters.
// It reports whether this call decided the outcome.
func (t *Tracker) finishLocked(ctx context.Context, id string, w *watch, mutate func(*models.Job), onProgress ProgressFunc) (models.Job, bool) {
	won := true
	job, err := t.commit(ctx, id, mutate)
	if err != nil {
		if isGone(err) {
			job = goneJob(id, err)
			won = false
		} else {
			t.logger.Error("Failed to persist terminal state", zap.String("job_id", id), zap.Error(err))
			job = w.fallback(id)
			mutate(&job)
		}
	}

	if won && job.State == models.StateSucceeded && onProgress != nil {
		onProgress(models.TerminalEvent(job))
	}
	t.closeLocked(ctx, id, w, job)

	if won {
		t.logger.Info("Job finished",
			zap.String("job_id", id),
			zap.String("state", string(job.State)),
			zap.Int("attempts", job.Attempts))
	}
	return job, won
}

// closeLocked publishes the terminal job to waiters and drops the record.
func (t *Tracker) closeLocked(ctx context.Context, id string, w *watch, job models.Job) {
	w.final = &job
	close(w.done)

	if err := t.store.Delete(context.WithoutCancel(ctx), id); err != nil {
		t.logger.Warn("Failed to remove finished job", zap.String("job_id", id), zap.Error(err))
	}
}

func (t *Tracker) expire(ctx context.Context, id string, w *watch) models.Job {
	job, won := t.finish(ctx, id, w, func(j *models.Job) {
		j.State = models.StateTimedOut
		j.ErrorDetail = msgTimedOut
	})
	if won {
		t.logger.Warn("Job timed out", zap.String("job_id", id), zap.Int("attempts", job.Attempts))
		t.cancelRemote(ctx, id)
	}
	return job
}

func (t *Tracker) fail(ctx context.Context, id string, w *watch, cause error) models.Job {
	job, won := t.finish(ctx, id, w, func(j *models.Job) {
		j.State = models.StateFailed
		j.Cause = models.CauseTransport
		j.ErrorDetail = cause.Error()
	})
	if won {
		t.logger.Error("Lost contact with backend", zap.String("job_id", id), zap.Error(cause))
	}
	return job
}

func (t *Tracker) abandon(ctx context.Context, id string, w *watch) (models.Job, error) {
	job, won := t.finish(ctx, id, w, func(j *models.Job) {
		j.State = models.StateCanceled
		j.ErrorDetail = msgCanceled
	})
	if won {
		t.logger.Info("Caller stopped waiting, canceling job", zap.String("job_id", id))
		t.cancelRemote(ctx, id)
	}
	return job, ctx.Err()
}

func (t *Tracker) cancelRemote(ctx context.Context, id string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.settings.CancelTimeout)
	defer cancel()

	if err := t.backend.Cancel(cctx, id); err != nil {
		t.logger.Warn("Backend cancel failed", zap.String("job_id", id), zap.Error(err))
	}
}

func (t *Tracker) passthrough(ctx context.Context, id string) (models.Job, error) {
	pred, err := t.backend.Get(ctx, id)
	if err != nil {
		return models.Job{}, queryError(id, err)
	}

	job := models.Job{ID: id, State: models.StateSubmitted, UpdatedAt: t.now()}
	if pred.Status.IsTerminal() {
		settle(&job, pred)
		return job, nil
	}
	if pred.Status == backend.StatusProcessing {
		job.State = models.StateProcessing
	}
	job.Progress = untrackedProgress
	return job, nil
}

func (t *Tracker) passthroughWait(ctx, waitCtx context.Context, id string) (models.Job, error) {
	pred, err := t.backend.Wait(waitCtx, id)
	if err != nil {
		if ctx.Err() == nil && waitCtx.Err() != nil {
			return models.Job{ID: id, State: models.StateTimedOut, ErrorDetail: msgTimedOut, UpdatedAt: t.now()}, nil
		}
		if ctx.Err() != nil {
			return models.Job{}, ctx.Err()
		}
		return models.Job{}, queryError(id, err)
	}

	job := models.Job{ID: id, State: models.StateProcessing, Progress: untrackedProgress, UpdatedAt: t.now()}
	if pred.Status.IsTerminal() {
		settle(&job, pred)
	}
	return job, nil
}

// advance applies a non-terminal observation. Unknown statuses leave the
// state untouched.
func advance(j *models.Job, status backend.Status, attempt int) {
	if attempt > j.Attempts {
		j.Attempts = attempt
	}
	if status == backend.StatusProcessing && j.State == models.StateSubmitted {
		j.State = models.StateProcessing
	}
	if p := estimateProgress(attempt); p > j.Progress {
		j.Progress = p
	}
}

// estimateProgress is a fixed curve over the attempt index, capped at 95
// until success is observed.
func estimateProgress(attempt int) int {
	p := (attempt - 1) * 100 / 30
	if p > 95 {
		return 95
	}
	if p < 0 {
		return 0
	}
	return p
}

// settle applies a terminal observation. The first output element is the
// canonical result.
func settle(j *models.Job, pred *backend.Prediction) {
	switch pred.Status {
	case backend.StatusSucceeded:
		url := pred.Output.First()
		if url == "" {
			j.State = models.StateFailed
			j.Cause = models.CauseBackend
			j.ErrorDetail = msgNoOutput
			return
		}
		j.State = models.StateSucceeded
		j.ResultURL = url
		j.Progress = 100
	case backend.StatusFailed:
		j.State = models.StateFailed
		j.Cause = models.CauseBackend
		j.ErrorDetail = pred.Error
		if j.ErrorDetail == "" {
			j.ErrorDetail = msgGenerationFailed
		}
	case backend.StatusCanceled:
		j.State = models.StateCanceled
		j.ErrorDetail = msgCanceled
	case backend.StatusTimedOut:
		j.State = models.StateTimedOut
		j.ErrorDetail = detailOr(pred.Error, msgTimedOut)
	}
}

func isGone(err error) bool {
	var te *terminalError
	return errors.Is(err, ErrJobNotFound) || errors.As(err, &te)
}

func goneJob(id string, err error) models.Job {
	var te *terminalError
	if errors.As(err, &te) {
		return te.job
	}
	return models.Job{ID: id, State: models.StateCanceled, ErrorDetail: msgUntracked}
}

func queryError(id string, err error) error {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return &Error{Kind: KindNotFound, JobID: id, Detail: apiErr.Detail, Err: err}
	}
	return &Error{Kind: KindTransport, JobID: id, Err: err}
}
