package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MockOptions configures the in-process backend.
type MockOptions struct {
	// Latency is how long a prediction stays in processing.
	Latency time.Duration
	// OutputURL is returned on success. When empty the input image is echoed back.
	OutputURL string
	// FailureDetail, when set, makes every prediction fail with this detail.
	FailureDetail string
	// Retention is how long a prediction is kept once its latency elapsed.
	// Defaults to one hour.
	Retention time.Duration
	Logger    *zap.Logger
}

// Mock simulates a generation backend without network access.
type Mock struct {
	opts   MockOptions
	logger *zap.Logger
	now    func() time.Time

	mu    sync.Mutex
	preds map[string]*mockPrediction
}

type mockPrediction struct {
	created  time.Time
	output   string
	canceled bool
}

// NewMock creates a mock backend.
func NewMock(opts MockOptions) *Mock {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Retention <= 0 {
		opts.Retention = time.Hour
	}
	return &Mock{
		opts:   opts,
		logger: logger,
		now:    time.Now,
		preds:  make(map[string]*mockPrediction),
	}
}

// Create registers a new simulated prediction.
func (m *Mock) Create(ctx context.Context, req Request) (*Prediction, error) {
	id := uuid.NewString()

	output := m.opts.OutputURL
	if output == "" {
		output = req.Input.Image
	}

	m.mu.Lock()
	m.sweepLocked()
	m.preds[id] = &mockPrediction{created: m.now(), output: output}
	m.mu.Unlock()

	m.logger.Info("Mock prediction created", zap.String("prediction_id", id), zap.String("style", req.StyleID))
	return &Prediction{ID: id, Status: StatusStarting}, nil
}

// Get reports processing until the latency elapsed, then the configured outcome.
func (m *Mock) Get(ctx context.Context, id string) (*Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.preds[id]
	if !ok {
		return nil, &APIError{StatusCode: 404, Detail: fmt.Sprintf("prediction %s not found", id)}
	}
	return m.snapshot(id, p), nil
}

func (m *Mock) snapshot(id string, p *mockPrediction) *Prediction {
	switch {
	case p.canceled:
		return &Prediction{ID: id, Status: StatusCanceled}
	case m.now().Sub(p.created) < m.opts.Latency:
		return &Prediction{ID: id, Status: StatusProcessing}
	case m.opts.FailureDetail != "":
		return &Prediction{ID: id, Status: StatusFailed, Error: m.opts.FailureDetail}
	}
	return &Prediction{ID: id, Status: StatusSucceeded, Output: Output{p.output}}
}

// sweepLocked forgets predictions that outlived their retention.
func (m *Mock) sweepLocked() {
	cutoff := m.now().Add(-(m.opts.Latency + m.opts.Retention))
	for id, p := range m.preds {
		if p.created.Before(cutoff) {
			delete(m.preds, id)
		}
	}
}

// Len returns the number of predictions held.
func (m *Mock) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.preds)
}

// Cancel marks the prediction canceled unless it already finished.
func (m *Mock) Cancel(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.preds[id]
	if !ok {
		return &APIError{StatusCode: 404, Detail: fmt.Sprintf("prediction %s not found", id)}
	}
	if !m.snapshot(id, p).Status.IsTerminal() {
		p.canceled = true
	}
	return nil
}

// Wait blocks until the prediction is terminal or ctx is done.
func (m *Mock) Wait(ctx context.Context, id string) (*Prediction, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		pred, err := m.Get(ctx, id)
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
