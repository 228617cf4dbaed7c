package redesign

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/koios/arqia/internal/backend"
	"github.com/stretchr/testify/require"
)

// scriptedBackend replays a list of predictions; the last one repeats.
type scriptedBackend struct {
	mu sync.Mutex

	createID  string
	createErr error
	script    []backend.Prediction
	getErr    error
	waitFn    func(ctx context.Context) (*backend.Prediction, error)
	cancelErr error
	cancelLag time.Duration

	creates int
	gets    int
	cancels int
}

func (b *scriptedBackend) Create(ctx context.Context, req backend.Request) (*backend.Prediction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.creates++
	if b.createErr != nil {
		return nil, b.createErr
	}
	id := b.createID
	if id == "" {
		id = "job_1"
	}
	return &backend.Prediction{ID: id, Status: backend.StatusStarting}, nil
}

func (b *scriptedBackend) Get(ctx context.Context, id string) (*backend.Prediction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gets++
	if b.getErr != nil {
		return nil, b.getErr
	}
	i := b.gets - 1
	if i >= len(b.script) {
		i = len(b.script) - 1
	}
	pred := b.script[i]
	pred.ID = id
	return &pred, nil
}

func (b *scriptedBackend) Cancel(ctx context.Context, id string) error {
	b.mu.Lock()
	b.cancels++
	lag, err := b.cancelLag, b.cancelErr
	b.mu.Unlock()

	if lag > 0 {
		select {
		case <-time.After(lag):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (b *scriptedBackend) Wait(ctx context.Context, id string) (*backend.Prediction, error) {
	if b.waitFn != nil {
		return b.waitFn(ctx)
	}
	return b.Get(ctx, id)
}

func (b *scriptedBackend) counts() (creates, gets, cancels int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.creates, b.gets, b.cancels
}

func processing() backend.Prediction {
	return backend.Prediction{Status: backend.StatusProcessing}
}

func succeeded(urls ...string) backend.Prediction {
	return backend.Prediction{Status: backend.StatusSucceeded, Output: backend.Output(urls)}
}

func fastSettings(maxAttempts int) TrackerSettings {
	return TrackerSettings{
		MaxAttempts:   maxAttempts,
		PollInterval:  time.Millisecond,
		CancelTimeout: time.Second,
	}
}

// testJPEG encodes a small real JPEG.
func testJPEG(t *testing.T) Image {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 180, B: 150, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return Image{Data: buf.Bytes(), MIMEType: "image/jpeg"}
}
