package redesign

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koios/arqia/internal/backend"
	"github.com/koios/arqia/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeReplicate serves job_1 as processing once, then succeeded.
func fakeReplicate(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	var polls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/predictions":
			var body struct {
				Input backend.Input `json:"input"`
			}
			if assert.NoError(t, json.NewDecoder(r.Body).Decode(&body)) {
				assert.True(t, strings.HasPrefix(body.Input.Image, "data:image/jpeg;base64,"))
				assert.True(t, strings.HasPrefix(body.Input.Prompt, "Minimalist modern interior"))
			}
			w.Write([]byte(`{"id":"job_1","status":"starting"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/predictions/job_1":
			if polls.Add(1) == 1 {
				w.Write([]byte(`{"id":"job_1","status":"processing"}`))
				return
			}
			w.Write([]byte(`{"id":"job_1","status":"succeeded","output":["https://replicate.delivery/out.jpg"]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"Not found"}`))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestService(t *testing.T, url string, mode Mode) *Service {
	t.Helper()
	client, err := backend.NewReplicate(backend.ReplicateOptions{Token: "test", BaseURL: url, WaitInterval: time.Millisecond})
	require.NoError(t, err)

	settings := DefaultSettings()
	settings.Mode = mode
	settings.Tracker = fastSettings(60)
	return NewService(DefaultCatalog(), client, NewMemoryStore(), settings, zap.NewNop())
}

func TestGenerateEndToEnd(t *testing.T) {
	var requests atomic.Int32
	server := fakeReplicate(t, &requests)
	service := newTestService(t, server.URL, ModePoll)

	var states []models.JobState
	result, err := service.Generate(context.Background(), testJPEG(t), "minimalista", func(ev models.ProgressEvent) {
		states = append(states, ev.State)
	})
	require.NoError(t, err)

	assert.Equal(t, Result{JobID: "job_1", ImageURL: "https://replicate.delivery/out.jpg"}, result)
	assert.Equal(t, []models.JobState{models.StateProcessing, models.StateSucceeded}, states)
}

func TestGenerateBlocking(t *testing.T) {
	var requests atomic.Int32
	server := fakeReplicate(t, &requests)
	service := newTestService(t, server.URL, ModePoll)

	result, err := service.GenerateBlocking(context.Background(), testJPEG(t), "minimalista")
	require.NoError(t, err)
	assert.Equal(t, "https://replicate.delivery/out.jpg", result.ImageURL)
}

func TestGenerateUnknownStyleMakesNoRequests(t *testing.T) {
	var requests atomic.Int32
	server := fakeReplicate(t, &requests)
	service := newTestService(t, server.URL, ModePoll)

	_, err := service.Generate(context.Background(), testJPEG(t), "unknown", nil)
	assert.ErrorIs(t, err, ErrUnknownStyle)
	assert.Zero(t, requests.Load())
}

func TestGenerateInvalidImageMakesNoRequests(t *testing.T) {
	var requests atomic.Int32
	server := fakeReplicate(t, &requests)
	service := newTestService(t, server.URL, ModePoll)

	_, err := service.Generate(context.Background(), Image{Data: []byte("not an image"), MIMEType: "image/png"}, "minimalista", nil)
	assert.ErrorIs(t, err, ErrInvalidImage)
	assert.Zero(t, requests.Load())
}

func TestStartStatusCancel(t *testing.T) {
	fake := &scriptedBackend{script: []backend.Prediction{processing()}}
	settings := DefaultSettings()
	settings.Tracker = observeSettings()
	service := NewService(DefaultCatalog(), fake, NewMemoryStore(), settings, zap.NewNop())
	ctx := context.Background()

	job, err := service.Start(ctx, testJPEG(t), "industrial")
	require.NoError(t, err)
	assert.Equal(t, models.StateSubmitted, job.State)

	job, err = service.Status(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateProcessing, job.State)

	require.NoError(t, service.Cancel(ctx, job.ID))
	_, _, cancels := fake.counts()
	assert.Equal(t, 1, cancels)

	assert.Len(t, service.Styles(), 4)
}

func TestEventsForFinishedJob(t *testing.T) {
	fake := &scriptedBackend{script: []backend.Prediction{succeeded("https://cdn/out.jpg")}}
	service := NewService(DefaultCatalog(), fake, NewMemoryStore(), DefaultSettings(), zap.NewNop())

	events, err := service.Events(context.Background(), "job_1")
	require.NoError(t, err)

	var got []models.ProgressEvent
	for ev := range events {
		got = append(got, ev)
	}
	require.Len(t, got, 1)
	assert.True(t, got[0].Terminal)
	assert.Equal(t, "https://cdn/out.jpg", got[0].ImageURL)
}
