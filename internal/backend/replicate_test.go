package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReplicateRequiresToken(t *testing.T) {
	_, err := NewReplicate(ReplicateOptions{Token: "  "})
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestReplicateCreate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/predictions", r.URL.Path)
		assert.Equal(t, "Token secret", r.Header.Get("Authorization"))

		var body createPrediction
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, DefaultReplicateVersion, body.Version)
		assert.Equal(t, "data:image/jpeg;base64,AAAA", body.Input.Image)
		assert.Equal(t, 40, body.Input.NumInferenceSteps)
		assert.Equal(t, 0.45, body.Input.Strength)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"job_1","status":"starting"}`))
	}))
	defer server.Close()

	client, err := NewReplicate(ReplicateOptions{Token: "secret", BaseURL: server.URL + "/v1/"})
	require.NoError(t, err)

	pred, err := client.Create(context.Background(), Request{
		StyleID: "minimalista",
		Input:   Input{Image: "data:image/jpeg;base64,AAAA", NumInferenceSteps: 40, Strength: 0.45},
	})
	require.NoError(t, err)
	assert.Equal(t, "job_1", pred.ID)
	assert.Equal(t, StatusStarting, pred.Status)
}

func TestReplicateRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"detail":"insufficient credit"}`))
	}))
	defer server.Close()

	client, err := NewReplicate(ReplicateOptions{Token: "secret", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Create(context.Background(), Request{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusPaymentRequired, apiErr.StatusCode)
	assert.Equal(t, "insufficient credit", apiErr.Detail)
}

func TestReplicateTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client, err := NewReplicate(ReplicateOptions{Token: "secret", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "job_1")
	require.Error(t, err)
	assert.False(t, IsAPIError(err))
}

func TestReplicateWaitAndCancel(t *testing.T) {
	var gets, cancels atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/predictions/job_1":
			if gets.Add(1) < 3 {
				w.Write([]byte(`{"id":"job_1","status":"processing"}`))
				return
			}
			w.Write([]byte(`{"id":"job_1","status":"succeeded","output":["https://cdn/out.jpg"]}`))
		case "/predictions/job_1/cancel":
			cancels.Add(1)
			w.Write([]byte(`{"id":"job_1","status":"canceled"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client, err := NewReplicate(ReplicateOptions{Token: "secret", BaseURL: server.URL, WaitInterval: time.Millisecond})
	require.NoError(t, err)

	pred, err := client.Wait(context.Background(), "job_1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, pred.Status)
	assert.Equal(t, "https://cdn/out.jpg", pred.Output.First())
	assert.EqualValues(t, 3, gets.Load())

	require.NoError(t, client.Cancel(context.Background(), "job_1"))
	assert.EqualValues(t, 1, cancels.Load())
}

func TestReplicateWaitHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"job_1","status":"processing"}`))
	}))
	defer server.Close()

	client, err := NewReplicate(ReplicateOptions{Token: "secret", BaseURL: server.URL, WaitInterval: 5 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = client.Wait(ctx, "job_1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
