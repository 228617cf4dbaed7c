package redesign

import (
	"context"
	"errors"
	"testing"

	"github.com/koios/arqia/internal/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSubmitReturnsHandle(t *testing.T) {
	fake := &scriptedBackend{createID: "job_7"}
	submitter := NewSubmitter(fake, zap.NewNop())

	payload, err := NewBuilder(DefaultCatalog()).Compose("industrial", DefaultTechnicalParams())
	require.NoError(t, err)

	handle, err := submitter.Submit(context.Background(), testJPEG(t), payload)
	require.NoError(t, err)
	assert.Equal(t, "job_7", handle.JobID)
}

func TestSubmitRejectsInvalidImageWithoutNetwork(t *testing.T) {
	fake := &scriptedBackend{}
	submitter := NewSubmitter(fake, zap.NewNop())

	_, err := submitter.Submit(context.Background(), Image{MIMEType: "image/jpeg"}, PromptPayload{})
	assert.ErrorIs(t, err, ErrInvalidImage)

	creates, _, _ := fake.counts()
	assert.Zero(t, creates)
}

func TestSubmitMapsBackendErrors(t *testing.T) {
	rejected := &scriptedBackend{createErr: &backend.APIError{StatusCode: 422, Detail: "Invalid version or not permitted"}}
	_, err := NewSubmitter(rejected, zap.NewNop()).Submit(context.Background(), testJPEG(t), PromptPayload{})
	require.ErrorIs(t, err, ErrSubmissionFailed)
	assert.Equal(t, "Invalid version or not permitted", DetailOf(err))

	unreachable := &scriptedBackend{createErr: errors.New("dial tcp: connection refused")}
	_, err = NewSubmitter(unreachable, zap.NewNop()).Submit(context.Background(), testJPEG(t), PromptPayload{})
	assert.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrSubmissionFailed)

	creates, _, _ := rejected.counts()
	assert.Equal(t, 1, creates, "submission is never retried")
}

func TestNewGenerationRequest(t *testing.T) {
	catalog := DefaultCatalog()

	_, err := NewGenerationRequest(catalog, testJPEG(t), "unknown", DefaultTechnicalParams())
	assert.ErrorIs(t, err, ErrUnknownStyle)

	_, err = NewGenerationRequest(catalog, Image{}, "industrial", DefaultTechnicalParams())
	assert.ErrorIs(t, err, ErrInvalidImage)

	req, err := NewGenerationRequest(catalog, testJPEG(t), "industrial", DefaultTechnicalParams())
	require.NoError(t, err)
	assert.Equal(t, "industrial", req.StyleID())
	assert.Equal(t, 40, req.Params().Steps)
}
