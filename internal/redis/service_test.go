package redis

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/koios/arqia/internal/backend"
	"github.com/koios/arqia/internal/redesign"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestServiceWithRedisRegistry(t *testing.T) {
	store := newTestStore(t)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))))
	photo := redesign.Image{Data: buf.Bytes(), MIMEType: "image/png"}

	mock := backend.NewMock(backend.MockOptions{Latency: 5 * time.Millisecond, OutputURL: "https://cdn.example/out.png"})
	settings := redesign.DefaultSettings()
	settings.Tracker.PollInterval = 2 * time.Millisecond
	service := redesign.NewService(redesign.DefaultCatalog(), mock, store, settings, zap.NewNop())

	result, err := service.Generate(context.Background(), photo, "contemporaneo", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/out.png", result.ImageURL)

	_, err = store.Get(context.Background(), result.JobID)
	assert.ErrorIs(t, err, redesign.ErrJobNotFound, "finished jobs leave the registry")
}
