package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/koios/arqia/internal/backend"
	"github.com/koios/arqia/internal/config"
	"github.com/koios/arqia/internal/redesign"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewBackend(t *testing.T) {
	logger := zap.NewNop()

	b, err := newBackend(config.BackendConfig{Kind: "mock", RequestTimeout: 5}, logger)
	require.NoError(t, err)
	assert.IsType(t, &backend.Mock{}, b)

	b, err = newBackend(config.BackendConfig{Kind: "relay", RelayURL: "http://localhost:3001/api", RequestTimeout: 5}, logger)
	require.NoError(t, err)
	assert.IsType(t, &backend.Relay{}, b)

	b, err = newBackend(config.BackendConfig{Kind: "replicate", ReplicateToken: "r8_test", RequestTimeout: 5}, logger)
	require.NoError(t, err)
	assert.IsType(t, &backend.Replicate{}, b)

	_, err = newBackend(config.BackendConfig{Kind: "replicate", RequestTimeout: 5}, logger)
	assert.ErrorIs(t, err, backend.ErrMissingToken)

	_, err = newBackend(config.BackendConfig{Kind: "dalle"}, logger)
	assert.Error(t, err)
}

func TestServiceSettings(t *testing.T) {
	settings := serviceSettings(config.TrackerConfig{
		Mode:           "wait",
		MaxAttempts:    30,
		PollIntervalMS: 500,
		WaitTimeout:    90,
		CancelTimeout:  3,
	})

	assert.Equal(t, redesign.ModeWait, settings.Mode)
	assert.Equal(t, 30, settings.Tracker.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, settings.Tracker.PollInterval)
	assert.Equal(t, 90*time.Second, settings.Tracker.WaitTimeout)
	assert.Equal(t, 3*time.Second, settings.Tracker.CancelTimeout)
	assert.Equal(t, redesign.DefaultTechnicalParams(), settings.Params)
}

func TestNewAppWithMemoryStore(t *testing.T) {
	cfg := &config.Config{
		AppEnv:   "test",
		LogLevel: "error",
		Backend:  config.BackendConfig{Kind: "mock", RequestTimeout: 5},
		Tracker:  config.TrackerConfig{Mode: "poll", MaxAttempts: 5, PollIntervalMS: 10, CancelTimeout: 1},
		Redis:    config.RedisConfig{JobTTL: 60},
		Styles:   config.StylesConfig{JanitorSchedule: "@every 1m"},
	}

	a, err := newApp(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.redis)
	assert.NotNil(t, a.janitor)
	assert.Len(t, a.service.Styles(), 4)
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(&config.Config{AppEnv: "development", LogLevel: "debug"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))

	_, err = newLogger(&config.Config{AppEnv: "production", LogLevel: "loud"})
	assert.Error(t, err)
}

func TestStylesCommand(t *testing.T) {
	t.Setenv("STYLES_PATH", "")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"styles"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "minimalista")
	assert.Contains(t, out.String(), "industrial")
}

func writeTestPhoto(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: 120, G: 110, B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))

	path := filepath.Join(t.TempDir(), "room.jpg")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func TestRedesignCommandModeFlag(t *testing.T) {
	t.Setenv("REPLICATE_API_TOKEN", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("STYLES_PATH", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("BACKEND", "mock")
	t.Setenv("MOCK_LATENCY_MS", "100")
	t.Setenv("MOCK_OUTPUT_URL", "https://cdn.example.com/out.jpg")
	t.Setenv("TRACKER_MODE", "wait")
	t.Setenv("TRACKER_POLL_INTERVAL_MS", "10")
	t.Setenv("TRACKER_MAX_ATTEMPTS", "200")

	photo := writeTestPhoto(t)

	tests := []struct {
		mode         string
		wantProgress bool
	}{
		{mode: "poll", wantProgress: true},
		{mode: "wait", wantProgress: false},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			cmd := newRootCmd()
			var stdout, stderr bytes.Buffer
			cmd.SetOut(&stdout)
			cmd.SetErr(&stderr)
			cmd.SetArgs([]string{"redesign", "--style", "minimalista", "--mode", tt.mode, photo})

			require.NoError(t, cmd.Execute())
			assert.Equal(t, "https://cdn.example.com/out.jpg", strings.TrimSpace(stdout.String()))

			if tt.wantProgress {
				assert.Contains(t, stderr.String(), "attempt 1")
				assert.Contains(t, stderr.String(), "100%")
			} else {
				assert.NotContains(t, stderr.String(), "attempt")
			}
		})
	}
}
