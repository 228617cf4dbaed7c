package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/koios/arqia/internal/backend"
	"github.com/koios/arqia/internal/config"
	"github.com/koios/arqia/internal/redesign"
	"github.com/koios/arqia/internal/redis"
	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// app holds the wired components shared by every command
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	catalog *redesign.Catalog
	service *redesign.Service

	redis   *redis.Client
	janitor *cron.Cron
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.AppEnv == "development" {
		zcfg = zap.NewDevelopmentConfig()
	}

	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	zcfg.Level = level

	return zcfg.Build()
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	catalog, err := loadCatalog(cfg.Styles)
	if err != nil {
		return nil, err
	}
	a.catalog = catalog

	b, err := newBackend(cfg.Backend, logger)
	if err != nil {
		return nil, err
	}

	store, err := a.newStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.service = redesign.NewService(catalog, b, store, serviceSettings(cfg.Tracker), logger)

	logger.Info("Service configured",
		zap.String("backend", cfg.Backend.Kind),
		zap.String("mode", cfg.Tracker.Mode),
		zap.Int("styles", len(catalog.List())),
		zap.Bool("redis", a.redis != nil))

	return a, nil
}

func loadCatalog(cfg config.StylesConfig) (*redesign.Catalog, error) {
	if cfg.Path == "" {
		return redesign.DefaultCatalog(), nil
	}
	return redesign.LoadCatalogFile(cfg.Path)
}

func newBackend(cfg config.BackendConfig, logger *zap.Logger) (backend.Backend, error) {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second

	switch cfg.Kind {
	case "replicate":
		r, err := backend.NewReplicate(backend.ReplicateOptions{
			Token:          cfg.ReplicateToken,
			BaseURL:        cfg.ReplicateURL,
			Version:        cfg.ReplicateVersion,
			HTTPClient:     &http.Client{Timeout: timeout},
			Logger:         logger,
			RequestTimeout: timeout,
		})
		if err != nil {
			return nil, err
		}
		return r, nil
	case "relay":
		return backend.NewRelay(backend.RelayOptions{
			BaseURL:        cfg.RelayURL,
			Logger:         logger,
			RequestTimeout: timeout,
		}), nil
	case "mock":
		logger.Warn("Using the mock backend, no real images are generated")
		return backend.NewMock(backend.MockOptions{
			Latency:   time.Duration(cfg.MockLatencyMS) * time.Millisecond,
			OutputURL: cfg.MockOutputURL,
			Logger:    logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Kind)
	}
}

// newStore uses Redis when configured and an in-memory registry otherwise
func (a *app) newStore(ctx context.Context) (redesign.Store, error) {
	if a.cfg.Redis.Addr != "" {
		client, err := redis.NewClient(ctx, a.cfg.Redis, a.logger)
		if err != nil {
			return nil, err
		}
		a.redis = client
		return client.JobStore(), nil
	}

	store := redesign.NewMemoryStore()
	janitor, err := redesign.StartJanitor(store, a.cfg.Styles.JanitorSchedule, a.cfg.Redis.JobTTLDuration(), a.logger)
	if err != nil {
		return nil, err
	}
	a.janitor = janitor
	return store, nil
}

func serviceSettings(cfg config.TrackerConfig) redesign.Settings {
	settings := redesign.DefaultSettings()
	settings.Mode = redesign.Mode(cfg.Mode)
	settings.Tracker = redesign.TrackerSettings{
		MaxAttempts:   cfg.MaxAttempts,
		PollInterval:  cfg.PollInterval(),
		WaitTimeout:   time.Duration(cfg.WaitTimeout) * time.Second,
		CancelTimeout: time.Duration(cfg.CancelTimeout) * time.Second,
	}
	return settings
}

// Close releases the registry resources
func (a *app) Close() error {
	var err error
	if a.janitor != nil {
		<-a.janitor.Stop().Done()
	}
	if a.redis != nil {
		err = multierr.Append(err, a.redis.Close())
	}
	return err
}

// bootstrap loads configuration and wires the app for a command
func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

// shutdown closes the app and flushes the logger, combining both errors
func (a *app) shutdown() error {
	err := a.Close()
	_ = a.logger.Sync() // fails with ENOTTY on terminals
	return err
}
