package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koios/arqia/internal/handlers"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP relay",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.shutdown()

	cfg := a.cfg
	logger := a.logger

	handler := handlers.NewRelayHandler(a.service, cfg.Relay.MaxBodyBytes, logger)
	router := handlers.NewRouter(handler, handlers.RouterOptions{
		APIPrefix:      cfg.Relay.APIPrefix,
		AllowedOrigins: cfg.Relay.AllowedOrigins,
		RateLimit:      cfg.Relay.RateLimit,
		RateWindow:     time.Duration(cfg.Relay.RateWindow) * time.Second,
	}, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting relay",
			zap.Int("port", cfg.Server.Port),
			zap.String("env", cfg.AppEnv),
			zap.String("prefix", cfg.Relay.APIPrefix))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down relay...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Relay forced to shutdown", zap.Error(err))
			return err
		}
		logger.Info("Relay exited")
		return nil
	})

	if err := g.Wait(); err != nil {
		fmt.Fprintln(os.Stderr, "relay stopped:", err)
		return err
	}
	return nil
}
