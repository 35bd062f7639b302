package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"onedrive-console/internal/auth"
	"onedrive-console/internal/config"
	"onedrive-console/internal/graph"
	"onedrive-console/internal/web"
)

// shutdownTimeout is how long in-flight requests get to drain on SIGINT/SIGTERM.
const shutdownTimeout = 10 * time.Second

// runServe is the composition root: load config, build the credential
// provider and drive gateway, and run the web server until a signal arrives.
func runServe(ctx context.Context, logger *slog.Logger) error {
	// Local development convenience; absence of the file is not an error.
	if err := godotenv.Load(flagEnvFile); err != nil {
		logger.Debug("no env file loaded", slog.String("path", flagEnvFile))
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("flow", string(cfg.Flow)),
		slog.String("drive", cfg.DrivePrefix()),
	)

	provider := auth.NewProvider(cfg, logger)
	client := graph.NewClient(graph.DefaultBaseURL, defaultHTTPClient(), provider, logger)
	drive := graph.NewDrive(client, cfg.DrivePrefix())
	srv := web.NewServer(drive, provider, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(flagAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}

		return nil
	})

	return g.Wait()
}
