package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	relay "github.com/dawitel/ed25519-relay"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := relay.LoadFromEnv(envFile)
	if err != nil {
		// Config errors happen before the configured logger exists.
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	logger := relay.NewLogger(cfg.Logging)

	service, err := relay.NewService(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create relay service")
		return fmt.Errorf("failed to create service: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := relay.NewServer(service).Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Server stopped with error")
		return err
	}

	return nil
}
