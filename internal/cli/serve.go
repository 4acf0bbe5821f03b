package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/chartbridge/chartbridge/internal/bridge/config"
	"github.com/chartbridge/chartbridge/internal/bridge/generator"
	"github.com/chartbridge/chartbridge/internal/bridge/server"
	"github.com/chartbridge/chartbridge/internal/common/logtrace"
)

// DefaultConfigFile is where the service looks for its configuration
// when no --config flag is given.
const DefaultConfigFile = "/etc/chartbridge/chartbridge.conf"

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the chartbridge service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			return runServer(ctx)
		},
	}
}

func runServer(ctx context.Context) error {
	logtrace.InitLogger()
	slog := log.With().Str("state", "init").Logger()

	slog.Info().Str("config_file", configFile).Msg("loading config file")
	if err := config.LoadConfig(configFile); err != nil {
		return fmt.Errorf("loading config file: %w", err)
	}
	if config.Config().ServerPort == "" {
		return fmt.Errorf("server port not defined")
	}

	gen, err := generator.New(&config.Config().Generator)
	if err != nil {
		return fmt.Errorf("creating chart generator: %w", err)
	}

	serverErrors, shutdownServer, err := createBridgeServer(ctx, gen)
	if err != nil {
		return fmt.Errorf("creating bridge server: %w", err)
	}

	// Channel to listen for an interrupt or terminate signal from the OS.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		slog.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		shutdownServer()
	}

	slog.Info().Msg("server stopped")
	return nil
}

func createBridgeServer(ctx context.Context, gen generator.ChartGenerator) (chan error, func(), error) {
	slog := log.With().Str("state", "init").Logger()
	s, err := server.CreateNewServer(gen)
	if err != nil {
		return nil, nil, fmt.Errorf("creating server: %w", err)
	}
	s.MountHandlers()

	srv := &http.Server{
		Addr:              ":" + config.Config().ServerPort,
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)

	// Start the service listening for requests.
	go func() {
		slog.Info().Str("port", config.Config().ServerPort).Msg("server started")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := func() {
		// Give outstanding requests 5 seconds to complete and initiate the shutdown.
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error().Err(err).Msg("could not stop server gracefully")
			if err := srv.Close(); err != nil {
				slog.Error().Err(err).Msg("could not stop server")
			}
		}
		s.Shutdown()
	}

	return serverErrors, shutdown, nil
}
