package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/app"
	"github.com/mateusz-kowalczyk-12/shared-canvas/internal/config"
	applog "github.com/mateusz-kowalczyk-12/shared-canvas/internal/log"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	cmd := &cobra.Command{
		Use:           "shared-canvas",
		Short:         "UDP relay for a shared drawing canvas",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath, overrides)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "path to config file (default ./config.yaml)")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flags.StringVar(&overrides.Host, "host", "", "address to bind the relay sockets to")
	flags.IntVar(&overrides.RendezvousPort, "rendezvous-port", 0, "rendezvous (handshake) UDP port")
	flags.IntVar(&overrides.IngressPort, "ingress-port", 0, "UDP port receiving stroke batches")
	flags.IntVar(&overrides.EgressPort, "egress-port", 0, "UDP port sending relayed strokes")
	flags.StringVar(&overrides.HTTPAddr, "http-addr", "", "admin HTTP listen address")

	return cmd
}

func run(ctx context.Context, configPath string, overrides config.Config) error {
	bootLog := applog.New(firstNonEmpty(overrides.LogLevel, "info"))

	cfg, path, err := config.Load(bootLog, configPath)
	if err != nil {
		bootLog.Error().Err(err).Str("path", path).Msg("failed to load config")
		return err
	}
	cfg.UpdateFrom(overrides)
	if err := cfg.Validate(); err != nil {
		bootLog.Error().Err(err).Msg("invalid config")
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := applog.New(cfg.LogLevel)
	logger.Info().Str("config", path).Msg("configuration loaded")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to start")
		return err
	}

	logger.Info().
		Str("rendezvous", application.RendezvousAddr().String()).
		Str("http", cfg.HTTPAddr).
		Msg("starting shared canvas relay")
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
