package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/campus/internal/config"
	"github.com/gosuda/campus/internal/store/postgres"
)

var rootCmd = &cobra.Command{ //nolint:gochecknoglobals // cobra command tree
	Use:           "campus",
	Short:         "Multi-tenant school management backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd, importLegacyCmd, createUserCmd, addMemberCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("campus failed")
		cancel()
		os.Exit(1)
	}
}

// setup loads configuration and initializes the global logger from it.
func setup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Format == "console" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*postgres.Store, error) {
	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return nil, fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}
	return postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
}
