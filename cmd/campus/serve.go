package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/campus/internal/auth"
	"github.com/gosuda/campus/internal/server"
	redisstore "github.com/gosuda/campus/internal/store/redis"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{ //nolint:gochecknoglobals // cobra command tree
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  cmdServe,
}

func cmdServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := setup()
	if err != nil {
		return err
	}

	// Connect to PostgreSQL.
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// Connect to Redis.
	revocations, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer revocations.Close()

	authSvc := auth.NewService(store.Users(), revocations, cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)

	deps := server.Deps{
		Store:       store,
		Revocations: revocations,
		Auth:        authSvc,
	}
	if cfg.OAuth.GoogleEnabled() {
		deps.OAuth = auth.NewGoogleProvider(cfg.OAuth.GoogleClientID, cfg.OAuth.GoogleClientSecret, cfg.OAuth.GoogleRedirectURL)
		log.Info().Msg("serve: google sign-in enabled")
	}

	srv := server.New(ctx, cfg, deps)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	// Block until shutdown signal or listener failure.
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("stopped")
	return nil
}
