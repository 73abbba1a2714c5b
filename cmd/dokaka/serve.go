package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/rikhii20/DoKaka/internal/auth"
	"github.com/rikhii20/DoKaka/internal/config"
	"github.com/rikhii20/DoKaka/internal/httpapi"
	"github.com/rikhii20/DoKaka/internal/logging"
	"github.com/rikhii20/DoKaka/internal/store"
	"github.com/rikhii20/DoKaka/internal/store/memory"
	"github.com/rikhii20/DoKaka/internal/store/postgres"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API. Users are kept in PostgreSQL when DATABASE_URL
is set and in process memory otherwise.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	logger := logging.Setup("dokaka", version, cfg.LogFormat, nil)
	slog.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, closer, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer()
	}

	tokens, err := auth.NewTokenIssuer(cfg.SecretToken, cfg.TokenTTL)
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}
	svc := auth.NewService(st, auth.NewBcryptHasher(cfg.BcryptCost), tokens, logger)
	srv := httpapi.NewServer(cfg, svc, logger)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr(), "prefix", cfg.APIPrefix)
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	var serveErr error
	select {
	case <-stop:
		logger.Info("shutdown requested")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = oops.Code("SERVER_FAILED").Wrap(err)
		}
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		logging.LogError(ctxShutdown, logger, "shutdown failed", err)
	}
	return serveErr
}

// openStore picks the postgres store when a database URL is configured and
// the memory store otherwise. The returned closer may be nil.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Info("using memory store")
		return memory.NewStore(), nil, nil
	}

	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, cfg.DatabaseURL); err != nil {
			return nil, nil, oops.Code("MIGRATION_FAILED").With("operation", "auto migrate").Wrap(err)
		}
		logger.Info("migrations applied")
	}

	pg, err := postgres.NewStore(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	logger.Info("using postgres store")
	return pg, pg.Close, nil
}
