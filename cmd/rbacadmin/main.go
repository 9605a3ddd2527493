package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloven/rbac-admin/internal/app"
	"github.com/cloven/rbac-admin/internal/platform/db"
	"github.com/cloven/rbac-admin/migrations"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit code. Cobra's own error
// printing is silenced, so the error is written to stderr here.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "rbacadmin: %v\n", err)
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "rbacadmin",
		Short:         "RBAC administration API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "optional .env file loaded before reading the environment")

	load := func() (*app.Config, *slog.Logger, error) {
		cfg, err := app.LoadConfig(envFile)
		if err != nil {
			slog.Default().Error("load config", slog.Any("error", err))
			return nil, nil, err
		}
		return cfg, app.NewLogger(cfg), nil
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, logger, err := load()
				if err != nil {
					return err
				}
				return serve(cmd.Context(), cfg, logger)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending database migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, logger, err := load()
				if err != nil {
					return err
				}
				return migrate(cmd.Context(), cfg, logger)
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Seed default roles, permissions and the admin account",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, logger, err := load()
				if err != nil {
					return err
				}
				return seed(cmd.Context(), cfg, logger)
			},
		},
	)
	return root
}

func serve(parent context.Context, cfg *app.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("build application", slog.Any("error", err))
		return err
	}
	defer container.Close()

	if cfg.SeedOnStart || cfg.StoreDriver == app.StoreMemory {
		if _, err := container.Seeder.Run(ctx, cfg.SeedAdminPassword); err != nil {
			logger.Error("seed on start", slog.Any("error", err))
			return err
		}
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      container.Router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return err
	}
	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

func migrate(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	if cfg.StoreDriver != app.StorePostgres {
		return fmt.Errorf("migrate requires STORE_DRIVER=%s", app.StorePostgres)
	}
	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolConfig())
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return err
	}
	defer pool.Close()

	applied, err := db.Migrate(ctx, pool, migrations.FS, logger)
	if err != nil {
		logger.Error("migrate", slog.Any("error", err))
		return err
	}
	logger.Info("migrations complete", slog.Int("applied", len(applied)))
	return nil
}

func seed(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	container, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("build application", slog.Any("error", err))
		return err
	}
	defer container.Close()

	if _, err := container.Seeder.Run(ctx, cfg.SeedAdminPassword); err != nil {
		logger.Error("seed", slog.Any("error", err))
		return err
	}
	return nil
}
