package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/and161185/lexes/internal/config"
	"github.com/and161185/lexes/internal/janitor"
	"github.com/and161185/lexes/internal/limiter"
	"github.com/and161185/lexes/internal/migrate"
	"github.com/and161185/lexes/internal/repository/postgres"
	httpserver "github.com/and161185/lexes/internal/server/http"
	"github.com/and161185/lexes/internal/service"
)

type serveFlags struct {
	addr       string
	dsn        string
	sessionTTL time.Duration
	noMigrate  bool
}

func newServeCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API. Settings come from LEXES_* environment variables
(and .env when LEXES_ENV=dev); flags override them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, !f.noMigrate)
		},
	}
	cmd.Flags().StringVar(&f.addr, "addr", "", "listen address (LEXES_ADDR)")
	cmd.Flags().StringVar(&f.dsn, "dsn", "", "PostgreSQL DSN (LEXES_DSN)")
	cmd.Flags().DurationVar(&f.sessionTTL, "session-ttl", 0, "session lifetime (LEXES_SESSION_TTL)")
	cmd.Flags().BoolVar(&f.noMigrate, "no-migrate", false, "skip applying migrations on start")
	return cmd
}

func loadConfig(cmd *cobra.Command, f serveFlags) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Addr = f.addr
	}
	if cmd.Flags().Changed("dsn") {
		cfg.DSN = f.dsn
	}
	if cmd.Flags().Changed("session-ttl") {
		cfg.SessionTTL = f.sessionTTL
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Dev() {
		zc = zap.NewDevelopmentConfig()
	}
	lvl, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc.Level = lvl
	return zc.Build()
}

// serve runs migrations, wires storage and services, and blocks until a signal arrives.
func serve(parent context.Context, cfg config.Config, runMigrations bool) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
	)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if runMigrations {
		if err := migrate.Up(ctx, cfg.DSN); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
	}

	db, err := postgres.New(ctx, cfg.DSN, cfg.DBOpTimeout)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer db.Close()

	// Repositories
	accountRepo := postgres.NewAccountRepo(db)
	sessionRepo := postgres.NewSessionRepo(db)
	followRepo := postgres.NewFollowRepo(db)
	lexRepo := postgres.NewLexRepo(db)

	var lim limiter.Limiter
	tasks := []janitor.Task{{Name: "sessions", Purge: sessionRepo.PurgeExpired}}
	if cfg.Login.MaxFails > 0 {
		pg := limiter.NewPG(db.Pool, db, cfg.Login.Window, cfg.Login.MaxFails, cfg.Login.BlockFor)
		lim = pg
		tasks = append(tasks, janitor.Task{Name: "auth_limiter", Purge: pg.Purge})
	}

	// Services
	authSvc := service.NewAuthService(accountRepo, sessionRepo, lim, cfg.SessionTTL)
	accountSvc := service.NewAccountService(accountRepo, followRepo, lexRepo, authSvc)
	followSvc := service.NewFollowService(accountRepo, followRepo, authSvc)
	lexSvc := service.NewLexService(accountRepo, lexRepo, authSvc)

	app := httpserver.New(accountSvc, authSvc, followSvc, lexSvc, db, logger)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go janitor.Run(ctx, cfg.JanitorInterval, logger, tasks...)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown", zap.Error(err))
			_ = srv.Close()
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			return err
		}
	}

	logger.Info("shutdown complete")
	return nil
}
