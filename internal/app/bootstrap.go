package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"todo-serverless/internal/auth"
	"todo-serverless/internal/config"
	"todo-serverless/internal/db"
	"todo-serverless/internal/observability"
	"todo-serverless/internal/task"
	"todo-serverless/internal/user"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Addr    string
	Logger  *observability.Logger
	Close   func() error
}

// Build loads configuration, connects to Postgres and wires every component.
// A missing or unusable signing secret is returned wrapped in
// auth.ErrConfiguration and must abort startup.
func Build(options Options) (*Runtime, error) {
	cfg, err := config.Load(config.Options{LoadDotEnv: options.LoadDotEnv})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrConfiguration, err)
	}

	logger := observability.NewLoggerWithWriter(os.Stdout, observability.ParseLevel(cfg.LogLevel))

	signingKey, err := auth.NewSigningKey(cfg.SigningSecret)
	if err != nil {
		return nil, err
	}

	if err := observability.InitSentry(cfg.SentryDSN, cfg.AppEnv); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := db.Open(cfg.DatabaseURL, db.PoolOptions{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := database.PingContext(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations || cfg.RunMigrations {
		if err := db.RunMigrations(ctx, database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	users := user.NewRepository(database)
	if err := user.Bootstrap(ctx, users, cfg.BootstrapUsername, cfg.BootstrapPassword, cfg.BcryptCost); err != nil {
		_ = database.Close()
		return nil, err
	}

	handler, err := newRouter(cfg, logger, signingKey, stores{
		users:    users,
		tasks:    task.NewRepository(database),
		attempts: auth.NewAttemptRepository(database),
		health:   database,
	})
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	return &Runtime{
		Handler: handler,
		Addr:    ":" + cfg.Port,
		Logger:  logger,
		Close: func() error {
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}
