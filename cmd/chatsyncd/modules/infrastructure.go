package modules

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"

	"github.com/memohai/chatsync/internal/chatsync/postgres"
	"github.com/memohai/chatsync/internal/config"
	"github.com/memohai/chatsync/internal/db"
	"github.com/memohai/chatsync/internal/logger"
)

// InfraModule provides configuration, logging, and the Postgres pool that
// every other module builds on.
var InfraModule = fx.Module(
	"Infra",
	fx.Provide(
		provideConfig,
		provideLogger,
		provideDBPool,
		provideStore,
	),
)

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CHATSYNC_CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			pool.Close()
			return nil
		},
	})
	return pool, nil
}

func provideStore(pool *pgxpool.Pool) *postgres.Store {
	return postgres.New(pool)
}
