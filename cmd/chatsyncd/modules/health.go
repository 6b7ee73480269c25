package modules

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"

	"github.com/memohai/chatsync/internal/chatsync/health"
	"github.com/memohai/chatsync/internal/config"
)

// HealthModule exposes the /healthz liveness/readiness surface.
var HealthModule = fx.Module(
	"Health",
	fx.Provide(provideHealthServer),
	fx.Invoke(startHealthServer),
)

func provideHealthServer(cfg config.Config, log *slog.Logger, pool *pgxpool.Pool, status *gatewayConnected) *health.Server {
	return health.NewServer(log, cfg.Server.Addr, pool, status.flag.Load)
}

func startHealthServer(lc fx.Lifecycle, log *slog.Logger, srv *health.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("health server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Stop(ctx)
		},
	})
}
