package modules

import (
	"context"
	"log/slog"
	"sync/atomic"

	"go.uber.org/fx"

	"github.com/memohai/chatsync/internal/chatsync"
	"github.com/memohai/chatsync/internal/chatsync/gateway"
	"github.com/memohai/chatsync/internal/chatsync/postgres"
	"github.com/memohai/chatsync/internal/config"
)

// GatewayModule wires the Discord gateway consumer's start/stop into the
// process lifecycle, the way InfraModule's provideDBPool ties a pool's
// Close to fx.Hook.OnStop.
var GatewayModule = fx.Module(
	"Gateway",
	fx.Provide(provideGatewayConsumer, provideGatewayStatus),
	fx.Invoke(startGateway),
)

// gatewayConnected is read by the health endpoint. It starts false, is set
// true when the consumer's Run goroutine is started, and is set false again
// when Run returns; it does not track reconnects inside Run.
type gatewayConnected struct {
	flag atomic.Bool
}

func provideGatewayStatus() *gatewayConnected {
	return &gatewayConnected{}
}

func provideGatewayConsumer(cfg config.Config, log *slog.Logger, worker *chatsync.Worker, store *postgres.Store) *gateway.Consumer {
	return gateway.New(gateway.Config{
		Token:   cfg.Discord.BotToken,
		Intents: cfg.Discord.GatewayIntents,
	}, worker, store.ChannelLinks(), log)
}

func startGateway(lc fx.Lifecycle, cfg config.Config, log *slog.Logger, consumer *gateway.Consumer, status *gatewayConnected, shutdowner fx.Shutdowner) {
	if !cfg.Discord.GatewayEnabled {
		log.Info("discord gateway disabled, skipping connect")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			status.flag.Store(true)
			go func() {
				defer status.flag.Store(false)
				if err := consumer.Run(ctx); err != nil {
					log.Error("gateway consumer stopped", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
