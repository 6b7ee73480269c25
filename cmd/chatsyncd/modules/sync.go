package modules

import (
	"fmt"
	"log/slog"

	"go.uber.org/fx"

	"github.com/memohai/chatsync/internal/chatsync"
	"github.com/memohai/chatsync/internal/chatsync/discord"
	"github.com/memohai/chatsync/internal/chatsync/postgres"
	"github.com/memohai/chatsync/internal/config"
)

// SyncModule provides the provider registry and the Sync Core Worker's
// collaborators, wiring the Discord adapter into the registry unconditionally
// (the adapter itself never blocks on the gateway being enabled — only
// GatewayModule's consumer does).
var SyncModule = fx.Module(
	"Sync",
	fx.Provide(
		provideDiscordAdapter,
		provideRegistry,
		provideIdentityResolver,
		provideReceiptLedger,
		provideWorker,
		provideDispatcher,
		provideBackfillScanner,
	),
)

func provideDiscordAdapter(cfg config.Config, log *slog.Logger) (*discord.Adapter, error) {
	return discord.New(discord.Config{BotToken: cfg.Discord.BotToken}, log)
}

func provideRegistry(adapter *discord.Adapter) (*chatsync.Registry, error) {
	reg := chatsync.NewRegistry()
	if err := reg.Register(adapter); err != nil {
		return nil, fmt.Errorf("register discord adapter: %w", err)
	}
	return reg, nil
}

func provideIdentityResolver(log *slog.Logger, store *postgres.Store) *chatsync.IdentityResolver {
	return chatsync.NewIdentityResolver(log, store.IntegrationConnections(), store.Users(), store.OrganizationMembers(), store.Bots())
}

func provideReceiptLedger(log *slog.Logger, store *postgres.Store) *chatsync.ReceiptLedger {
	return chatsync.NewReceiptLedger(log, store.EventReceipts())
}

func provideWorker(log *slog.Logger, store *postgres.Store, receipts *chatsync.ReceiptLedger, identity *chatsync.IdentityResolver, registry *chatsync.Registry) *chatsync.Worker {
	return chatsync.NewWorker(log, store.Connections(), store.ChannelLinks(), store.MessageLinks(), store.Messages(), receipts, identity, registry)
}

func provideDispatcher(log *slog.Logger, worker *chatsync.Worker, store *postgres.Store) *chatsync.Dispatcher {
	return chatsync.NewDispatcher(log, worker, store.ChannelLinks(), store.Messages())
}

func provideBackfillScanner(log *slog.Logger, worker *chatsync.Worker, store *postgres.Store) *chatsync.BackfillScanner {
	return chatsync.NewBackfillScanner(log, worker, store.Connections())
}
