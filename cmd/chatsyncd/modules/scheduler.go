package modules

import (
	"context"
	"fmt"
	"log/slog"

	"go.uber.org/fx"

	"github.com/memohai/chatsync/internal/chatsync"
	"github.com/memohai/chatsync/internal/chatsync/scheduler"
	"github.com/memohai/chatsync/internal/config"
)

const discordProvider chatsync.Provider = "discord"

// SchedulerModule drives the periodic backfill sweep described in §2's
// control-flow summary, on the cron schedule from config.
var SchedulerModule = fx.Module(
	"Scheduler",
	fx.Provide(provideScheduler),
	fx.Invoke(startScheduler),
)

func provideScheduler(log *slog.Logger, scannerSvc *chatsync.BackfillScanner, cfg config.Config) *scheduler.Scheduler {
	return scheduler.New(log, scannerSvc, discordProvider, cfg.Backfill.MaxMessagesPerChannel)
}

func startScheduler(lc fx.Lifecycle, log *slog.Logger, sched *scheduler.Scheduler, cfg config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := sched.Start(cfg.Backfill.CronSchedule); err != nil {
				return fmt.Errorf("start backfill scheduler: %w", err)
			}
			log.Info("backfill scheduler started", slog.String("cron", cfg.Backfill.CronSchedule))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return sched.Stop(ctx)
		},
	})
}
