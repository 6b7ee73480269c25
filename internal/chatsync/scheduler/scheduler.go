// Package scheduler drives the periodic backfill sweep (§2's "a periodic
// sweep runs Backfill Scanner ... at bounded concurrency") on a cron
// schedule, the way internal/schedule.Service wraps robfig/cron/v3 for
// the teacher's user-facing scheduled jobs.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/memohai/chatsync/internal/chatsync"
)

// Scheduler runs BackfillScanner.SyncAllActiveConnections for a single
// provider on a cron schedule.
type Scheduler struct {
	cron                  *cron.Cron
	scanner               *chatsync.BackfillScanner
	provider              chatsync.Provider
	maxMessagesPerChannel int
	logger                *slog.Logger
}

// New creates a Scheduler; the cron instance is not started until Start
// is called.
func New(log *slog.Logger, scanner *chatsync.BackfillScanner, provider chatsync.Provider, maxMessagesPerChannel int) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		cron:                  cron.New(),
		scanner:               scanner,
		provider:              provider,
		maxMessagesPerChannel: maxMessagesPerChannel,
		logger:                log.With(slog.String("component", "backfill_scheduler")),
	}
}

// Start registers the sweep job at the given cron expression and starts
// the scheduler's own goroutine.
func (s *Scheduler) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, s.runSweep)
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop stops the scheduler, waiting for any in-flight job to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runSweep() {
	summaries, err := s.scanner.SyncAllActiveConnections(context.Background(), s.provider, s.maxMessagesPerChannel)
	if err != nil {
		s.logger.Error("backfill sweep failed", slog.Any("error", err))
		return
	}
	var sent, skipped, failed int
	for _, summary := range summaries {
		sent += summary.Sent
		skipped += summary.Skipped
		failed += summary.Failed
	}
	s.logger.Info("backfill sweep complete",
		slog.Int("connections", len(summaries)),
		slog.Int("sent", sent),
		slog.Int("skipped", skipped),
		slog.Int("failed", failed),
	)
}
