package chatsync

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

const backfillConcurrency = 5

// BackfillScanner is §4.6: it runs connection-scoped backfill over every
// active connection of a provider, bounded to a fixed concurrency.
type BackfillScanner struct {
	worker      *Worker
	connections ConnectionRepo
	logger      *slog.Logger
}

// NewBackfillScanner creates a BackfillScanner over an existing Worker.
func NewBackfillScanner(log *slog.Logger, worker *Worker, connections ConnectionRepo) *BackfillScanner {
	if log == nil {
		log = slog.Default()
	}
	return &BackfillScanner{
		worker:      worker,
		connections: connections,
		logger:      log.With(slog.String("component", "backfill_scanner")),
	}
}

// SyncAllActiveConnections is §4.6: run syncConnection over every active
// connection of the given provider, concurrency bounded, returning one
// summary per connection.
func (s *BackfillScanner) SyncAllActiveConnections(ctx context.Context, provider Provider, maxMessagesPerChannel int) ([]BackfillSummary, error) {
	conns, err := s.connections.FindActiveByProvider(ctx, provider)
	if err != nil {
		return nil, err
	}

	summaries := make([]BackfillSummary, len(conns))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(backfillConcurrency)

	for i, conn := range conns {
		i, conn := i, conn
		g.Go(func() error {
			summary, err := s.worker.SyncConnection(gctx, conn.ID, maxMessagesPerChannel)
			if err != nil {
				s.logger.Error("backfill connection failed", slog.String("connection", conn.ID), slog.Any("error", err))
				summary = BackfillSummary{SyncConnectionID: conn.ID, Failed: 1}
			}
			mu.Lock()
			summaries[i] = summary
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return summaries, nil
}
