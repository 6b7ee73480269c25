package chatsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

const dispatcherConcurrency = 5

// FanoutResult aggregates one fan-out pass across every outbound target
// of a Hazel message.
type FanoutResult struct {
	Synced int
	Failed int
}

// Dispatcher is the Outbound Fan-out Dispatcher (§4.5): it resolves every
// active outbound channel link for a Hazel channel and invokes the
// matching Sync Core Worker verb on each, concurrently and bounded.
type Dispatcher struct {
	worker       *Worker
	channelLinks ChannelLinkRepo
	messages     MessageRepo
	logger       *slog.Logger
}

// NewDispatcher creates a Dispatcher over an existing Worker.
func NewDispatcher(log *slog.Logger, worker *Worker, channelLinks ChannelLinkRepo, messages MessageRepo) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		worker:       worker,
		channelLinks: channelLinks,
		messages:     messages,
		logger:       log.With(slog.String("component", "fanout_dispatcher")),
	}
}

func (d *Dispatcher) targets(ctx context.Context, hazelChannelID string, provider Provider) ([]ChannelLinkWithConnection, error) {
	all, err := d.channelLinks.FindActiveOutboundTargets(ctx, hazelChannelID, provider)
	if err != nil {
		return nil, err
	}
	eligible := make([]ChannelLinkWithConnection, 0, len(all))
	for _, t := range all {
		if t.Link.EligibleOutbound() {
			eligible = append(eligible, t)
		}
	}
	return eligible, nil
}

func (d *Dispatcher) run(ctx context.Context, hazelMessageID string, targets []ChannelLinkWithConnection, invoke func(ctx context.Context, syncConnectionID string) (Result, error)) FanoutResult {
	var result FanoutResult
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dispatcherConcurrency)

	for _, target := range targets {
		target := target
		g.Go(func() error {
			res, err := invoke(gctx, target.SyncConnectionID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				d.logger.Error("fan-out target failed",
					slog.String("hazel_message_id", hazelMessageID),
					slog.String("sync_connection_id", target.SyncConnectionID),
					slog.Any("error", err))
				return nil
			}
			if res.Outcome == OutcomeSynced {
				result.Synced++
			}
			return nil
		})
	}
	_ = g.Wait()
	return result
}

// SyncHazelMessageCreateToAllConnections is §4.5's create fan-out.
func (d *Dispatcher) SyncHazelMessageCreateToAllConnections(ctx context.Context, provider Provider, hazelMessageID, dedupeKey string) (FanoutResult, error) {
	msg, err := d.messages.FindByID(ctx, hazelMessageID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return FanoutResult{}, nil
		}
		return FanoutResult{}, err
	}
	targets, err := d.targets(ctx, msg.ChannelID, provider)
	if err != nil {
		return FanoutResult{}, err
	}
	shared := dedupeKey
	if shared == "" {
		shared = fmt.Sprintf("hazel:message:create:%s", hazelMessageID)
	}
	result := d.run(ctx, hazelMessageID, targets, func(ctx context.Context, syncConnectionID string) (Result, error) {
		return d.worker.SyncHazelMessageToProvider(ctx, OutboundCreateInput{
			SyncConnectionID: syncConnectionID,
			HazelMessageID:   hazelMessageID,
			DedupeKey:        shared,
		})
	})
	return result, nil
}

// SyncHazelMessageUpdateToAllConnections is §4.5's update fan-out.
func (d *Dispatcher) SyncHazelMessageUpdateToAllConnections(ctx context.Context, provider Provider, hazelMessageID, dedupeKey string) (FanoutResult, error) {
	msg, err := d.messages.FindByID(ctx, hazelMessageID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return FanoutResult{}, nil
		}
		return FanoutResult{}, err
	}
	targets, err := d.targets(ctx, msg.ChannelID, provider)
	if err != nil {
		return FanoutResult{}, err
	}
	shared := dedupeKey
	if shared == "" {
		shared = fmt.Sprintf("hazel:message:update:%s", hazelMessageID)
	}
	result := d.run(ctx, hazelMessageID, targets, func(ctx context.Context, syncConnectionID string) (Result, error) {
		return d.worker.SyncHazelMessageUpdateToProvider(ctx, OutboundUpdateInput{
			SyncConnectionID: syncConnectionID,
			HazelMessageID:   hazelMessageID,
			DedupeKey:        shared,
		})
	})
	return result, nil
}

// SyncHazelMessageDeleteToAllConnections is §4.5's delete fan-out. Because
// the message row is typically already soft-deleted by the time this
// runs, the channel is resolved from the caller-supplied hazelChannelID
// rather than by re-reading the message.
func (d *Dispatcher) SyncHazelMessageDeleteToAllConnections(ctx context.Context, provider Provider, hazelChannelID, hazelMessageID, dedupeKey string) (FanoutResult, error) {
	targets, err := d.targets(ctx, hazelChannelID, provider)
	if err != nil {
		return FanoutResult{}, err
	}
	shared := dedupeKey
	if shared == "" {
		shared = fmt.Sprintf("hazel:message:delete:%s", hazelMessageID)
	}
	result := d.run(ctx, hazelMessageID, targets, func(ctx context.Context, syncConnectionID string) (Result, error) {
		return d.worker.SyncHazelMessageDeleteToProvider(ctx, OutboundDeleteInput{
			SyncConnectionID: syncConnectionID,
			HazelMessageID:   hazelMessageID,
			DedupeKey:        shared,
		})
	})
	return result, nil
}
