package chatsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// SystemActor is the authorization token the worker presents to
// repository writes; the core performs no user-level authorization of its
// own beyond carrying this marker.
type SystemActor string

// DefaultSystemActor is the actor used when none is supplied to NewWorker.
const DefaultSystemActor SystemActor = "chatsync-engine"

// Worker is the provider-agnostic Sync Core Worker: ingress create/update
// /delete, outbound create/update/delete, and connection-scoped backfill.
// It composes the registry, the receipt ledger, and the identity resolver
// over the five repositories.
type Worker struct {
	actor SystemActor

	connections  ConnectionRepo
	channelLinks ChannelLinkRepo
	messageLinks MessageLinkRepo
	messages     MessageRepo
	receipts     *ReceiptLedger
	identity     *IdentityResolver
	registry     *Registry

	logger *slog.Logger
}

// NewWorker constructs a Worker over its five repositories, the identity
// collaborator, and the adapter registry.
func NewWorker(
	log *slog.Logger,
	connections ConnectionRepo,
	channelLinks ChannelLinkRepo,
	messageLinks MessageLinkRepo,
	messages MessageRepo,
	receipts *ReceiptLedger,
	identity *IdentityResolver,
	registry *Registry,
) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		actor:        DefaultSystemActor,
		connections:  connections,
		channelLinks: channelLinks,
		messageLinks: messageLinks,
		messages:     messages,
		receipts:     receipts,
		identity:     identity,
		registry:     registry,
		logger:       log.With(slog.String("component", "sync_worker")),
	}
}

// loadActiveConnection loads the connection and, when expectedProvider is
// non-empty, verifies it matches the connection's own provider (the
// ingress-side guard of §4.4.1 step 2). It returns ok=false (no error)
// when the connection is not eligible — the caller commits `ignored`.
func (w *Worker) loadActiveConnection(ctx context.Context, syncConnectionID string, expectedProvider Provider) (Connection, bool, error) {
	conn, err := w.connections.FindByID(ctx, syncConnectionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Connection{}, false, &ConnectionNotFoundError{SyncConnectionID: syncConnectionID}
		}
		return Connection{}, false, err
	}
	if expectedProvider != "" && conn.Provider != expectedProvider {
		return conn, false, nil
	}
	if conn.Status != ConnectionActive {
		return conn, false, nil
	}
	return conn, true, nil
}

// ---- 4.4.1 Ingress create ----

// IngressCreateInput is the input to IngestMessageCreate.
type IngressCreateInput struct {
	SyncConnectionID          string
	ExpectedProvider          Provider
	ExternalChannelID         string
	ExternalMessageID         string
	Content                   string
	ExternalAuthorID          string
	ExternalAuthorDisplayName string
	ExternalAuthorAvatarURL   string
	ExternalThreadID          string
	DedupeKey                 string
}

func (in IngressCreateInput) dedupeKey() string {
	if in.DedupeKey != "" {
		return in.DedupeKey
	}
	return fmt.Sprintf("external:message:create:%s", in.ExternalMessageID)
}

// IngestMessageCreate is §4.4.1: mirror one external message into Hazel.
func (w *Worker) IngestMessageCreate(ctx context.Context, in IngressCreateInput) (Result, error) {
	dedupeKey := in.dedupeKey()

	claimed, err := w.receipts.Claim(ctx, in.SyncConnectionID, SourceExternal, dedupeKey, nil)
	if err != nil {
		return Result{}, err
	}
	if !claimed {
		return Result{Outcome: OutcomeDeduped}, nil
	}

	conn, active, err := w.loadActiveConnection(ctx, in.SyncConnectionID, in.ExpectedProvider)
	if err != nil {
		return w.failChannelLookup(ctx, in.SyncConnectionID, SourceExternal, dedupeKey, err)
	}
	if !active {
		if err := w.receipts.Commit(ctx, in.SyncConnectionID, SourceExternal, dedupeKey, ReceiptIgnored, in, "", nil); err != nil {
			w.logger.Warn("commit ignored receipt failed", slog.Any("error", err))
		}
		return Result{Outcome: OutcomeIgnoredConnectionInactive}, nil
	}

	if _, err := w.registry.Get(conn.Provider); err != nil {
		return Result{}, err
	}

	link, err := w.channelLinks.FindByExternalChannel(ctx, conn.ID, in.ExternalChannelID)
	if err != nil {
		return w.failChannelLookup(ctx, in.SyncConnectionID, SourceExternal, dedupeKey, newChannelLinkNotFound(conn.ID, in.ExternalChannelID, err))
	}

	if existing, err := w.messageLinks.FindByExternalMessage(ctx, link.ID, in.ExternalMessageID); err == nil {
		if existing.Live() {
			if err := w.receipts.Commit(ctx, in.SyncConnectionID, SourceExternal, dedupeKey, ReceiptIgnored, in, "", &link.ID); err != nil {
				w.logger.Warn("commit ignored receipt failed", slog.Any("error", err))
			}
			return Result{Outcome: OutcomeAlreadyLinked}, nil
		}
	} else if !errors.Is(err, ErrNotFound) {
		return Result{}, err
	}

	authorID, err := w.resolveIngressAuthor(ctx, conn.Provider, conn.OrganizationID, in.ExternalAuthorID, in.ExternalAuthorDisplayName, in.ExternalAuthorAvatarURL)
	if err != nil {
		return Result{}, err
	}

	msg, err := w.messages.Insert(ctx, HazelMessage{
		ChannelID: link.HazelChannelID,
		AuthorID:  authorID,
		Content:   in.Content,
	})
	if err != nil {
		return Result{}, err
	}

	if _, err := w.messageLinks.Insert(ctx, MessageLink{
		ChannelLinkID:     link.ID,
		HazelMessageID:    msg.ID,
		ExternalMessageID: in.ExternalMessageID,
		Source:            SourceExternal,
		ExternalThreadID:  in.ExternalThreadID,
	}); err != nil {
		return Result{}, err
	}

	if err := w.heartbeatAndCommitProcessed(ctx, conn.ID, link.ID, SourceExternal, dedupeKey, in); err != nil {
		return Result{}, err
	}

	return Result{Outcome: OutcomeCreated, HazelMessageID: msg.ID}, nil
}

func (w *Worker) resolveIngressAuthor(ctx context.Context, provider Provider, organizationID, externalAuthorID, displayName, avatarURL string) (string, error) {
	if externalAuthorID == "" {
		return w.identity.ResolveBotAuthor(ctx, provider, organizationID)
	}
	return w.identity.ResolveAuthor(ctx, provider, organizationID, externalAuthorID, displayName, avatarURL)
}

// failChannelLookup commits the receipt `failed`, with cause's error text
// as its error message, instead of leaving it `claimed`, and returns cause
// (a ChannelLinkNotFoundError, ConnectionNotFoundError or
// MessageNotFoundError) to the caller. The committed receipt still holds
// its dedupe key, so a retry under the same key returns {deduped}.
func (w *Worker) failChannelLookup(ctx context.Context, syncConnectionID string, source Source, dedupeKey string, cause error) (Result, error) {
	if err := w.receipts.Commit(ctx, syncConnectionID, source, dedupeKey, ReceiptFailed, nil, cause.Error(), nil); err != nil {
		w.logger.Warn("commit failed receipt failed", slog.Any("error", err))
	}
	return Result{}, cause
}

func newChannelLinkNotFound(syncConnectionID, externalChannelID string, _ error) *ChannelLinkNotFoundError {
	return &ChannelLinkNotFoundError{SyncConnectionID: syncConnectionID, ExternalChannelID: externalChannelID}
}

func (w *Worker) heartbeatAndCommitProcessed(ctx context.Context, connID, linkID string, source Source, dedupeKey string, payload any) error {
	if err := w.receipts.Commit(ctx, connID, source, dedupeKey, ReceiptProcessed, payload, "", &linkID); err != nil {
		return err
	}
	if err := w.connections.UpdateLastSyncedAt(ctx, connID); err != nil {
		w.logger.Warn("heartbeat connection failed", slog.Any("error", err))
	}
	if err := w.channelLinks.UpdateLastSyncedAt(ctx, linkID); err != nil {
		w.logger.Warn("heartbeat channel link failed", slog.Any("error", err))
	}
	return nil
}

// ---- 4.4.2 Ingress update ----

// IngressUpdateInput is the input to IngestMessageUpdate.
type IngressUpdateInput struct {
	SyncConnectionID  string
	ExpectedProvider  Provider
	ExternalChannelID string
	ExternalMessageID string
	Content           string
	DedupeKey         string
}

func (in IngressUpdateInput) dedupeKey() string {
	if in.DedupeKey != "" {
		return in.DedupeKey
	}
	return fmt.Sprintf("external:message:update:%s", in.ExternalMessageID)
}

// IngestMessageUpdate is §4.4.2.
func (w *Worker) IngestMessageUpdate(ctx context.Context, in IngressUpdateInput) (Result, error) {
	dedupeKey := in.dedupeKey()

	claimed, err := w.receipts.Claim(ctx, in.SyncConnectionID, SourceExternal, dedupeKey, nil)
	if err != nil {
		return Result{}, err
	}
	if !claimed {
		return Result{Outcome: OutcomeDeduped}, nil
	}

	conn, active, err := w.loadActiveConnection(ctx, in.SyncConnectionID, in.ExpectedProvider)
	if err != nil {
		return w.failChannelLookup(ctx, in.SyncConnectionID, SourceExternal, dedupeKey, err)
	}
	if !active {
		if err := w.receipts.Commit(ctx, in.SyncConnectionID, SourceExternal, dedupeKey, ReceiptIgnored, in, "", nil); err != nil {
			w.logger.Warn("commit ignored receipt failed", slog.Any("error", err))
		}
		return Result{Outcome: OutcomeIgnoredConnectionInactive}, nil
	}

	link, err := w.channelLinks.FindByExternalChannel(ctx, conn.ID, in.ExternalChannelID)
	if err != nil {
		return w.failChannelLookup(ctx, in.SyncConnectionID, SourceExternal, dedupeKey, newChannelLinkNotFound(conn.ID, in.ExternalChannelID, err))
	}

	msgLink, err := w.messageLinks.FindByExternalMessage(ctx, link.ID, in.ExternalMessageID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Result{}, err
	}
	if err != nil || !msgLink.Live() {
		if cerr := w.receipts.Commit(ctx, in.SyncConnectionID, SourceExternal, dedupeKey, ReceiptIgnored, in, "", &link.ID); cerr != nil {
			w.logger.Warn("commit ignored receipt failed", slog.Any("error", cerr))
		}
		return Result{Outcome: OutcomeIgnoredMissingLink}, nil
	}

	if _, err := w.messages.Update(ctx, msgLink.HazelMessageID, in.Content); err != nil {
		return Result{}, err
	}

	if err := w.heartbeatAndCommitProcessed(ctx, conn.ID, link.ID, SourceExternal, dedupeKey, in); err != nil {
		return Result{}, err
	}

	return Result{Outcome: OutcomeUpdated, HazelMessageID: msgLink.HazelMessageID}, nil
}

// ---- 4.4.3 Ingress delete ----

// IngressDeleteInput is the input to IngestMessageDelete.
type IngressDeleteInput struct {
	SyncConnectionID  string
	ExpectedProvider  Provider
	ExternalChannelID string
	ExternalMessageID string
	DedupeKey         string
}

func (in IngressDeleteInput) dedupeKey() string {
	if in.DedupeKey != "" {
		return in.DedupeKey
	}
	return fmt.Sprintf("external:message:delete:%s", in.ExternalMessageID)
}

// IngestMessageDelete is §4.4.3. It soft-deletes the internal message but
// deliberately leaves the SyncMessageLink live (§9 design notes): only an
// outbound delete soft-deletes the link, preserving the mapping for any
// late cross-side operation.
func (w *Worker) IngestMessageDelete(ctx context.Context, in IngressDeleteInput) (Result, error) {
	dedupeKey := in.dedupeKey()

	claimed, err := w.receipts.Claim(ctx, in.SyncConnectionID, SourceExternal, dedupeKey, nil)
	if err != nil {
		return Result{}, err
	}
	if !claimed {
		return Result{Outcome: OutcomeDeduped}, nil
	}

	conn, active, err := w.loadActiveConnection(ctx, in.SyncConnectionID, in.ExpectedProvider)
	if err != nil {
		return w.failChannelLookup(ctx, in.SyncConnectionID, SourceExternal, dedupeKey, err)
	}
	if !active {
		if err := w.receipts.Commit(ctx, in.SyncConnectionID, SourceExternal, dedupeKey, ReceiptIgnored, in, "", nil); err != nil {
			w.logger.Warn("commit ignored receipt failed", slog.Any("error", err))
		}
		return Result{Outcome: OutcomeIgnoredConnectionInactive}, nil
	}

	link, err := w.channelLinks.FindByExternalChannel(ctx, conn.ID, in.ExternalChannelID)
	if err != nil {
		return w.failChannelLookup(ctx, in.SyncConnectionID, SourceExternal, dedupeKey, newChannelLinkNotFound(conn.ID, in.ExternalChannelID, err))
	}

	msgLink, err := w.messageLinks.FindByExternalMessage(ctx, link.ID, in.ExternalMessageID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Result{}, err
	}
	if err != nil || !msgLink.Live() {
		if cerr := w.receipts.Commit(ctx, in.SyncConnectionID, SourceExternal, dedupeKey, ReceiptIgnored, in, "", &link.ID); cerr != nil {
			w.logger.Warn("commit ignored receipt failed", slog.Any("error", cerr))
		}
		return Result{Outcome: OutcomeIgnoredMissingLink}, nil
	}

	if _, err := w.messages.SoftDelete(ctx, msgLink.HazelMessageID); err != nil {
		return Result{}, err
	}

	if err := w.heartbeatAndCommitProcessed(ctx, conn.ID, link.ID, SourceExternal, dedupeKey, in); err != nil {
		return Result{}, err
	}

	return Result{Outcome: OutcomeDeleted, HazelMessageID: msgLink.HazelMessageID}, nil
}

// ---- 4.4.4 Outbound create ----

// OutboundCreateInput is the input to SyncHazelMessageToProvider.
type OutboundCreateInput struct {
	SyncConnectionID string
	HazelMessageID   string
	DedupeKey        string
}

func (in OutboundCreateInput) dedupeKey() string {
	if in.DedupeKey != "" {
		return in.DedupeKey
	}
	return fmt.Sprintf("hazel:message:create:%s", in.HazelMessageID)
}

// SyncHazelMessageToProvider is §4.4.4: send one Hazel message outbound.
func (w *Worker) SyncHazelMessageToProvider(ctx context.Context, in OutboundCreateInput) (Result, error) {
	dedupeKey := in.dedupeKey()

	claimed, err := w.receipts.Claim(ctx, in.SyncConnectionID, SourceHazel, dedupeKey, nil)
	if err != nil {
		return Result{}, err
	}
	if !claimed {
		return Result{Outcome: OutcomeDeduped}, nil
	}

	conn, active, err := w.loadActiveConnection(ctx, in.SyncConnectionID, "")
	if err != nil {
		return w.failChannelLookup(ctx, in.SyncConnectionID, SourceHazel, dedupeKey, err)
	}
	if !active {
		if err := w.receipts.Commit(ctx, in.SyncConnectionID, SourceHazel, dedupeKey, ReceiptIgnored, in, "", nil); err != nil {
			w.logger.Warn("commit ignored receipt failed", slog.Any("error", err))
		}
		return Result{Outcome: OutcomeIgnoredConnectionInactive}, nil
	}

	adapter, err := w.registry.Get(conn.Provider)
	if err != nil {
		return Result{}, err
	}

	msg, err := w.messages.FindByID(ctx, in.HazelMessageID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return w.failChannelLookup(ctx, in.SyncConnectionID, SourceHazel, dedupeKey, &MessageNotFoundError{HazelMessageID: in.HazelMessageID})
		}
		return Result{}, err
	}

	link, err := w.channelLinks.FindByHazelChannel(ctx, conn.ID, msg.ChannelID)
	if err != nil {
		return w.failChannelLookup(ctx, in.SyncConnectionID, SourceHazel, dedupeKey, &ChannelLinkNotFoundError{SyncConnectionID: conn.ID, HazelChannelID: msg.ChannelID})
	}

	if existing, err := w.messageLinks.FindByHazelMessage(ctx, link.ID, in.HazelMessageID); err == nil {
		if existing.Live() {
			if err := w.receipts.Commit(ctx, in.SyncConnectionID, SourceHazel, dedupeKey, ReceiptIgnored, in, "", &link.ID); err != nil {
				w.logger.Warn("commit ignored receipt failed", slog.Any("error", err))
			}
			return Result{Outcome: OutcomeAlreadyLinked, ExternalMessageID: existing.ExternalMessageID}, nil
		}
	} else if !errors.Is(err, ErrNotFound) {
		return Result{}, err
	}

	externalMessageID, err := adapter.CreateMessage(ctx, CreateMessageInput{
		ExternalChannelID: link.ExternalChannelID,
		Content:           msg.Content,
	})
	if err != nil {
		return Result{}, err
	}

	if _, err := w.messageLinks.Insert(ctx, MessageLink{
		ChannelLinkID:     link.ID,
		HazelMessageID:    in.HazelMessageID,
		ExternalMessageID: externalMessageID,
		Source:            SourceHazel,
	}); err != nil {
		return Result{}, err
	}

	payload := map[string]string{"hazelMessageId": in.HazelMessageID, "externalMessageId": externalMessageID}
	if err := w.heartbeatAndCommitProcessed(ctx, conn.ID, link.ID, SourceHazel, dedupeKey, payload); err != nil {
		return Result{}, err
	}

	return Result{Outcome: OutcomeSynced, HazelMessageID: in.HazelMessageID, ExternalMessageID: externalMessageID}, nil
}

// ---- 4.4.5 Outbound update, delete ----

// OutboundUpdateInput is the input to SyncHazelMessageUpdateToProvider.
type OutboundUpdateInput struct {
	SyncConnectionID string
	HazelMessageID   string
	DedupeKey        string
}

func (in OutboundUpdateInput) dedupeKey() string {
	if in.DedupeKey != "" {
		return in.DedupeKey
	}
	return fmt.Sprintf("hazel:message:update:%s", in.HazelMessageID)
}

// SyncHazelMessageUpdateToProvider is §4.4.5's update half.
func (w *Worker) SyncHazelMessageUpdateToProvider(ctx context.Context, in OutboundUpdateInput) (Result, error) {
	dedupeKey := in.dedupeKey()

	claimed, err := w.receipts.Claim(ctx, in.SyncConnectionID, SourceHazel, dedupeKey, nil)
	if err != nil {
		return Result{}, err
	}
	if !claimed {
		return Result{Outcome: OutcomeDeduped}, nil
	}

	conn, active, err := w.loadActiveConnection(ctx, in.SyncConnectionID, "")
	if err != nil {
		return w.failChannelLookup(ctx, in.SyncConnectionID, SourceHazel, dedupeKey, err)
	}
	if !active {
		if err := w.receipts.Commit(ctx, in.SyncConnectionID, SourceHazel, dedupeKey, ReceiptIgnored, in, "", nil); err != nil {
			w.logger.Warn("commit ignored receipt failed", slog.Any("error", err))
		}
		return Result{Outcome: OutcomeIgnoredConnectionInactive}, nil
	}

	adapter, err := w.registry.Get(conn.Provider)
	if err != nil {
		return Result{}, err
	}

	msg, err := w.messages.FindByID(ctx, in.HazelMessageID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return w.failChannelLookup(ctx, in.SyncConnectionID, SourceHazel, dedupeKey, &MessageNotFoundError{HazelMessageID: in.HazelMessageID})
		}
		return Result{}, err
	}

	link, err := w.channelLinks.FindByHazelChannel(ctx, conn.ID, msg.ChannelID)
	if err != nil {
		return w.failChannelLookup(ctx, in.SyncConnectionID, SourceHazel, dedupeKey, &ChannelLinkNotFoundError{SyncConnectionID: conn.ID, HazelChannelID: msg.ChannelID})
	}

	msgLink, err := w.messageLinks.FindByHazelMessage(ctx, link.ID, in.HazelMessageID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Result{}, err
	}
	if err != nil || !msgLink.Live() {
		if cerr := w.receipts.Commit(ctx, in.SyncConnectionID, SourceHazel, dedupeKey, ReceiptIgnored, in, "", &link.ID); cerr != nil {
			w.logger.Warn("commit ignored receipt failed", slog.Any("error", cerr))
		}
		return Result{Outcome: OutcomeIgnoredMissingLink}, nil
	}

	if err := adapter.UpdateMessage(ctx, link.ExternalChannelID, msgLink.ExternalMessageID, msg.Content); err != nil {
		return Result{}, err
	}

	payload := map[string]string{"hazelMessageId": in.HazelMessageID, "externalMessageId": msgLink.ExternalMessageID}
	if err := w.heartbeatAndCommitProcessed(ctx, conn.ID, link.ID, SourceHazel, dedupeKey, payload); err != nil {
		return Result{}, err
	}

	return Result{Outcome: OutcomeUpdated, HazelMessageID: in.HazelMessageID, ExternalMessageID: msgLink.ExternalMessageID}, nil
}

// OutboundDeleteInput is the input to SyncHazelMessageDeleteToProvider.
type OutboundDeleteInput struct {
	SyncConnectionID string
	HazelMessageID   string
	DedupeKey        string
}

func (in OutboundDeleteInput) dedupeKey() string {
	if in.DedupeKey != "" {
		return in.DedupeKey
	}
	return fmt.Sprintf("hazel:message:delete:%s", in.HazelMessageID)
}

// SyncHazelMessageDeleteToProvider is §4.4.5's delete half. The policy
// chosen for Open Question 2 (§9): a provider's "message already gone"
// response is treated by the adapter itself as success, so a delete
// replayed against an already-removed external message still soft-deletes
// the link and commits processed rather than reporting failed.
func (w *Worker) SyncHazelMessageDeleteToProvider(ctx context.Context, in OutboundDeleteInput) (Result, error) {
	dedupeKey := in.dedupeKey()

	claimed, err := w.receipts.Claim(ctx, in.SyncConnectionID, SourceHazel, dedupeKey, nil)
	if err != nil {
		return Result{}, err
	}
	if !claimed {
		return Result{Outcome: OutcomeDeduped}, nil
	}

	conn, active, err := w.loadActiveConnection(ctx, in.SyncConnectionID, "")
	if err != nil {
		return w.failChannelLookup(ctx, in.SyncConnectionID, SourceHazel, dedupeKey, err)
	}
	if !active {
		if err := w.receipts.Commit(ctx, in.SyncConnectionID, SourceHazel, dedupeKey, ReceiptIgnored, in, "", nil); err != nil {
			w.logger.Warn("commit ignored receipt failed", slog.Any("error", err))
		}
		return Result{Outcome: OutcomeIgnoredConnectionInactive}, nil
	}

	adapter, err := w.registry.Get(conn.Provider)
	if err != nil {
		return Result{}, err
	}

	msg, err := w.messages.FindByID(ctx, in.HazelMessageID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return w.failChannelLookup(ctx, in.SyncConnectionID, SourceHazel, dedupeKey, &MessageNotFoundError{HazelMessageID: in.HazelMessageID})
		}
		return Result{}, err
	}

	link, err := w.channelLinks.FindByHazelChannel(ctx, conn.ID, msg.ChannelID)
	if err != nil {
		return w.failChannelLookup(ctx, in.SyncConnectionID, SourceHazel, dedupeKey, &ChannelLinkNotFoundError{SyncConnectionID: conn.ID, HazelChannelID: msg.ChannelID})
	}

	msgLink, err := w.messageLinks.FindByHazelMessage(ctx, link.ID, in.HazelMessageID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Result{}, err
	}
	if err != nil || !msgLink.Live() {
		if cerr := w.receipts.Commit(ctx, in.SyncConnectionID, SourceHazel, dedupeKey, ReceiptIgnored, in, "", &link.ID); cerr != nil {
			w.logger.Warn("commit ignored receipt failed", slog.Any("error", cerr))
		}
		return Result{Outcome: OutcomeIgnoredMissingLink}, nil
	}

	if err := adapter.DeleteMessage(ctx, link.ExternalChannelID, msgLink.ExternalMessageID); err != nil {
		return Result{}, err
	}

	if err := w.messageLinks.SoftDelete(ctx, msgLink.ID); err != nil {
		return Result{}, err
	}

	payload := map[string]string{"hazelMessageId": in.HazelMessageID, "externalMessageId": msgLink.ExternalMessageID}
	if err := w.heartbeatAndCommitProcessed(ctx, conn.ID, link.ID, SourceHazel, dedupeKey, payload); err != nil {
		return Result{}, err
	}

	return Result{Outcome: OutcomeDeleted, HazelMessageID: in.HazelMessageID, ExternalMessageID: msgLink.ExternalMessageID}, nil
}

// ---- 4.4.6 Connection-scoped backfill ----

// BackfillSummary aggregates a backfill pass over one connection.
type BackfillSummary struct {
	SyncConnectionID string
	Sent             int
	Skipped          int
	Failed           int
}

const defaultMaxMessagesPerChannel = 50

// SyncConnection is §4.4.6: catch up every never-mirrored message on every
// active, outbound-eligible channel link of one connection.
func (w *Worker) SyncConnection(ctx context.Context, syncConnectionID string, maxMessagesPerChannel int) (BackfillSummary, error) {
	if maxMessagesPerChannel <= 0 {
		maxMessagesPerChannel = defaultMaxMessagesPerChannel
	}
	summary := BackfillSummary{SyncConnectionID: syncConnectionID}

	conn, err := w.connections.FindByID(ctx, syncConnectionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return summary, nil
		}
		return summary, err
	}
	if conn.Status != ConnectionActive {
		return summary, nil
	}

	links, err := w.channelLinks.FindActiveBySyncConnection(ctx, conn.ID)
	if err != nil {
		return summary, err
	}

	for _, link := range links {
		if !link.EligibleOutbound() {
			continue
		}
		candidates, err := w.messages.FindUnlinked(ctx, link.HazelChannelID, link.ID, maxMessagesPerChannel)
		if err != nil {
			w.logger.Error("backfill scan failed", slog.String("connection", conn.ID), slog.String("channel_link", link.ID), slog.Any("error", err))
			continue
		}
		for _, msg := range candidates {
			result, err := w.SyncHazelMessageToProvider(ctx, OutboundCreateInput{SyncConnectionID: conn.ID, HazelMessageID: msg.ID})
			if err != nil {
				summary.Failed++
				w.logger.Error("backfill message failed", slog.String("connection", conn.ID), slog.String("message", msg.ID), slog.Any("error", err))
				continue
			}
			if result.Outcome == OutcomeSynced {
				summary.Sent++
			} else {
				summary.Skipped++
			}
		}
	}

	return summary, nil
}

// ---- 4.4.7 Reaction passthrough (ingress) and thread-create (outbound) ----

// ReactionInput is the input to IngestReactionAdd and IngestReactionRemove.
// Reactions carry no Hazel-side model (spec's content-translation non-goal)
// so these verbs only exercise the dedupe ledger and identity resolver —
// there is no message write.
type ReactionInput struct {
	SyncConnectionID  string
	ExpectedProvider  Provider
	ExternalChannelID string
	ExternalMessageID string
	Emoji             string
	ExternalUserID    string
	DisplayName       string
	AvatarURL         string
	DedupeKey         string
}

func (in ReactionInput) dedupeKey(verb string) string {
	if in.DedupeKey != "" {
		return in.DedupeKey
	}
	return fmt.Sprintf("external:reaction:%s:%s:%s:%s", verb, in.ExternalMessageID, in.Emoji, in.ExternalUserID)
}

// IngestReactionAdd records that an external reaction occurred, resolving
// its author through the same identity rules as a message, but writes
// nothing beyond the receipt.
func (w *Worker) IngestReactionAdd(ctx context.Context, in ReactionInput) (Result, error) {
	return w.ingestReaction(ctx, "add", in)
}

// IngestReactionRemove is IngestReactionAdd's removal counterpart.
func (w *Worker) IngestReactionRemove(ctx context.Context, in ReactionInput) (Result, error) {
	return w.ingestReaction(ctx, "remove", in)
}

func (w *Worker) ingestReaction(ctx context.Context, verb string, in ReactionInput) (Result, error) {
	dedupeKey := in.dedupeKey(verb)

	claimed, err := w.receipts.Claim(ctx, in.SyncConnectionID, SourceExternal, dedupeKey, nil)
	if err != nil {
		return Result{}, err
	}
	if !claimed {
		return Result{Outcome: OutcomeDeduped}, nil
	}

	conn, active, err := w.loadActiveConnection(ctx, in.SyncConnectionID, in.ExpectedProvider)
	if err != nil {
		return w.failChannelLookup(ctx, in.SyncConnectionID, SourceExternal, dedupeKey, err)
	}
	if !active {
		if err := w.receipts.Commit(ctx, in.SyncConnectionID, SourceExternal, dedupeKey, ReceiptIgnored, in, "", nil); err != nil {
			w.logger.Warn("commit ignored receipt failed", slog.Any("error", err))
		}
		return Result{Outcome: OutcomeIgnoredConnectionInactive}, nil
	}

	link, err := w.channelLinks.FindByExternalChannel(ctx, conn.ID, in.ExternalChannelID)
	if err != nil {
		return w.failChannelLookup(ctx, in.SyncConnectionID, SourceExternal, dedupeKey, newChannelLinkNotFound(conn.ID, in.ExternalChannelID, err))
	}

	if _, err := w.resolveIngressAuthor(ctx, conn.Provider, conn.OrganizationID, in.ExternalUserID, in.DisplayName, in.AvatarURL); err != nil {
		return Result{}, err
	}

	payload := map[string]string{"externalMessageId": in.ExternalMessageID, "emoji": in.Emoji, "externalUserId": in.ExternalUserID}
	if err := w.receipts.Commit(ctx, in.SyncConnectionID, SourceExternal, dedupeKey, ReceiptProcessed, payload, "", &link.ID); err != nil {
		return Result{}, err
	}

	return Result{Outcome: OutcomeRecorded}, nil
}

// ThreadCreateInput is the input to CreateHazelMessageThread.
type ThreadCreateInput struct {
	SyncConnectionID string
	HazelMessageID   string
	Name             string
	DedupeKey        string
}

func (in ThreadCreateInput) dedupeKey() string {
	if in.DedupeKey != "" {
		return in.DedupeKey
	}
	return fmt.Sprintf("hazel:thread:create:%s", in.HazelMessageID)
}

// CreateHazelMessageThread opens an external thread on a message already
// mirrored outbound through a SyncMessageLink.
func (w *Worker) CreateHazelMessageThread(ctx context.Context, in ThreadCreateInput) (Result, error) {
	dedupeKey := in.dedupeKey()

	claimed, err := w.receipts.Claim(ctx, in.SyncConnectionID, SourceHazel, dedupeKey, nil)
	if err != nil {
		return Result{}, err
	}
	if !claimed {
		return Result{Outcome: OutcomeDeduped}, nil
	}

	conn, active, err := w.loadActiveConnection(ctx, in.SyncConnectionID, "")
	if err != nil {
		return w.failChannelLookup(ctx, in.SyncConnectionID, SourceHazel, dedupeKey, err)
	}
	if !active {
		if err := w.receipts.Commit(ctx, in.SyncConnectionID, SourceHazel, dedupeKey, ReceiptIgnored, in, "", nil); err != nil {
			w.logger.Warn("commit ignored receipt failed", slog.Any("error", err))
		}
		return Result{Outcome: OutcomeIgnoredConnectionInactive}, nil
	}

	adapter, err := w.registry.Get(conn.Provider)
	if err != nil {
		return Result{}, err
	}

	msg, err := w.messages.FindByID(ctx, in.HazelMessageID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return w.failChannelLookup(ctx, in.SyncConnectionID, SourceHazel, dedupeKey, &MessageNotFoundError{HazelMessageID: in.HazelMessageID})
		}
		return Result{}, err
	}

	link, err := w.channelLinks.FindByHazelChannel(ctx, conn.ID, msg.ChannelID)
	if err != nil {
		return w.failChannelLookup(ctx, in.SyncConnectionID, SourceHazel, dedupeKey, &ChannelLinkNotFoundError{SyncConnectionID: conn.ID, HazelChannelID: msg.ChannelID})
	}

	msgLink, err := w.messageLinks.FindByHazelMessage(ctx, link.ID, in.HazelMessageID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Result{}, err
	}
	if err != nil || !msgLink.Live() {
		if cerr := w.receipts.Commit(ctx, in.SyncConnectionID, SourceHazel, dedupeKey, ReceiptIgnored, in, "", &link.ID); cerr != nil {
			w.logger.Warn("commit ignored receipt failed", slog.Any("error", cerr))
		}
		return Result{Outcome: OutcomeIgnoredMissingLink}, nil
	}

	externalThreadID, err := adapter.CreateThread(ctx, link.ExternalChannelID, msgLink.ExternalMessageID, in.Name)
	if err != nil {
		return Result{}, err
	}

	payload := map[string]string{"hazelMessageId": in.HazelMessageID, "externalThreadId": externalThreadID}
	if err := w.heartbeatAndCommitProcessed(ctx, conn.ID, link.ID, SourceHazel, dedupeKey, payload); err != nil {
		return Result{}, err
	}

	return Result{Outcome: OutcomeCreated, HazelMessageID: in.HazelMessageID, ExternalMessageID: msgLink.ExternalMessageID, ExternalThreadID: externalThreadID}, nil
}
