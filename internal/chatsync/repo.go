package chatsync

import "context"

// ConnectionRepo is the repository contract for SyncConnection rows.
type ConnectionRepo interface {
	FindByID(ctx context.Context, id string) (Connection, error)
	FindActiveByProvider(ctx context.Context, provider Provider) ([]Connection, error)
	UpdateLastSyncedAt(ctx context.Context, id string) error
}

// ChannelLinkRepo is the repository contract for SyncChannelLink rows.
type ChannelLinkRepo interface {
	FindByHazelChannel(ctx context.Context, syncConnectionID, hazelChannelID string) (ChannelLink, error)
	FindByExternalChannel(ctx context.Context, syncConnectionID, externalChannelID string) (ChannelLink, error)
	FindActiveBySyncConnection(ctx context.Context, syncConnectionID string) ([]ChannelLink, error)
	// FindActiveByExternalChannel is the cross-tenant lookup used by the
	// gateway consumer: all active links, across every connection and
	// organization, whose external channel matches and whose connection
	// is on the given provider.
	FindActiveByExternalChannel(ctx context.Context, provider Provider, externalChannelID string) ([]ChannelLinkWithConnection, error)
	// FindActiveOutboundTargets is the fan-out dispatcher's lookup: all
	// active, outbound-eligible links for a hazel channel on a given
	// provider, joined to an active connection.
	FindActiveOutboundTargets(ctx context.Context, hazelChannelID string, provider Provider) ([]ChannelLinkWithConnection, error)
	UpdateLastSyncedAt(ctx context.Context, id string) error
}

// ChannelLinkWithConnection pairs a channel link with the id of its
// parent connection, for lookups that join across the two tables.
type ChannelLinkWithConnection struct {
	Link             ChannelLink
	SyncConnectionID string
}

// ErrNotFound is returned by repository Find methods when no row matches.
// Equivalent to pgx.ErrNoRows at the chatsync boundary so fakes used in
// tests don't need to depend on pgx.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "chatsync: not found" }

// MessageLinkRepo is the repository contract for SyncMessageLink rows.
type MessageLinkRepo interface {
	FindByHazelMessage(ctx context.Context, channelLinkID, hazelMessageID string) (MessageLink, error)
	FindByExternalMessage(ctx context.Context, channelLinkID, externalMessageID string) (MessageLink, error)
	Insert(ctx context.Context, row MessageLink) (MessageLink, error)
	UpdateLastSyncedAt(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string) error
}

// EventReceiptRepo is the repository contract for the dedupe ledger.
// ClaimByDedupeKey translates a unique-violation on
// (syncConnectionId, source, dedupeKey) into a (false, nil) return — only
// other database errors are propagated as errors.
type EventReceiptRepo interface {
	ClaimByDedupeKey(ctx context.Context, syncConnectionID string, source Source, dedupeKey string, channelLinkID *string) (bool, error)
	UpdateByDedupeKey(ctx context.Context, params CommitParams) error
}

// CommitParams is the input to EventReceiptRepo.UpdateByDedupeKey.
type CommitParams struct {
	SyncConnectionID string
	Source           Source
	DedupeKey        string
	Status           ReceiptStatus
	PayloadHash      *string
	ErrorMessage     *string
	ChannelLinkID    *string
}

// MessageRepo is the repository contract for internal Hazel messages.
type MessageRepo interface {
	FindByID(ctx context.Context, id string) (HazelMessage, error)
	Insert(ctx context.Context, row HazelMessage) (HazelMessage, error)
	Update(ctx context.Context, id string, content string) (HazelMessage, error)
	SoftDelete(ctx context.Context, id string) (HazelMessage, error)
	// FindUnlinked returns live messages in channelID that have no live
	// message link under channelLinkID, ordered (createdAt ASC, id ASC),
	// limited to limit rows.
	FindUnlinked(ctx context.Context, channelID, channelLinkID string, limit int) ([]HazelMessage, error)
}

// UpsertUserOptions controls the shadow-user avatar-overwrite flag (§4.3).
type UpsertUserOptions struct {
	SyncAvatarURL bool
}

// UpsertUserRow is the shadow-user row the Identity Resolver upserts.
type UpsertUserRow struct {
	OrganizationID   string
	ExternalID       string
	Email            string
	FirstName        string
	AvatarURL        string
}

// UserRepo is the repository contract for internal users, used here only
// for shadow-user upserts.
type UserRepo interface {
	UpsertByExternalID(ctx context.Context, row UpsertUserRow, opts UpsertUserOptions) (userID string, err error)
}

// OrganizationMemberRepo is the repository contract for org membership rows.
type OrganizationMemberRepo interface {
	UpsertByOrgAndUser(ctx context.Context, organizationID, userID string) error
}

// IntegrationConnectionRepo looks up an existing, bound integration
// connection for an external account before falling back to a shadow user.
type IntegrationConnectionRepo interface {
	FindActiveUserByExternalAccountID(ctx context.Context, organizationID string, provider Provider, externalUserID string) (userID string, found bool, err error)
}

// IntegrationBotService resolves the per-provider bot user used for
// anonymous ingress (no external author metadata on the event).
type IntegrationBotService interface {
	GetOrCreateBotUser(ctx context.Context, provider Provider, organizationID string) (userID string, err error)
}
