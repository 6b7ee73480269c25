package chatsync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const identityCacheSize = 4096

// IdentityResolver maps an external author to an internal Hazel user,
// preferring a bound integration connection and falling back to a
// synthetic shadow user.
type IdentityResolver struct {
	integrations IntegrationConnectionRepo
	users        UserRepo
	members      OrganizationMemberRepo
	bots         IntegrationBotService
	cache        *lru.Cache[string, string]
	logger       *slog.Logger
}

// NewIdentityResolver creates an IdentityResolver. The external-id to
// internal-id cache avoids a repository round trip for every gateway
// event from a previously resolved author.
func NewIdentityResolver(log *slog.Logger, integrations IntegrationConnectionRepo, users UserRepo, members OrganizationMemberRepo, bots IntegrationBotService) *IdentityResolver {
	if log == nil {
		log = slog.Default()
	}
	cache, err := lru.New[string, string](identityCacheSize)
	if err != nil {
		panic(fmt.Sprintf("chatsync: identity cache init: %v", err))
	}
	return &IdentityResolver{
		integrations: integrations,
		users:        users,
		members:      members,
		bots:         bots,
		cache:        cache,
		logger:       log.With(slog.String("component", "identity_resolver")),
	}
}

func cacheKey(provider Provider, organizationID, externalUserID string) string {
	return string(provider) + "|" + organizationID + "|" + externalUserID
}

// ResolveAuthor implements §4.3's algorithm: prefer a bound integration
// connection, otherwise upsert a shadow user and an organization
// membership, and return the internal user id either way.
func (r *IdentityResolver) ResolveAuthor(ctx context.Context, provider Provider, organizationID, externalUserID, displayName, avatarURL string) (string, error) {
	key := cacheKey(provider, organizationID, externalUserID)
	if cached, ok := r.cache.Get(key); ok {
		return cached, nil
	}

	if userID, found, err := r.integrations.FindActiveUserByExternalAccountID(ctx, organizationID, provider, externalUserID); err != nil {
		return "", fmt.Errorf("find active integration user: %w", err)
	} else if found {
		r.cache.Add(key, userID)
		return userID, nil
	}

	userID, err := r.upsertShadowUser(ctx, provider, organizationID, externalUserID, displayName, avatarURL)
	if err != nil {
		return "", err
	}
	r.cache.Add(key, userID)
	return userID, nil
}

func (r *IdentityResolver) upsertShadowUser(ctx context.Context, provider Provider, organizationID, externalUserID, displayName, avatarURL string) (string, error) {
	syntheticExternalID := fmt.Sprintf("%s-user-%s", provider, externalUserID)
	firstName := strings.TrimSpace(displayName)
	if firstName == "" {
		firstName = "External User"
	}
	row := UpsertUserRow{
		OrganizationID: organizationID,
		ExternalID:     syntheticExternalID,
		Email:          fmt.Sprintf("%s@%s.internal", syntheticExternalID, provider),
		FirstName:      firstName,
		AvatarURL:      avatarURL,
	}
	// Only overwrite a previously stored avatar when one accompanies this event.
	opts := UpsertUserOptions{SyncAvatarURL: avatarURL != ""}

	userID, err := r.users.UpsertByExternalID(ctx, row, opts)
	if err != nil {
		return "", fmt.Errorf("upsert shadow user: %w", err)
	}
	if err := r.members.UpsertByOrgAndUser(ctx, organizationID, userID); err != nil {
		return "", fmt.Errorf("upsert organization membership: %w", err)
	}
	return userID, nil
}

// ResolveBotAuthor resolves the per-provider bot user, used when an
// ingress event carries no external author metadata.
func (r *IdentityResolver) ResolveBotAuthor(ctx context.Context, provider Provider, organizationID string) (string, error) {
	userID, err := r.bots.GetOrCreateBotUser(ctx, provider, organizationID)
	if err != nil {
		return "", fmt.Errorf("resolve bot author: %w", err)
	}
	return userID, nil
}
