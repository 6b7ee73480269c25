package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memohai/chatsync/internal/chatsync"
)

type integrationBotRepo struct {
	pool *pgxpool.Pool
}

// GetOrCreateBotUser finds or creates the single Hazel user that stands in
// for a provider's own integration identity within an organization (the
// author attributed to events the Identity Resolver cannot tie to a real
// external user, per §4.3). One such user exists per (organization,
// provider), keyed the same way upsertShadowUser keys human shadow users,
// but under a synthetic external id that no real external user id can
// collide with.
func (r integrationBotRepo) GetOrCreateBotUser(ctx context.Context, provider chatsync.Provider, organizationID string) (string, error) {
	const q = `
		INSERT INTO users (id, organization_id, external_id, first_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (organization_id, external_id) DO UPDATE SET external_id = EXCLUDED.external_id
		RETURNING id`
	externalID := fmt.Sprintf("%s-integration-bot", provider)
	displayName := fmt.Sprintf("%s Bot", provider)
	var id string
	err := r.pool.QueryRow(ctx, q, newID(), organizationID, externalID, displayName).Scan(&id)
	return id, wrap("get or create integration bot user", err)
}
