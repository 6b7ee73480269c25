package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memohai/chatsync/internal/chatsync"
)

type userRepo struct {
	pool *pgxpool.Pool
}

// UpsertByExternalID upserts a shadow user keyed on (organization_id,
// external_id). The avatar column is only overwritten when opts.SyncAvatarURL
// is set, matching the Identity Resolver's avatar-overwrite rule (§4.3).
func (r userRepo) UpsertByExternalID(ctx context.Context, row chatsync.UpsertUserRow, opts chatsync.UpsertUserOptions) (string, error) {
	const q = `
		INSERT INTO users (id, organization_id, external_id, email, first_name, avatar_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (organization_id, external_id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			avatar_url = CASE WHEN $7 THEN EXCLUDED.avatar_url ELSE users.avatar_url END
		RETURNING id`
	var id string
	err := r.pool.QueryRow(ctx, q,
		newID(), row.OrganizationID, row.ExternalID, row.Email, row.FirstName, row.AvatarURL, opts.SyncAvatarURL,
	).Scan(&id)
	return id, wrap("upsert shadow user", err)
}

type orgMemberRepo struct {
	pool *pgxpool.Pool
}

func (r orgMemberRepo) UpsertByOrgAndUser(ctx context.Context, organizationID, userID string) error {
	const q = `
		INSERT INTO organization_members (organization_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (organization_id, user_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, q, organizationID, userID)
	return wrap("upsert organization member", err)
}

type integrationConnectionRepo struct {
	pool *pgxpool.Pool
}

func (r integrationConnectionRepo) FindActiveUserByExternalAccountID(ctx context.Context, organizationID string, provider chatsync.Provider, externalUserID string) (string, bool, error) {
	const q = `
		SELECT user_id FROM integration_connections
		WHERE organization_id = $1 AND provider = $2 AND external_account_id = $3 AND status = 'active'`
	var userID string
	err := r.pool.QueryRow(ctx, q, organizationID, string(provider), externalUserID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, wrap("find active integration connection", err)
	}
	return userID, true, nil
}
