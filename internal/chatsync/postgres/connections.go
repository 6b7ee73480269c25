package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memohai/chatsync/internal/chatsync"
)

type connectionRepo struct {
	pool *pgxpool.Pool
}

func (r connectionRepo) FindByID(ctx context.Context, id string) (chatsync.Connection, error) {
	const q = `
		SELECT id, organization_id, provider, external_workspace_id, status, last_synced_at, created_by
		FROM chat_sync_connections WHERE id = $1`
	row := r.pool.QueryRow(ctx, q, id)
	var c chatsync.Connection
	var provider, status string
	if err := row.Scan(&c.ID, &c.OrganizationID, &provider, &c.ExternalWorkspaceID, &status, &c.LastSyncedAt, &c.CreatedBy); err != nil {
		return chatsync.Connection{}, wrap("find connection", translate(err))
	}
	c.Provider = chatsync.Provider(provider)
	c.Status = chatsync.ConnectionStatus(status)
	return c, nil
}

func (r connectionRepo) FindActiveByProvider(ctx context.Context, provider chatsync.Provider) ([]chatsync.Connection, error) {
	const q = `
		SELECT id, organization_id, provider, external_workspace_id, status, last_synced_at, created_by
		FROM chat_sync_connections WHERE provider = $1 AND status = 'active'`
	rows, err := r.pool.Query(ctx, q, string(provider))
	if err != nil {
		return nil, wrap("find active connections", err)
	}
	defer rows.Close()

	var out []chatsync.Connection
	for rows.Next() {
		var c chatsync.Connection
		var prov, status string
		if err := rows.Scan(&c.ID, &c.OrganizationID, &prov, &c.ExternalWorkspaceID, &status, &c.LastSyncedAt, &c.CreatedBy); err != nil {
			return nil, wrap("scan connection", err)
		}
		c.Provider = chatsync.Provider(prov)
		c.Status = chatsync.ConnectionStatus(status)
		out = append(out, c)
	}
	return out, wrap("iterate connections", rows.Err())
}

func (r connectionRepo) UpdateLastSyncedAt(ctx context.Context, id string) error {
	const q = `UPDATE chat_sync_connections SET last_synced_at = now() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	return wrap("heartbeat connection", err)
}
