package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memohai/chatsync/internal/chatsync"
)

type channelLinkRepo struct {
	pool *pgxpool.Pool
}

const channelLinkColumns = `id, sync_connection_id, hazel_channel_id, external_channel_id, direction, is_active, last_synced_at`

func scanChannelLink(row interface{ Scan(...any) error }) (chatsync.ChannelLink, error) {
	var l chatsync.ChannelLink
	var direction string
	if err := row.Scan(&l.ID, &l.SyncConnectionID, &l.HazelChannelID, &l.ExternalChannelID, &direction, &l.IsActive, &l.LastSyncedAt); err != nil {
		return chatsync.ChannelLink{}, translate(err)
	}
	l.Direction = chatsync.Direction(direction)
	return l, nil
}

func (r channelLinkRepo) FindByHazelChannel(ctx context.Context, syncConnectionID, hazelChannelID string) (chatsync.ChannelLink, error) {
	q := `SELECT ` + channelLinkColumns + ` FROM chat_sync_channel_links WHERE sync_connection_id = $1 AND hazel_channel_id = $2`
	link, err := scanChannelLink(r.pool.QueryRow(ctx, q, syncConnectionID, hazelChannelID))
	return link, wrap("find channel link by hazel channel", err)
}

func (r channelLinkRepo) FindByExternalChannel(ctx context.Context, syncConnectionID, externalChannelID string) (chatsync.ChannelLink, error) {
	q := `SELECT ` + channelLinkColumns + ` FROM chat_sync_channel_links WHERE sync_connection_id = $1 AND external_channel_id = $2`
	link, err := scanChannelLink(r.pool.QueryRow(ctx, q, syncConnectionID, externalChannelID))
	return link, wrap("find channel link by external channel", err)
}

func (r channelLinkRepo) FindActiveBySyncConnection(ctx context.Context, syncConnectionID string) ([]chatsync.ChannelLink, error) {
	q := `SELECT ` + channelLinkColumns + ` FROM chat_sync_channel_links WHERE sync_connection_id = $1 AND is_active = true`
	rows, err := r.pool.Query(ctx, q, syncConnectionID)
	if err != nil {
		return nil, wrap("find active channel links", err)
	}
	defer rows.Close()

	var out []chatsync.ChannelLink
	for rows.Next() {
		link, err := scanChannelLink(rows)
		if err != nil {
			return nil, wrap("scan channel link", err)
		}
		out = append(out, link)
	}
	return out, wrap("iterate channel links", rows.Err())
}

func (r channelLinkRepo) FindActiveByExternalChannel(ctx context.Context, provider chatsync.Provider, externalChannelID string) ([]chatsync.ChannelLinkWithConnection, error) {
	q := `
		SELECT l.id, l.sync_connection_id, l.hazel_channel_id, l.external_channel_id, l.direction, l.is_active, l.last_synced_at
		FROM chat_sync_channel_links l
		JOIN chat_sync_connections c ON c.id = l.sync_connection_id
		WHERE l.is_active = true AND l.external_channel_id = $1
		  AND c.provider = $2 AND c.status = 'active'`
	rows, err := r.pool.Query(ctx, q, externalChannelID, string(provider))
	if err != nil {
		return nil, wrap("find active links by external channel", err)
	}
	defer rows.Close()
	return scanLinksWithConnection(rows)
}

func (r channelLinkRepo) FindActiveOutboundTargets(ctx context.Context, hazelChannelID string, provider chatsync.Provider) ([]chatsync.ChannelLinkWithConnection, error) {
	q := `
		SELECT l.id, l.sync_connection_id, l.hazel_channel_id, l.external_channel_id, l.direction, l.is_active, l.last_synced_at
		FROM chat_sync_channel_links l
		JOIN chat_sync_connections c ON c.id = l.sync_connection_id
		WHERE l.is_active = true AND l.hazel_channel_id = $1
		  AND c.provider = $2 AND c.status = 'active'
		  AND l.direction != 'external_to_hazel'`
	rows, err := r.pool.Query(ctx, q, hazelChannelID, string(provider))
	if err != nil {
		return nil, wrap("find active outbound targets", err)
	}
	defer rows.Close()
	return scanLinksWithConnection(rows)
}

func scanLinksWithConnection(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]chatsync.ChannelLinkWithConnection, error) {
	var out []chatsync.ChannelLinkWithConnection
	for rows.Next() {
		var l chatsync.ChannelLink
		var direction string
		if err := rows.Scan(&l.ID, &l.SyncConnectionID, &l.HazelChannelID, &l.ExternalChannelID, &direction, &l.IsActive, &l.LastSyncedAt); err != nil {
			return nil, wrap("scan channel link with connection", err)
		}
		l.Direction = chatsync.Direction(direction)
		out = append(out, chatsync.ChannelLinkWithConnection{Link: l, SyncConnectionID: l.SyncConnectionID})
	}
	return out, wrap("iterate channel links with connection", rows.Err())
}

func (r channelLinkRepo) UpdateLastSyncedAt(ctx context.Context, id string) error {
	const q = `UPDATE chat_sync_channel_links SET last_synced_at = now() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	return wrap("heartbeat channel link", err)
}
