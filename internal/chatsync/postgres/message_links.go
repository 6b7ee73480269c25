package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memohai/chatsync/internal/chatsync"
)

type messageLinkRepo struct {
	pool *pgxpool.Pool
}

const messageLinkColumns = `id, channel_link_id, hazel_message_id, external_message_id, source, external_thread_id, external_root_message_id, last_synced_at, created_at, deleted_at`

func scanMessageLink(row interface{ Scan(...any) error }) (chatsync.MessageLink, error) {
	var m chatsync.MessageLink
	var source string
	var createdAt time.Time
	if err := row.Scan(&m.ID, &m.ChannelLinkID, &m.HazelMessageID, &m.ExternalMessageID, &source, &m.ExternalThreadID, &m.ExternalRootMessageID, &m.LastSyncedAt, &createdAt, &m.DeletedAt); err != nil {
		return chatsync.MessageLink{}, translate(err)
	}
	m.Source = chatsync.Source(source)
	return m, nil
}

// FindByHazelMessage returns the live row for (channelLinkID, hazelMessageID)
// when one exists; the index backing this lookup is scoped WHERE deleted_at
// IS NULL, so a soft-deleted row can coexist with a later live row sharing
// the same key. Ordering live-first, most-recent-first and taking one row
// means a dead row never shadows a live one.
func (r messageLinkRepo) FindByHazelMessage(ctx context.Context, channelLinkID, hazelMessageID string) (chatsync.MessageLink, error) {
	q := `SELECT ` + messageLinkColumns + ` FROM chat_sync_message_links
		WHERE channel_link_id = $1 AND hazel_message_id = $2
		ORDER BY (deleted_at IS NULL) DESC, created_at DESC
		LIMIT 1`
	link, err := scanMessageLink(r.pool.QueryRow(ctx, q, channelLinkID, hazelMessageID))
	return link, wrap("find message link by hazel message", err)
}

// FindByExternalMessage is FindByHazelMessage's external-key counterpart.
func (r messageLinkRepo) FindByExternalMessage(ctx context.Context, channelLinkID, externalMessageID string) (chatsync.MessageLink, error) {
	q := `SELECT ` + messageLinkColumns + ` FROM chat_sync_message_links
		WHERE channel_link_id = $1 AND external_message_id = $2
		ORDER BY (deleted_at IS NULL) DESC, created_at DESC
		LIMIT 1`
	link, err := scanMessageLink(r.pool.QueryRow(ctx, q, channelLinkID, externalMessageID))
	return link, wrap("find message link by external message", err)
}

func (r messageLinkRepo) Insert(ctx context.Context, row chatsync.MessageLink) (chatsync.MessageLink, error) {
	const q = `
		INSERT INTO chat_sync_message_links
			(id, channel_link_id, hazel_message_id, external_message_id, source, external_thread_id, external_root_message_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + messageLinkColumns

	id := row.ID
	if id == "" {
		id = newID()
	}
	inserted, err := scanMessageLink(r.pool.QueryRow(ctx, q,
		id, row.ChannelLinkID, row.HazelMessageID, row.ExternalMessageID, string(row.Source), row.ExternalThreadID, row.ExternalRootMessageID))
	return inserted, wrap("insert message link", err)
}

func (r messageLinkRepo) UpdateLastSyncedAt(ctx context.Context, id string) error {
	const q = `UPDATE chat_sync_message_links SET last_synced_at = now() WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	return wrap("heartbeat message link", err)
}

func (r messageLinkRepo) SoftDelete(ctx context.Context, id string) error {
	const q = `UPDATE chat_sync_message_links SET deleted_at = now() WHERE id = $1 AND deleted_at IS NULL`
	_, err := r.pool.Exec(ctx, q, id)
	return wrap("soft delete message link", err)
}
