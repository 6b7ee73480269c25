package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memohai/chatsync/internal/chatsync"
	"github.com/memohai/chatsync/internal/db"
)

type eventReceiptRepo struct {
	pool *pgxpool.Pool
}

// ClaimByDedupeKey inserts a claimed row for the dedupe key, relying on
// the table's unique index over (sync_connection_id, source, dedupe_key)
// to turn a concurrent or retried claim into a translated false, matching
// internal/bind.Service.Issue's unique-violation retry pattern but
// without a retry loop, since a duplicate claim here is the expected
// "already in flight" case rather than a collision to work around.
func (r eventReceiptRepo) ClaimByDedupeKey(ctx context.Context, syncConnectionID string, source chatsync.Source, dedupeKey string, channelLinkID *string) (bool, error) {
	const q = `
		INSERT INTO chat_sync_event_receipts (id, sync_connection_id, channel_link_id, source, dedupe_key, status)
		VALUES ($1, $2, $3, $4, $5, 'claimed')`
	_, err := r.pool.Exec(ctx, q, newID(), syncConnectionID, channelLinkID, string(source), dedupeKey)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return false, nil
		}
		return false, wrap("claim event receipt", err)
	}
	return true, nil
}

func (r eventReceiptRepo) UpdateByDedupeKey(ctx context.Context, params chatsync.CommitParams) error {
	const q = `
		UPDATE chat_sync_event_receipts
		SET status = $1, payload_hash = $2, error_message = $3, channel_link_id = COALESCE($4, channel_link_id), updated_at = now()
		WHERE sync_connection_id = $5 AND source = $6 AND dedupe_key = $7`
	_, err := r.pool.Exec(ctx, q,
		string(params.Status), params.PayloadHash, params.ErrorMessage, params.ChannelLinkID,
		params.SyncConnectionID, string(params.Source), params.DedupeKey)
	return wrap("commit event receipt", err)
}
