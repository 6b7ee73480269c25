package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memohai/chatsync/internal/chatsync"
)

type messageRepo struct {
	pool *pgxpool.Pool
}

const messageColumns = `id, channel_id, author_id, content, reply_to_message_id, thread_id, created_at, updated_at, deleted_at`

func scanMessage(row interface{ Scan(...any) error }) (chatsync.HazelMessage, error) {
	var m chatsync.HazelMessage
	if err := row.Scan(&m.ID, &m.ChannelID, &m.AuthorID, &m.Content, &m.ReplyToMessageID, &m.ThreadID, &m.CreatedAt, &m.UpdatedAt, &m.DeletedAt); err != nil {
		return chatsync.HazelMessage{}, translate(err)
	}
	return m, nil
}

func (r messageRepo) FindByID(ctx context.Context, id string) (chatsync.HazelMessage, error) {
	q := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`
	msg, err := scanMessage(r.pool.QueryRow(ctx, q, id))
	return msg, wrap("find message", err)
}

func (r messageRepo) Insert(ctx context.Context, row chatsync.HazelMessage) (chatsync.HazelMessage, error) {
	const q = `
		INSERT INTO messages (id, channel_id, author_id, content, reply_to_message_id, thread_id)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
		RETURNING ` + messageColumns

	id := row.ID
	if id == "" {
		id = newID()
	}
	inserted, err := scanMessage(r.pool.QueryRow(ctx, q, id, row.ChannelID, row.AuthorID, row.Content, row.ReplyToMessageID, row.ThreadID))
	return inserted, wrap("insert message", err)
}

func (r messageRepo) Update(ctx context.Context, id string, content string) (chatsync.HazelMessage, error) {
	q := `UPDATE messages SET content = $1, updated_at = now() WHERE id = $2 RETURNING ` + messageColumns
	msg, err := scanMessage(r.pool.QueryRow(ctx, q, content, id))
	return msg, wrap("update message", err)
}

func (r messageRepo) SoftDelete(ctx context.Context, id string) (chatsync.HazelMessage, error) {
	q := `UPDATE messages SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL RETURNING ` + messageColumns
	msg, err := scanMessage(r.pool.QueryRow(ctx, q, id))
	return msg, wrap("soft delete message", err)
}

func (r messageRepo) FindUnlinked(ctx context.Context, channelID, channelLinkID string, limit int) ([]chatsync.HazelMessage, error) {
	const q = `
		SELECT ` + messageColumns + `
		FROM messages m
		WHERE m.channel_id = $1 AND m.deleted_at IS NULL
		  AND NOT EXISTS (
			SELECT 1 FROM chat_sync_message_links l
			WHERE l.channel_link_id = $2 AND l.hazel_message_id = m.id AND l.deleted_at IS NULL
		  )
		ORDER BY m.created_at ASC, m.id ASC
		LIMIT $3`
	rows, err := r.pool.Query(ctx, q, channelID, channelLinkID, limit)
	if err != nil {
		return nil, wrap("find unlinked messages", err)
	}
	defer rows.Close()

	var out []chatsync.HazelMessage
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, wrap("scan unlinked message", err)
		}
		out = append(out, msg)
	}
	return out, wrap("iterate unlinked messages", rows.Err())
}
