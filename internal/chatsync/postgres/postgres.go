// Package postgres implements the chatsync repository interfaces over a
// pgx/v5 connection pool with hand-written SQL, following the teacher's
// internal/db and internal/bind conventions (no ORM, no code generation).
package postgres

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/memohai/chatsync/internal/chatsync"
)

// translate maps a bare pgx.ErrNoRows into the package-level
// chatsync.ErrNotFound sentinel so callers never need to import pgx.
func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return chatsync.ErrNotFound
	}
	return err
}

func newID() string {
	return uuid.NewString()
}

// Store bundles every repository implementation over one pool, mirroring
// how internal/bind.Service and internal/message.DBService hold a single
// *pgxpool.Pool and expose narrow interfaces off of it.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store backed by pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connections returns a chatsync.ConnectionRepo backed by this store.
func (s *Store) Connections() chatsync.ConnectionRepo { return connectionRepo{pool: s.pool} }

// ChannelLinks returns a chatsync.ChannelLinkRepo backed by this store.
func (s *Store) ChannelLinks() chatsync.ChannelLinkRepo { return channelLinkRepo{pool: s.pool} }

// MessageLinks returns a chatsync.MessageLinkRepo backed by this store.
func (s *Store) MessageLinks() chatsync.MessageLinkRepo { return messageLinkRepo{pool: s.pool} }

// EventReceipts returns a chatsync.EventReceiptRepo backed by this store.
func (s *Store) EventReceipts() chatsync.EventReceiptRepo { return eventReceiptRepo{pool: s.pool} }

// Messages returns a chatsync.MessageRepo backed by this store.
func (s *Store) Messages() chatsync.MessageRepo { return messageRepo{pool: s.pool} }

// Users returns a chatsync.UserRepo backed by this store.
func (s *Store) Users() chatsync.UserRepo { return userRepo{pool: s.pool} }

// OrganizationMembers returns a chatsync.OrganizationMemberRepo backed by this store.
func (s *Store) OrganizationMembers() chatsync.OrganizationMemberRepo {
	return orgMemberRepo{pool: s.pool}
}

// IntegrationConnections returns a chatsync.IntegrationConnectionRepo backed by this store.
func (s *Store) IntegrationConnections() chatsync.IntegrationConnectionRepo {
	return integrationConnectionRepo{pool: s.pool}
}

// Bots returns a chatsync.IntegrationBotService backed by this store.
func (s *Store) Bots() chatsync.IntegrationBotService { return integrationBotRepo{pool: s.pool} }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("postgres: %s: %w", op, err)
}
