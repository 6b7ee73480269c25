// Package chatsync implements the provider-agnostic chat synchronization
// engine: it mirrors messages between Hazel organizations and external
// chat providers through a dedupe-receipt ledger, an identity resolver,
// and a small provider adapter capability set.
package chatsync

import (
	"strings"
	"time"
)

// Provider identifies an external chat platform by its static tag.
type Provider string

// ConnectionStatus is the lifecycle state of a SyncConnection.
type ConnectionStatus string

const (
	ConnectionActive   ConnectionStatus = "active"
	ConnectionInactive ConnectionStatus = "inactive"
	ConnectionError    ConnectionStatus = "error"
)

// Direction declares which side of a channel link is permitted to write.
type Direction string

const (
	DirectionBoth             Direction = "both"
	DirectionHazelToExternal  Direction = "hazel_to_external"
	DirectionExternalToHazel  Direction = "external_to_hazel"
)

// Source records which side of a mirror pair originated the message.
type Source string

const (
	SourceHazel    Source = "hazel"
	SourceExternal Source = "external"
)

// ReceiptStatus is the terminal or in-flight state of an EventReceipt row.
type ReceiptStatus string

const (
	ReceiptClaimed   ReceiptStatus = "claimed"
	ReceiptProcessed ReceiptStatus = "processed"
	ReceiptIgnored   ReceiptStatus = "ignored"
	ReceiptFailed    ReceiptStatus = "failed"
)

// Outcome is the benign, non-error result of a Sync Core Worker verb.
// Outcomes are never logged as errors.
type Outcome string

const (
	OutcomeDeduped                   Outcome = "deduped"
	OutcomeAlreadyLinked             Outcome = "already_linked"
	OutcomeIgnoredMissingLink        Outcome = "ignored_missing_link"
	OutcomeIgnoredConnectionInactive Outcome = "ignored_connection_inactive"
	OutcomeCreated                   Outcome = "created"
	OutcomeUpdated                   Outcome = "updated"
	OutcomeDeleted                   Outcome = "deleted"
	OutcomeSynced                    Outcome = "synced"
	OutcomeRecorded                  Outcome = "recorded"
)

// Connection is a SyncConnection: an organization bound to an external
// workspace under a provider tag.
type Connection struct {
	ID                  string
	OrganizationID      string
	Provider            Provider
	ExternalWorkspaceID string
	Status              ConnectionStatus
	LastSyncedAt        time.Time
	CreatedBy           string
}

// ChannelLink is a SyncChannelLink: a bound pair of (hazel channel,
// external channel) with a permitted direction.
type ChannelLink struct {
	ID               string
	SyncConnectionID string
	HazelChannelID   string
	ExternalChannelID string
	Direction        Direction
	IsActive         bool
	LastSyncedAt     time.Time
}

// EligibleOutbound reports whether an outbound verb may target this link.
func (l ChannelLink) EligibleOutbound() bool {
	return l.Direction != DirectionExternalToHazel
}

// EligibleIngress reports whether an ingress verb may write through this link.
func (l ChannelLink) EligibleIngress() bool {
	return l.Direction != DirectionHazelToExternal
}

// MessageLink is a SyncMessageLink: a bound pair of (hazel message,
// external message) scoped to a channel link.
type MessageLink struct {
	ID                     string
	ChannelLinkID          string
	HazelMessageID         string
	ExternalMessageID      string
	Source                 Source
	ExternalThreadID       string
	ExternalRootMessageID  string
	LastSyncedAt           time.Time
	DeletedAt              *time.Time
}

// Live reports whether the message link has not been soft-deleted.
func (m MessageLink) Live() bool {
	return m.DeletedAt == nil
}

// EventReceipt is the dedupe ledger row guaranteeing at-most-one-effect
// per (syncConnectionId, source, dedupeKey).
type EventReceipt struct {
	ID               string
	SyncConnectionID string
	ChannelLinkID    *string
	Source           Source
	DedupeKey        string
	PayloadHash      *string
	Status           ReceiptStatus
	ErrorMessage     *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// HazelMessage is the internal message row the worker reads and writes.
type HazelMessage struct {
	ID                   string
	ChannelID            string
	AuthorID             string
	Content              string
	ReplyToMessageID     string
	ThreadID             string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	DeletedAt            *time.Time
}

// Live reports whether the message has not been soft-deleted.
func (m HazelMessage) Live() bool {
	return m.DeletedAt == nil
}

// Result is the return value of every Sync Core Worker verb: a benign
// Outcome alongside whatever ids the caller might need next.
type Result struct {
	Outcome            Outcome
	HazelMessageID     string
	ExternalMessageID  string
	ExternalThreadID   string
}

func trimProvider(p Provider) Provider {
	return Provider(strings.TrimSpace(string(p)))
}
