package chatsync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
)

// ReceiptLedger is the atomic claim/commit primitive over EventReceipt
// rows: the at-most-one-effect guarantee for every verb.
type ReceiptLedger struct {
	repo   EventReceiptRepo
	logger *slog.Logger
}

// NewReceiptLedger creates a ReceiptLedger backed by repo.
func NewReceiptLedger(log *slog.Logger, repo EventReceiptRepo) *ReceiptLedger {
	if log == nil {
		log = slog.Default()
	}
	return &ReceiptLedger{repo: repo, logger: log.With(slog.String("component", "receipt_ledger"))}
}

// Claim inserts a claimed row for (syncConnectionID, source, dedupeKey).
// It returns false without error when the row already exists (duplicate);
// any other database error is fatal and propagates.
func (l *ReceiptLedger) Claim(ctx context.Context, syncConnectionID string, source Source, dedupeKey string, channelLinkID *string) (bool, error) {
	return l.repo.ClaimByDedupeKey(ctx, syncConnectionID, source, dedupeKey, channelLinkID)
}

// Commit updates a previously claimed row with its terminal status. Commit
// is idempotent with respect to re-application (last writer wins).
func (l *ReceiptLedger) Commit(ctx context.Context, syncConnectionID string, source Source, dedupeKey string, status ReceiptStatus, payload any, errMessage string, channelLinkID *string) error {
	payloadHash, err := HashPayload(payload)
	if err != nil {
		l.logger.Warn("hash receipt payload failed", slog.Any("error", err))
		payloadHash = nil
	}
	var errMsgPtr *string
	if errMessage != "" {
		errMsgPtr = &errMessage
	}
	return l.repo.UpdateByDedupeKey(ctx, CommitParams{
		SyncConnectionID: syncConnectionID,
		Source:           source,
		DedupeKey:        dedupeKey,
		Status:           status,
		PayloadHash:      payloadHash,
		ErrorMessage:     errMsgPtr,
		ChannelLinkID:    channelLinkID,
	})
}

// HashPayload returns the hex SHA-256 of the JSON encoding of payload, or
// nil when payload is nil. Deterministic key ordering is not required for
// correctness — the hash is observational, as the spec this ledger
// implements allows any stable serialization.
func HashPayload(payload any) (*string, error) {
	if payload == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(encoded)
	hash := hex.EncodeToString(sum[:])
	return &hash, nil
}
