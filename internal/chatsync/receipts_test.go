package chatsync

import (
	"context"
	"testing"
)

func TestReceiptLedger_ClaimThenDuplicateClaim(t *testing.T) {
	repo := newFakeEventReceiptRepo()
	ledger := NewReceiptLedger(nil, repo)
	ctx := context.Background()

	claimed, err := ledger.Claim(ctx, "conn-1", SourceExternal, "dedupe-1", nil)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if !claimed {
		t.Fatal("first Claim() should succeed")
	}

	claimed, err = ledger.Claim(ctx, "conn-1", SourceExternal, "dedupe-1", nil)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if claimed {
		t.Fatal("duplicate Claim() should return false")
	}
}

func TestReceiptLedger_Commit(t *testing.T) {
	repo := newFakeEventReceiptRepo()
	ledger := NewReceiptLedger(nil, repo)
	ctx := context.Background()

	if _, err := ledger.Claim(ctx, "conn-1", SourceHazel, "dedupe-2", nil); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if err := ledger.Commit(ctx, "conn-1", SourceHazel, "dedupe-2", ReceiptProcessed, map[string]string{"a": "b"}, "", nil); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	got := repo.claims[receiptKey("conn-1", SourceHazel, "dedupe-2")]
	if got != ReceiptProcessed {
		t.Fatalf("status after commit = %v, want processed", got)
	}
}

func TestHashPayload_Nil(t *testing.T) {
	hash, err := HashPayload(nil)
	if err != nil {
		t.Fatalf("HashPayload(nil) error = %v", err)
	}
	if hash != nil {
		t.Fatalf("HashPayload(nil) = %v, want nil", *hash)
	}
}

func TestHashPayload_Deterministic(t *testing.T) {
	payload := map[string]string{"externalMessageId": "1", "emoji": "🔥"}
	a, err := HashPayload(payload)
	if err != nil {
		t.Fatalf("HashPayload() error = %v", err)
	}
	b, err := HashPayload(payload)
	if err != nil {
		t.Fatalf("HashPayload() error = %v", err)
	}
	if *a != *b {
		t.Fatalf("HashPayload() not stable across calls: %q != %q", *a, *b)
	}
}
