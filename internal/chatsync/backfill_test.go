package chatsync

import (
	"context"
	"testing"
)

func TestBackfillScanner_SyncAllActiveConnections(t *testing.T) {
	connActive := Connection{ID: "C1", Provider: "discord", Status: ConnectionActive}
	connInactive := Connection{ID: "C2", Provider: "discord", Status: ConnectionInactive}
	connections := newFakeConnectionRepo(connActive, connInactive)

	links := newFakeChannelLinkRepo()
	links.add(ChannelLink{ID: "L1", SyncConnectionID: "C1", HazelChannelID: "H1", ExternalChannelID: "X1", Direction: DirectionBoth, IsActive: true}, "discord")

	messageLinks := newFakeMessageLinkRepo()
	messages := newFakeMessageRepo()
	receipts := NewReceiptLedger(nil, newFakeEventReceiptRepo())
	identity := NewIdentityResolver(nil, fakeIntegrationConnectionRepo{}, newFakeUserRepo(), fakeOrgMemberRepo{}, fakeBotService{})
	registry := NewRegistry()
	registry.MustRegister(newFakeAdapter("discord"))

	worker := NewWorker(nil, connections, links, messageLinks, messages, receipts, identity, registry)
	scanner := NewBackfillScanner(nil, worker, connections)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := messages.Insert(ctx, HazelMessage{ChannelID: "H1", Content: "msg"}); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}

	summaries, err := scanner.SyncAllActiveConnections(ctx, "discord", 0)
	if err != nil {
		t.Fatalf("SyncAllActiveConnections() error = %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("len(summaries) = %d, want 1 (only the active connection)", len(summaries))
	}
	if summaries[0].Sent != 3 {
		t.Fatalf("summaries[0].Sent = %d, want 3", summaries[0].Sent)
	}
}

func TestWorker_SyncConnection_InactiveIsZeroResult(t *testing.T) {
	conn := Connection{ID: "C1", Provider: "discord", Status: ConnectionInactive}
	worker, _, _, _, _ := newTestWorker(conn)

	summary, err := worker.SyncConnection(context.Background(), "C1", 0)
	if err != nil {
		t.Fatalf("SyncConnection() error = %v", err)
	}
	if summary.Sent != 0 || summary.Skipped != 0 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want a zero result", summary)
	}
}

func TestWorker_SyncConnection_RespectsOutboundEligibility(t *testing.T) {
	conn := Connection{ID: "C1", Provider: "discord", Status: ConnectionActive}
	worker, links, _, messages, _ := newTestWorker(conn)
	links.add(ChannelLink{ID: "L1", SyncConnectionID: "C1", HazelChannelID: "H1", ExternalChannelID: "X1", Direction: DirectionExternalToHazel, IsActive: true}, "discord")

	ctx := context.Background()
	if _, err := messages.Insert(ctx, HazelMessage{ChannelID: "H1", Content: "inbound-only"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	summary, err := worker.SyncConnection(ctx, "C1", 0)
	if err != nil {
		t.Fatalf("SyncConnection() error = %v", err)
	}
	if summary.Sent != 0 {
		t.Fatalf("summary.Sent = %d, want 0 (external_to_hazel link is not outbound-eligible)", summary.Sent)
	}
}
