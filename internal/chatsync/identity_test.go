package chatsync

import (
	"context"
	"testing"
)

func TestIdentityResolver_ShadowUserUpsert(t *testing.T) {
	users := newFakeUserRepo()
	resolver := NewIdentityResolver(nil, fakeIntegrationConnectionRepo{}, users, fakeOrgMemberRepo{}, fakeBotService{})
	ctx := context.Background()

	id1, err := resolver.ResolveAuthor(ctx, "discord", "org-1", "ext-1", "Alice", "https://cdn/a.png")
	if err != nil {
		t.Fatalf("ResolveAuthor() error = %v", err)
	}
	if id1 == "" {
		t.Fatal("expected a non-empty user id")
	}

	id2, err := resolver.ResolveAuthor(ctx, "discord", "org-1", "ext-1", "Alice", "https://cdn/a.png")
	if err != nil {
		t.Fatalf("ResolveAuthor() error = %v", err)
	}
	if id1 != id2 {
		t.Fatalf("ResolveAuthor() returned different ids for the same external author: %q != %q", id1, id2)
	}
}

func TestIdentityResolver_BoundIntegrationTakesPriority(t *testing.T) {
	users := newFakeUserRepo()
	integrations := fakeIntegrationConnectionRepo{bound: map[string]string{"ext-1": "user-real"}}
	resolver := NewIdentityResolver(nil, integrations, users, fakeOrgMemberRepo{}, fakeBotService{})
	ctx := context.Background()

	id, err := resolver.ResolveAuthor(ctx, "discord", "org-1", "ext-1", "Alice", "")
	if err != nil {
		t.Fatalf("ResolveAuthor() error = %v", err)
	}
	if id != "user-real" {
		t.Fatalf("ResolveAuthor() = %q, want the bound integration user", id)
	}
}

func TestIdentityResolver_DisplayNameFallback(t *testing.T) {
	users := newFakeUserRepo()
	resolver := NewIdentityResolver(nil, fakeIntegrationConnectionRepo{}, users, fakeOrgMemberRepo{}, fakeBotService{})
	ctx := context.Background()

	if _, err := resolver.ResolveAuthor(ctx, "discord", "org-1", "ext-2", "  ", ""); err != nil {
		t.Fatalf("ResolveAuthor() error = %v", err)
	}
	if _, ok := users.byExt["discord-user-ext-2"]; !ok {
		t.Fatal("expected a shadow user keyed on the synthetic external id")
	}
	if got := users.names["discord-user-ext-2"]; got != "External User" {
		t.Fatalf("shadow user name = %q, want the \"External User\" fallback", got)
	}
}

func TestIdentityResolver_ResolveBotAuthor(t *testing.T) {
	resolver := NewIdentityResolver(nil, fakeIntegrationConnectionRepo{}, newFakeUserRepo(), fakeOrgMemberRepo{}, fakeBotService{})
	id, err := resolver.ResolveBotAuthor(context.Background(), "discord", "org-1")
	if err != nil {
		t.Fatalf("ResolveBotAuthor() error = %v", err)
	}
	if id != "bot-discord-org-1" {
		t.Fatalf("ResolveBotAuthor() = %q", id)
	}
}
