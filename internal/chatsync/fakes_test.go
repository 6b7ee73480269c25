package chatsync

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeConnectionRepo is an in-memory ConnectionRepo for unit tests.
type fakeConnectionRepo struct {
	mu    sync.Mutex
	byID  map[string]Connection
}

func newFakeConnectionRepo(conns ...Connection) *fakeConnectionRepo {
	repo := &fakeConnectionRepo{byID: map[string]Connection{}}
	for _, c := range conns {
		repo.byID[c.ID] = c
	}
	return repo
}

func (r *fakeConnectionRepo) FindByID(_ context.Context, id string) (Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return Connection{}, ErrNotFound
	}
	return c, nil
}

func (r *fakeConnectionRepo) FindActiveByProvider(_ context.Context, provider Provider) ([]Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Connection
	for _, c := range r.byID {
		if c.Provider == provider && c.Status == ConnectionActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeConnectionRepo) UpdateLastSyncedAt(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.byID[id]
	c.LastSyncedAt = time.Unix(0, 0)
	r.byID[id] = c
	return nil
}

// fakeChannelLinkRepo is an in-memory ChannelLinkRepo for unit tests.
type fakeChannelLinkRepo struct {
	mu    sync.Mutex
	links map[string]ChannelLink
	conns map[string]Provider
}

func newFakeChannelLinkRepo() *fakeChannelLinkRepo {
	return &fakeChannelLinkRepo{links: map[string]ChannelLink{}, conns: map[string]Provider{}}
}

func (r *fakeChannelLinkRepo) add(link ChannelLink, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.links[link.ID] = link
	r.conns[link.SyncConnectionID] = provider
}

func (r *fakeChannelLinkRepo) FindByHazelChannel(_ context.Context, syncConnectionID, hazelChannelID string) (ChannelLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.SyncConnectionID == syncConnectionID && l.HazelChannelID == hazelChannelID {
			return l, nil
		}
	}
	return ChannelLink{}, ErrNotFound
}

func (r *fakeChannelLinkRepo) FindByExternalChannel(_ context.Context, syncConnectionID, externalChannelID string) (ChannelLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.SyncConnectionID == syncConnectionID && l.ExternalChannelID == externalChannelID {
			return l, nil
		}
	}
	return ChannelLink{}, ErrNotFound
}

func (r *fakeChannelLinkRepo) FindActiveBySyncConnection(_ context.Context, syncConnectionID string) ([]ChannelLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ChannelLink
	for _, l := range r.links {
		if l.SyncConnectionID == syncConnectionID && l.IsActive {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *fakeChannelLinkRepo) FindActiveByExternalChannel(_ context.Context, provider Provider, externalChannelID string) ([]ChannelLinkWithConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ChannelLinkWithConnection
	for _, l := range r.links {
		if !l.IsActive || l.ExternalChannelID != externalChannelID {
			continue
		}
		if r.conns[l.SyncConnectionID] != provider {
			continue
		}
		out = append(out, ChannelLinkWithConnection{Link: l, SyncConnectionID: l.SyncConnectionID})
	}
	return out, nil
}

func (r *fakeChannelLinkRepo) FindActiveOutboundTargets(_ context.Context, hazelChannelID string, provider Provider) ([]ChannelLinkWithConnection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ChannelLinkWithConnection
	for _, l := range r.links {
		if !l.IsActive || l.HazelChannelID != hazelChannelID {
			continue
		}
		if r.conns[l.SyncConnectionID] != provider {
			continue
		}
		out = append(out, ChannelLinkWithConnection{Link: l, SyncConnectionID: l.SyncConnectionID})
	}
	return out, nil
}

func (r *fakeChannelLinkRepo) UpdateLastSyncedAt(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l := r.links[id]
	l.LastSyncedAt = time.Unix(0, 0)
	r.links[id] = l
	return nil
}

// fakeMessageLinkRepo is an in-memory MessageLinkRepo for unit tests. order
// records insertion order so Find* can prefer a live row over a dead one
// sharing the same key, the way the partial-unique-index-backed Postgres
// queries order live-first, most-recent-first.
type fakeMessageLinkRepo struct {
	mu     sync.Mutex
	byID   map[string]MessageLink
	order  []string
	nextID int
}

func newFakeMessageLinkRepo() *fakeMessageLinkRepo {
	return &fakeMessageLinkRepo{byID: map[string]MessageLink{}}
}

func (r *fakeMessageLinkRepo) findLocked(match func(MessageLink) bool) (MessageLink, error) {
	found, ok := MessageLink{}, false
	for i := len(r.order) - 1; i >= 0; i-- {
		m := r.byID[r.order[i]]
		if !match(m) {
			continue
		}
		if !ok {
			found, ok = m, true
		}
		if m.Live() {
			return m, nil
		}
	}
	if !ok {
		return MessageLink{}, ErrNotFound
	}
	return found, nil
}

func (r *fakeMessageLinkRepo) FindByHazelMessage(_ context.Context, channelLinkID, hazelMessageID string) (MessageLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findLocked(func(m MessageLink) bool {
		return m.ChannelLinkID == channelLinkID && m.HazelMessageID == hazelMessageID
	})
}

func (r *fakeMessageLinkRepo) FindByExternalMessage(_ context.Context, channelLinkID, externalMessageID string) (MessageLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findLocked(func(m MessageLink) bool {
		return m.ChannelLinkID == channelLinkID && m.ExternalMessageID == externalMessageID
	})
}

func (r *fakeMessageLinkRepo) Insert(_ context.Context, row MessageLink) (MessageLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	row.ID = fmt.Sprintf("link-%d", r.nextID)
	r.byID[row.ID] = row
	r.order = append(r.order, row.ID)
	return row, nil
}

func (r *fakeMessageLinkRepo) UpdateLastSyncedAt(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.byID[id]
	m.LastSyncedAt = time.Unix(0, 0)
	r.byID[id] = m
	return nil
}

func (r *fakeMessageLinkRepo) SoftDelete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.byID[id]
	now := time.Unix(0, 0)
	m.DeletedAt = &now
	r.byID[id] = m
	return nil
}

// fakeEventReceiptRepo is an in-memory EventReceiptRepo for unit tests.
type fakeEventReceiptRepo struct {
	mu     sync.Mutex
	claims map[string]ReceiptStatus
}

func newFakeEventReceiptRepo() *fakeEventReceiptRepo {
	return &fakeEventReceiptRepo{claims: map[string]ReceiptStatus{}}
}

func receiptKey(syncConnectionID string, source Source, dedupeKey string) string {
	return syncConnectionID + "|" + string(source) + "|" + dedupeKey
}

func (r *fakeEventReceiptRepo) ClaimByDedupeKey(_ context.Context, syncConnectionID string, source Source, dedupeKey string, _ *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := receiptKey(syncConnectionID, source, dedupeKey)
	if _, exists := r.claims[key]; exists {
		return false, nil
	}
	r.claims[key] = ReceiptClaimed
	return true, nil
}

func (r *fakeEventReceiptRepo) UpdateByDedupeKey(_ context.Context, params CommitParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := receiptKey(params.SyncConnectionID, params.Source, params.DedupeKey)
	r.claims[key] = params.Status
	return nil
}

// fakeMessageRepo is an in-memory MessageRepo for unit tests.
type fakeMessageRepo struct {
	mu     sync.Mutex
	byID   map[string]HazelMessage
	nextID int
}

func newFakeMessageRepo(msgs ...HazelMessage) *fakeMessageRepo {
	repo := &fakeMessageRepo{byID: map[string]HazelMessage{}}
	for _, m := range msgs {
		repo.byID[m.ID] = m
	}
	return repo
}

func (r *fakeMessageRepo) FindByID(_ context.Context, id string) (HazelMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return HazelMessage{}, ErrNotFound
	}
	return m, nil
}

func (r *fakeMessageRepo) Insert(_ context.Context, row HazelMessage) (HazelMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	row.ID = fmt.Sprintf("msg-%d", r.nextID)
	r.byID[row.ID] = row
	return row, nil
}

func (r *fakeMessageRepo) Update(_ context.Context, id string, content string) (HazelMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return HazelMessage{}, ErrNotFound
	}
	m.Content = content
	r.byID[id] = m
	return m, nil
}

func (r *fakeMessageRepo) SoftDelete(_ context.Context, id string) (HazelMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok {
		return HazelMessage{}, ErrNotFound
	}
	now := time.Unix(0, 0)
	m.DeletedAt = &now
	r.byID[id] = m
	return m, nil
}

func (r *fakeMessageRepo) FindUnlinked(_ context.Context, channelID, _ string, limit int) ([]HazelMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []HazelMessage
	for _, m := range r.byID {
		if m.ChannelID == channelID && m.Live() {
			out = append(out, m)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// fakeUserRepo is an in-memory UserRepo for unit tests.
type fakeUserRepo struct {
	mu      sync.Mutex
	byExt   map[string]string
	names   map[string]string
	nextID  int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byExt: map[string]string{}, names: map[string]string{}}
}

func (r *fakeUserRepo) UpsertByExternalID(_ context.Context, row UpsertUserRow, _ UpsertUserOptions) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byExt[row.ExternalID]; ok {
		return id, nil
	}
	r.nextID++
	id := fmt.Sprintf("user-%d", r.nextID)
	r.byExt[row.ExternalID] = id
	r.names[row.ExternalID] = row.FirstName
	return id, nil
}

// fakeOrgMemberRepo is an in-memory OrganizationMemberRepo for unit tests.
type fakeOrgMemberRepo struct{}

func (fakeOrgMemberRepo) UpsertByOrgAndUser(context.Context, string, string) error { return nil }

// fakeIntegrationConnectionRepo returns a hit only for external ids listed in
// bound; every other lookup misses, forcing the shadow-user path.
type fakeIntegrationConnectionRepo struct {
	bound map[string]string
}

func (r fakeIntegrationConnectionRepo) FindActiveUserByExternalAccountID(_ context.Context, _ string, _ Provider, externalUserID string) (string, bool, error) {
	if r.bound == nil {
		return "", false, nil
	}
	id, ok := r.bound[externalUserID]
	return id, ok, nil
}

// fakeBotService is an in-memory IntegrationBotService for unit tests.
type fakeBotService struct{}

func (fakeBotService) GetOrCreateBotUser(_ context.Context, provider Provider, organizationID string) (string, error) {
	return fmt.Sprintf("bot-%s-%s", provider, organizationID), nil
}

// fakeAdapter is an in-memory Adapter for unit tests.
type fakeAdapter struct {
	provider Provider

	mu          sync.Mutex
	nextID      int
	created     []string
	updated     []string
	deleted     []string
	failCreate  error
	notFoundIDs map[string]bool
}

func newFakeAdapter(provider Provider) *fakeAdapter {
	return &fakeAdapter{provider: provider, notFoundIDs: map[string]bool{}}
}

func (a *fakeAdapter) Provider() Provider { return a.provider }

func (a *fakeAdapter) CreateMessage(_ context.Context, in CreateMessageInput) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failCreate != nil {
		return "", a.failCreate
	}
	a.nextID++
	id := fmt.Sprintf("ext-msg-%d", a.nextID)
	a.created = append(a.created, id)
	return id, nil
}

func (a *fakeAdapter) UpdateMessage(_ context.Context, _ string, externalMessageID string, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.updated = append(a.updated, externalMessageID)
	return nil
}

func (a *fakeAdapter) DeleteMessage(_ context.Context, _ string, externalMessageID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	// A provider 404 (message already gone) is treated as success.
	if a.notFoundIDs[externalMessageID] {
		return nil
	}
	a.deleted = append(a.deleted, externalMessageID)
	return nil
}

func (a *fakeAdapter) AddReaction(context.Context, string, string, string) error    { return nil }
func (a *fakeAdapter) RemoveReaction(context.Context, string, string, string) error { return nil }

func (a *fakeAdapter) CreateThread(_ context.Context, _ string, _ string, name string) (string, error) {
	return "thread-" + name, nil
}
