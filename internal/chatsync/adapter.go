package chatsync

import "context"

// CreateMessageInput is the input to Adapter.CreateMessage.
type CreateMessageInput struct {
	ExternalChannelID        string
	Content                  string
	ReplyToExternalMessageID string
}

// Adapter is the capability set every provider must implement. A missing
// capability is not modeled here — the reference provider (Discord)
// implements the full set, so unlike the teacher's optional capability
// interfaces (Sender, Reactor, ...), Adapter is a single interface.
type Adapter interface {
	Provider() Provider
	CreateMessage(ctx context.Context, in CreateMessageInput) (externalMessageID string, err error)
	UpdateMessage(ctx context.Context, externalChannelID, externalMessageID, content string) error
	DeleteMessage(ctx context.Context, externalChannelID, externalMessageID string) error
	AddReaction(ctx context.Context, externalChannelID, externalMessageID, emoji string) error
	RemoveReaction(ctx context.Context, externalChannelID, externalMessageID, emoji string) error
	CreateThread(ctx context.Context, externalChannelID, externalMessageID, name string) (externalThreadID string, err error)
}
