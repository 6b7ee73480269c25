// Package discord implements chatsync.Adapter over the Discord REST API,
// the reference provider the spec's operations are written against.
package discord

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sony/gobreaker"

	"github.com/memohai/chatsync/internal/chatsync"
)

const messageCharLimit = 2000

// providerTag is the Provider value registered for this adapter. It has no
// corresponding exported constant in the domain package because the
// registry keys providers by the plain tag connections are configured
// with, not a closed enum.
const providerTag chatsync.Provider = "discord"

// Adapter is the Discord chatsync.Adapter. It wraps a discordgo.Session
// (REST only — the gateway connection lives in the separate gateway
// consumer) with a circuit breaker per §4.1's ProviderApiError handling,
// the way stream.go's discordOutboundStream calls session.ChannelMessageSend
// directly but without any outage isolation; a flapping Discord outage
// should open the breaker rather than let every dispatcher/backfill call
// hang or retry into it.
type Adapter struct {
	session *discordgo.Session
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// Config holds the adapter's construction-time settings.
type Config struct {
	BotToken string
}

// New builds an Adapter. It returns a *chatsync.ProviderConfigurationError
// if BotToken is empty or the session cannot be created.
func New(cfg Config, logger *slog.Logger) (*Adapter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BotToken == "" {
		return nil, &chatsync.ProviderConfigurationError{Provider: providerTag, Message: "bot token is required"}
	}
	session, err := discordgo.New("Bot " + cfg.BotToken)
	if err != nil {
		return nil, &chatsync.ProviderConfigurationError{Provider: providerTag, Message: err.Error()}
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "discord-adapter",
		MaxRequests: 2,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("discord circuit breaker state change", slog.String("breaker", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	return &Adapter{session: session, breaker: breaker, logger: logger}, nil
}

func (a *Adapter) Provider() chatsync.Provider { return providerTag }

func truncate(content string) string {
	if len(content) <= messageCharLimit {
		return content
	}
	return content[:messageCharLimit-3] + "..."
}

// call runs fn through the circuit breaker and normalizes its error into a
// *chatsync.ProviderAPIError, so callers never see a raw discordgo error.
func (a *Adapter) call(op string, fn func() error) error {
	_, err := a.breaker.Execute(func() (any, error) {
		return nil, fn()
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &chatsync.ProviderAPIError{Provider: providerTag, Message: op + ": circuit open", Detail: err.Error()}
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		status := restErr.Response.StatusCode
		detail := ""
		if restErr.Message != nil {
			detail = restErr.Message.Message
		}
		return chatsync.NewProviderAPIStatusError(providerTag, status, detail)
	}
	return &chatsync.ProviderAPIError{Provider: providerTag, Message: op + " failed", Detail: err.Error()}
}

// IsNotFound reports whether err is a translated ProviderAPIError for a
// Discord 404, used by the worker's Open Question 2 resolution: an
// outbound delete against a message Discord has already removed is
// treated as success rather than failure.
func IsNotFound(err error) bool {
	var apiErr *chatsync.ProviderAPIError
	if errors.As(err, &apiErr) && apiErr.Status != nil {
		return *apiErr.Status == http.StatusNotFound
	}
	return false
}

func (a *Adapter) CreateMessage(ctx context.Context, in chatsync.CreateMessageInput) (string, error) {
	var id string
	err := a.call("create message", func() error {
		content := truncate(in.Content)
		var (
			msg *discordgo.Message
			err error
		)
		if in.ReplyToExternalMessageID != "" {
			msg, err = a.session.ChannelMessageSendReply(in.ExternalChannelID, content, &discordgo.MessageReference{
				MessageID: in.ReplyToExternalMessageID,
				ChannelID: in.ExternalChannelID,
			}, discordgo.WithContext(ctx))
		} else {
			msg, err = a.session.ChannelMessageSend(in.ExternalChannelID, content, discordgo.WithContext(ctx))
		}
		if err != nil {
			return err
		}
		if msg == nil || msg.ID == "" {
			return errMissingID
		}
		id = msg.ID
		return nil
	})
	if err != nil {
		if errors.Is(err, errMissingID) {
			return "", chatsync.NewProviderAPIMissingIDError(providerTag)
		}
		return "", err
	}
	return id, nil
}

var errMissingID = errors.New("discord: response missing message id")

func (a *Adapter) UpdateMessage(ctx context.Context, externalChannelID, externalMessageID, content string) error {
	return a.call("update message", func() error {
		_, err := a.session.ChannelMessageEdit(externalChannelID, externalMessageID, truncate(content), discordgo.WithContext(ctx))
		return err
	})
}

// DeleteMessage treats a 404 (the message is already gone from Discord) as
// success, matching the worker's outbound-delete policy for a message that
// was removed out of band between the dispatcher's read and this call.
func (a *Adapter) DeleteMessage(ctx context.Context, externalChannelID, externalMessageID string) error {
	err := a.call("delete message", func() error {
		return a.session.ChannelMessageDelete(externalChannelID, externalMessageID, discordgo.WithContext(ctx))
	})
	if IsNotFound(err) {
		return nil
	}
	return err
}

func (a *Adapter) AddReaction(ctx context.Context, externalChannelID, externalMessageID, emoji string) error {
	return a.call("add reaction", func() error {
		return a.session.MessageReactionAdd(externalChannelID, externalMessageID, emoji, discordgo.WithContext(ctx))
	})
}

func (a *Adapter) RemoveReaction(ctx context.Context, externalChannelID, externalMessageID, emoji string) error {
	return a.call("remove reaction", func() error {
		return a.session.MessageReactionRemove(externalChannelID, externalMessageID, emoji, "@me", discordgo.WithContext(ctx))
	})
}

func (a *Adapter) CreateThread(ctx context.Context, externalChannelID, externalMessageID, name string) (string, error) {
	var id string
	err := a.call("create thread", func() error {
		thread, err := a.session.MessageThreadStartComplex(externalChannelID, externalMessageID, &discordgo.ThreadStart{
			Name:                name,
			AutoArchiveDuration: 1440,
		}, discordgo.WithContext(ctx))
		if err != nil {
			return err
		}
		if thread == nil || thread.ID == "" {
			return errMissingID
		}
		id = thread.ID
		return nil
	})
	if err != nil {
		if errors.Is(err, errMissingID) {
			return "", chatsync.NewProviderAPIMissingIDError(providerTag)
		}
		return "", err
	}
	return id, nil
}
