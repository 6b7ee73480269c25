// Package gateway implements the Discord Gateway Consumer (spec §4.7): a
// resumable real-time WebSocket session that decodes dispatched message
// and reaction events and routes them into the Sync Core Worker's ingress
// verbs, while suppressing the bot's own echoes.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/memohai/chatsync/internal/chatsync"
)

const (
	defaultGatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"
	reconnectDelay    = 2 * time.Second
)

// Config holds the consumer's construction-time settings.
type Config struct {
	Token   string
	Intents int
	// GatewayURL overrides the default Discord gateway endpoint, mainly
	// for tests that point the consumer at a local websocket server.
	GatewayURL string
}

// Consumer owns the single long-running gateway session for one process,
// per §4.7's "owned by one consumer fiber" locking discipline.
type Consumer struct {
	cfg    Config
	worker *chatsync.Worker
	links  chatsync.ChannelLinkRepo
	logger *slog.Logger

	mu               sync.Mutex
	sequence         *int64
	sessionID        string
	resumeGatewayURL string
	botUserID        string

	conn *websocket.Conn
}

// New builds a Consumer.
func New(cfg Config, worker *chatsync.Worker, links chatsync.ChannelLinkRepo, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GatewayURL == "" {
		cfg.GatewayURL = defaultGatewayURL
	}
	return &Consumer{cfg: cfg, worker: worker, links: links, logger: logger.With(slog.String("component", "discord-gateway"))}
}

// Run drives the outer reconnect loop until ctx is canceled or a fatal
// close code is observed (§4.7 step 7).
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fatal, err := c.runSession(ctx)
		if err != nil {
			c.logger.Error("gateway session ended", slog.Any("error", err))
		}
		if fatal {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Consumer) gatewayURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resumeGatewayURL != "" {
		return c.resumeGatewayURL
	}
	return c.cfg.GatewayURL
}

// runSession runs one connect-identify-consume cycle. It returns
// (fatal=true) only when the close code is in the fatal set; any other
// termination (context cancellation, transient socket error, invalid
// session) is non-fatal and the outer loop reconnects.
func (c *Consumer) runSession(ctx context.Context) (bool, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.gatewayURL(), nil)
	if err != nil {
		return false, fmt.Errorf("dial gateway: %w", err)
	}
	c.conn = conn
	defer conn.Close()

	hello, err := c.awaitHello(conn)
	if err != nil {
		return false, err
	}

	if err := c.identifyOrResume(conn); err != nil {
		return false, err
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var heartbeatWG sync.WaitGroup
	heartbeatWG.Add(1)
	go func() {
		defer heartbeatWG.Done()
		c.runHeartbeat(sessionCtx, conn, time.Duration(hello.HeartbeatInterval)*time.Millisecond)
	}()
	defer heartbeatWG.Wait()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			cancel()
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && isFatalCloseCode(closeErr.Code) {
				return true, fmt.Errorf("fatal close code %d: %w", closeErr.Code, err)
			}
			return false, err
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("failed to decode gateway envelope", slog.Any("error", err))
			continue
		}
		if env.S != nil {
			c.mu.Lock()
			c.sequence = env.S
			c.mu.Unlock()
		}

		switch env.Op {
		case OpInvalidSession:
			c.mu.Lock()
			c.sessionID = ""
			c.sequence = nil
			c.resumeGatewayURL = ""
			c.mu.Unlock()
			cancel()
			conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(closeCodeReidentify, ""), time.Now().Add(5*time.Second))
			return false, nil
		case OpDispatch:
			c.handleDispatch(ctx, env)
		}
	}
}

func (c *Consumer) awaitHello(conn *websocket.Conn) (helloPayload, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return helloPayload{}, fmt.Errorf("await hello: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return helloPayload{}, fmt.Errorf("decode hello envelope: %w", err)
	}
	if env.Op != OpHello {
		return helloPayload{}, fmt.Errorf("expected hello opcode, got %d", env.Op)
	}
	var hello helloPayload
	if len(env.D) > 0 {
		if err := json.Unmarshal(env.D, &hello); err != nil {
			return helloPayload{}, fmt.Errorf("decode hello payload: %w", err)
		}
	}
	if hello.HeartbeatInterval == 0 {
		hello.HeartbeatInterval = defaultHeartbeatMsAbs
	}
	return hello, nil
}

func (c *Consumer) identifyOrResume(conn *websocket.Conn) error {
	c.mu.Lock()
	sessionID := c.sessionID
	var seq int64
	if c.sequence != nil {
		seq = *c.sequence
	}
	c.mu.Unlock()

	if sessionID != "" {
		payload := envelope{Op: OpResume, D: mustMarshal(resumeData{Token: c.cfg.Token, SessionID: sessionID, Seq: seq})}
		return conn.WriteJSON(payload)
	}
	payload := envelope{Op: OpIdentify, D: mustMarshal(identifyData{
		Token:   c.cfg.Token,
		Intents: c.cfg.Intents,
		Properties: identifyProperties{
			OS:      "linux",
			Browser: "chatsync",
			Device:  "chatsync",
		},
	})}
	return conn.WriteJSON(payload)
}

func (c *Consumer) runHeartbeat(ctx context.Context, conn *websocket.Conn, interval time.Duration) {
	if interval <= 0 {
		interval = defaultHeartbeatMsAbs * time.Millisecond
	}
	send := func() error {
		c.mu.Lock()
		seq := c.sequence
		c.mu.Unlock()
		return conn.WriteJSON(heartbeatData{Op: OpHeartbeat, D: seq})
	}
	if err := send(); err != nil {
		c.logger.Warn("initial heartbeat failed", slog.Any("error", err))
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := send(); err != nil {
				c.logger.Warn("heartbeat failed", slog.Any("error", err))
				return
			}
		}
	}
}

func (c *Consumer) handleDispatch(ctx context.Context, env envelope) {
	switch env.T {
	case "READY":
		var ready readyPayload
		if err := json.Unmarshal(env.D, &ready); err != nil {
			c.logger.Warn("failed to decode READY", slog.Any("error", err))
			return
		}
		c.mu.Lock()
		c.sessionID = ready.SessionID
		c.resumeGatewayURL = ready.ResumeGatewayURL
		c.botUserID = ready.User.ID
		c.mu.Unlock()
	case "MESSAGE_CREATE":
		c.handleMessageEvent(ctx, "create", env.D)
	case "MESSAGE_UPDATE":
		c.handleMessageEvent(ctx, "update", env.D)
	case "MESSAGE_DELETE":
		c.handleMessageEvent(ctx, "delete", env.D)
	case "MESSAGE_REACTION_ADD":
		c.handleReactionEvent(ctx, "add", env.D)
	case "MESSAGE_REACTION_REMOVE":
		c.handleReactionEvent(ctx, "remove", env.D)
	}
}

func (c *Consumer) botUser() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.botUserID
}

func (c *Consumer) handleMessageEvent(ctx context.Context, verb string, raw json.RawMessage) {
	var event messageEventPayload
	if err := json.Unmarshal(raw, &event); err != nil {
		c.logger.Warn("failed to decode message event", slog.String("verb", verb), slog.Any("error", err))
		return
	}
	if event.ID == "" || event.ChannelID == "" || (verb != "delete" && event.Content == "") {
		return
	}
	if event.Author.Bot || (c.botUser() != "" && event.Author.ID == c.botUser()) {
		return
	}

	links, err := c.links.FindActiveByExternalChannel(ctx, providerTag, event.ChannelID)
	if err != nil {
		c.logger.Error("failed to resolve channel links", slog.Any("error", err))
		return
	}

	content := withAttachments(event.Content, normalizeAttachments(event.Attachments))
	author := discordUser{ID: event.Author.ID, Username: event.Author.Username, GlobalName: event.Author.GlobalName, Discriminator: event.Author.Discriminator, Avatar: event.Author.Avatar}
	dedupeKey := fmt.Sprintf("discord:gateway:%s:%s", verb, event.ID)

	for _, lwc := range links {
		if !lwc.Link.EligibleIngress() {
			continue
		}
		var (
			result chatsync.Result
			err    error
		)
		switch verb {
		case "create":
			result, err = c.worker.IngestMessageCreate(ctx, chatsync.IngressCreateInput{
				SyncConnectionID:          lwc.SyncConnectionID,
				ExternalChannelID:         event.ChannelID,
				ExternalMessageID:         event.ID,
				Content:                   content,
				ExternalAuthorID:          author.ID,
				ExternalAuthorDisplayName: displayName(author),
				ExternalAuthorAvatarURL:   avatarURL(author),
				DedupeKey:                 dedupeKey,
			})
		case "update":
			result, err = c.worker.IngestMessageUpdate(ctx, chatsync.IngressUpdateInput{
				SyncConnectionID:  lwc.SyncConnectionID,
				ExternalChannelID: event.ChannelID,
				ExternalMessageID: event.ID,
				Content:           content,
				DedupeKey:         dedupeKey,
			})
		case "delete":
			result, err = c.worker.IngestMessageDelete(ctx, chatsync.IngressDeleteInput{
				SyncConnectionID:  lwc.SyncConnectionID,
				ExternalChannelID: event.ChannelID,
				ExternalMessageID: event.ID,
				DedupeKey:         dedupeKey,
			})
		}
		if err != nil {
			c.logger.Error("ingress verb failed", slog.String("verb", verb), slog.String("sync_connection_id", lwc.SyncConnectionID), slog.Any("error", err))
			continue
		}
		c.logger.Debug("ingress verb processed", slog.String("verb", verb), slog.String("outcome", string(result.Outcome)))
	}
}

func (c *Consumer) handleReactionEvent(ctx context.Context, verb string, raw json.RawMessage) {
	var event reactionEventPayload
	if err := json.Unmarshal(raw, &event); err != nil {
		c.logger.Warn("failed to decode reaction event", slog.String("verb", verb), slog.Any("error", err))
		return
	}
	if event.MessageID == "" || event.ChannelID == "" {
		return
	}
	author := reactionAuthor(event)
	if author.ID != "" && c.botUser() != "" && author.ID == c.botUser() {
		return
	}

	links, err := c.links.FindActiveByExternalChannel(ctx, providerTag, event.ChannelID)
	if err != nil {
		c.logger.Error("failed to resolve channel links", slog.Any("error", err))
		return
	}

	dedupeKey := fmt.Sprintf("discord:gateway:reaction:%s:%s", verb, event.MessageID)
	for _, lwc := range links {
		if !lwc.Link.EligibleIngress() {
			continue
		}
		in := chatsync.ReactionInput{
			SyncConnectionID:  lwc.SyncConnectionID,
			ExternalChannelID: event.ChannelID,
			ExternalMessageID: event.MessageID,
			Emoji:             event.Emoji.Name,
			ExternalUserID:    author.ID,
			DisplayName:       displayName(author),
			AvatarURL:         avatarURL(author),
			DedupeKey:         dedupeKey,
		}
		var (
			result chatsync.Result
			verbErr error
		)
		if verb == "add" {
			result, verbErr = c.worker.IngestReactionAdd(ctx, in)
		} else {
			result, verbErr = c.worker.IngestReactionRemove(ctx, in)
		}
		if verbErr != nil {
			c.logger.Error("reaction ingress failed", slog.String("verb", verb), slog.String("sync_connection_id", lwc.SyncConnectionID), slog.Any("error", verbErr))
			continue
		}
		c.logger.Debug("reaction ingress processed", slog.String("verb", verb), slog.String("outcome", string(result.Outcome)))
	}
}

// withAttachments appends normalized attachment URLs to the message body,
// since the domain model carries a single plain-text content field and
// attachments are not translated into any richer structure.
func withAttachments(content string, attachments []Attachment) string {
	if len(attachments) == 0 {
		return content
	}
	var b strings.Builder
	b.WriteString(content)
	for _, a := range attachments {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(a.URL)
	}
	return b.String()
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

const providerTag chatsync.Provider = "discord"
