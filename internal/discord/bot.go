// Package discord bridges Discord channels to opencode sessions. Each
// channel that starts a session gets its own session id; plain messages in
// that channel are forwarded to opencode and the reply is posted back.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/lcances/opencode-discord-bot/internal/config"
	"github.com/lcances/opencode-discord-bot/internal/opencode"
	"github.com/lcances/opencode-discord-bot/internal/registry"
	"github.com/lcances/opencode-discord-bot/internal/timeline"
)

// Bot owns the Discord gateway connection, the command surface and the
// message relay.
type Bot struct {
	cfg      config.DiscordConfig
	backend  *opencode.Client
	sessions *registry.Registry
	timeline *timeline.Service
	sendOpts opencode.SendOptions

	dg    *discordgo.Session
	ready atomic.Bool

	// Seams over the Discord REST surface, overridable in tests.
	sendMessage   func(channelID, content string) error
	sendTyping    func(channelID string)
	channelName   func(channelID string) string
	firstGuildID  func() (string, bool)
	createChannel func(guildID, name, parentID string) (id string, resolvedName string, err error)
	findCategory  func(guildID, name string) (string, error)
}

// Options configures a Bot.
type Options struct {
	Config   config.DiscordConfig
	Backend  *opencode.Client
	Sessions *registry.Registry
	// Timeline may be nil; recording is then skipped.
	Timeline *timeline.Service
	// Send carries the model/agent passed through on every relay.
	Send opencode.SendOptions
}

// New creates the bot and its gateway session without connecting.
func New(opts Options) (*Bot, error) {
	dg, err := discordgo.New("Bot " + opts.Config.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	b := &Bot{
		cfg:      opts.Config,
		backend:  opts.Backend,
		sessions: opts.Sessions,
		timeline: opts.Timeline,
		sendOpts: opts.Send,
		dg:       dg,
	}
	b.sendMessage = b.restSendMessage
	b.sendTyping = b.restSendTyping
	b.channelName = b.restChannelName
	b.firstGuildID = b.stateFirstGuildID
	b.createChannel = b.restCreateChannel
	b.findCategory = b.restFindCategory

	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onMessageCreate)
	return b, nil
}

// Start opens the gateway connection. The initial handshake completes
// asynchronously; Ready reports when it has.
func (b *Bot) Start() error {
	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	return nil
}

// Ready reports whether the gateway handshake has finished.
func (b *Bot) Ready() bool { return b.ready.Load() }

// Close closes the gateway connection. No further events are delivered.
func (b *Bot) Close() error {
	b.ready.Store(false)
	return b.dg.Close()
}

// CleanupSessions best-effort deletes every registered backend session.
// Called during shutdown; failures are logged, never returned.
func (b *Bot) CleanupSessions(ctx context.Context) {
	for _, binding := range b.sessions.All() {
		b.sessions.Unbind(binding.ChannelID)
		if err := b.backend.DeleteSession(ctx, binding.SessionID); err != nil {
			slog.Warn("Failed to cleanup session", "session_id", binding.SessionID, "error", err)
			continue
		}
		slog.Info("Cleaned up session", "session_id", binding.SessionID)
	}
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.ready.Store(true)
	names := make([]string, 0, len(r.Guilds))
	for _, g := range r.Guilds {
		names = append(names, g.Name)
	}
	slog.Info("Discord bot connected",
		"user", r.User.Username,
		"id", r.User.ID,
		"guilds", strings.Join(names, ", "))
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}
	// Guild text channels only; DMs are ignored.
	ch, err := s.State.Channel(m.ChannelID)
	if err != nil {
		if ch, err = s.Channel(m.ChannelID); err != nil {
			slog.Debug("Dropping message in unresolvable channel", "channel_id", m.ChannelID, "error", err)
			return
		}
	}
	if ch.Type != discordgo.ChannelTypeGuildText {
		return
	}

	b.handleMessage(m.ChannelID, ch.Name, m.Author.Username, m.Content)
}

// handleMessage routes one inbound guild message to the command interface or
// the relay. Split from the discordgo handler so tests can drive it directly.
func (b *Bot) handleMessage(channelID, channelName, author, content string) {
	text := strings.TrimSpace(content)
	if text == "" {
		return
	}
	if !b.cfg.ChannelAllowed(channelName) {
		return
	}

	if strings.HasPrefix(text, b.cfg.Prefix) {
		b.handleCommand(channelID, channelName, strings.TrimPrefix(text, b.cfg.Prefix))
		return
	}

	b.relay(channelID, channelName, author, text)
}

// relay forwards text to the channel's bound session and posts the chunked
// reply. A backend failure produces a single error message and nothing else.
func (b *Bot) relay(channelID, channelName, author, text string) {
	sessionID, ok := b.sessions.Lookup(channelID)
	if !ok {
		return
	}

	slog.Info("Relaying message",
		"channel", channelName,
		"author", author,
		"preview", truncate(text, 80))

	traceID := uuid.NewString()
	b.sendTyping(channelID)

	start := time.Now()
	resp, err := b.backend.SendMessage(context.Background(), sessionID, text, b.sendOpts)
	if err != nil {
		slog.Error("OpenCode request failed", "trace_id", traceID, "session_id", sessionID, "error", err)
		b.recordExchange(timeline.Exchange{
			TraceID:     traceID,
			Source:      timeline.SourceRelay,
			ChannelID:   channelID,
			ChannelName: channelName,
			SessionID:   sessionID,
			Status:      timeline.StatusError,
			Prompt:      text,
			ErrorText:   err.Error(),
			DurationMs:  time.Since(start).Milliseconds(),
		})
		b.reply(channelID, fmt.Sprintf("⚠️ OpenCode error: %v", err))
		return
	}

	replyText := opencode.ExtractText(resp)
	b.recordExchange(timeline.Exchange{
		TraceID:     traceID,
		Source:      timeline.SourceRelay,
		ChannelID:   channelID,
		ChannelName: channelName,
		SessionID:   sessionID,
		Status:      timeline.StatusOK,
		Prompt:      text,
		Reply:       replyText,
		DurationMs:  time.Since(start).Milliseconds(),
	})

	for _, chunk := range ChunkMessage(replyText, MaxMessageLen) {
		b.reply(channelID, chunk)
	}
}

func (b *Bot) reply(channelID, content string) {
	if err := b.sendMessage(channelID, content); err != nil {
		slog.Error("Discord send failed", "channel_id", channelID, "error", err)
	}
}

func (b *Bot) recordExchange(ex timeline.Exchange) {
	if err := b.timeline.RecordExchange(ex); err != nil {
		slog.Warn("Timeline record failed", "trace_id", ex.TraceID, "error", err)
	}
}

// --- Discord REST defaults ---

func (b *Bot) restSendMessage(channelID, content string) error {
	_, err := b.dg.ChannelMessageSend(channelID, content)
	return err
}

func (b *Bot) restSendTyping(channelID string) {
	if err := b.dg.ChannelTyping(channelID); err != nil {
		slog.Debug("Typing indicator failed", "channel_id", channelID, "error", err)
	}
}

func (b *Bot) restChannelName(channelID string) string {
	ch, err := b.dg.State.Channel(channelID)
	if err != nil {
		if ch, err = b.dg.Channel(channelID); err != nil {
			return channelID
		}
	}
	return ch.Name
}

func (b *Bot) stateFirstGuildID() (string, bool) {
	guilds := b.dg.State.Guilds
	if len(guilds) == 0 {
		return "", false
	}
	return guilds[0].ID, true
}

func (b *Bot) restCreateChannel(guildID, name, parentID string) (string, string, error) {
	ch, err := b.dg.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:     name,
		Type:     discordgo.ChannelTypeGuildText,
		ParentID: parentID,
	})
	if err != nil {
		return "", "", err
	}
	return ch.ID, ch.Name, nil
}

// restFindCategory resolves a category by name, creating it when absent.
func (b *Bot) restFindCategory(guildID, name string) (string, error) {
	channels, err := b.dg.GuildChannels(guildID)
	if err != nil {
		return "", err
	}
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildCategory && strings.EqualFold(ch.Name, name) {
			return ch.ID, nil
		}
	}
	created, err := b.dg.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name: name,
		Type: discordgo.ChannelTypeGuildCategory,
	})
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
