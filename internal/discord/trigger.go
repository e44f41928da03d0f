package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lcances/opencode-discord-bot/internal/opencode"
	"github.com/lcances/opencode-discord-bot/internal/timeline"
)

// Trigger preconditions.
var (
	// ErrNotReady means the gateway handshake has not finished yet.
	ErrNotReady = errors.New("discord bot is not ready yet")
	// ErrNoGuildAvailable means the bot belongs to zero guilds.
	ErrNoGuildAvailable = errors.New("bot is not a member of any guild")
)

// TriggerResult is the outcome of a programmatic channel+session creation.
// SendErr carries a message-send failure; channel and session creation are
// never rolled back, so the ids are valid even then.
type TriggerResult struct {
	ChannelID   string
	ChannelName string
	SessionID   string
	SendErr     error
}

// CreateSessionChannel creates a text channel (optionally under a named
// category, created on demand), creates and binds an opencode session, and
// performs one relay round-trip with the given prompt.
func (b *Bot) CreateSessionChannel(ctx context.Context, channelName, prompt, category string) (*TriggerResult, error) {
	if !b.Ready() {
		return nil, ErrNotReady
	}
	guildID, ok := b.firstGuildID()
	if !ok {
		return nil, ErrNoGuildAvailable
	}

	parentID := ""
	if category != "" {
		id, err := b.findCategory(guildID, category)
		if err != nil {
			return nil, fmt.Errorf("resolve category %q: %w", category, err)
		}
		parentID = id
	}

	channelID, resolvedName, err := b.createChannel(guildID, channelName, parentID)
	if err != nil {
		return nil, fmt.Errorf("create channel %q: %w", channelName, err)
	}

	session, err := b.backend.CreateSession(ctx, "discord-"+resolvedName)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := b.sessions.Bind(channelID, session.ID); err != nil {
		// The channel was just created, so a collision means a concurrent
		// trigger on the same id. Drop the session we made and surface it.
		if delErr := b.backend.DeleteSession(ctx, session.ID); delErr != nil {
			slog.Warn("Failed to delete orphaned session", "session_id", session.ID, "error", delErr)
		}
		return nil, err
	}

	result := &TriggerResult{
		ChannelID:   channelID,
		ChannelName: resolvedName,
		SessionID:   session.ID,
	}
	slog.Info("Trigger created channel",
		"channel_id", channelID,
		"channel_name", resolvedName,
		"session_id", session.ID)

	traceID := uuid.NewString()
	start := time.Now()
	resp, err := b.backend.SendMessage(ctx, session.ID, prompt, b.sendOpts)
	if err != nil {
		slog.Error("Trigger prompt failed", "trace_id", traceID, "session_id", session.ID, "error", err)
		b.recordExchange(timeline.Exchange{
			TraceID:     traceID,
			Source:      timeline.SourceTrigger,
			ChannelID:   channelID,
			ChannelName: resolvedName,
			SessionID:   session.ID,
			Status:      timeline.StatusError,
			Prompt:      prompt,
			ErrorText:   err.Error(),
			DurationMs:  time.Since(start).Milliseconds(),
		})
		result.SendErr = err
		return result, nil
	}

	replyText := opencode.ExtractText(resp)
	b.recordExchange(timeline.Exchange{
		TraceID:     traceID,
		Source:      timeline.SourceTrigger,
		ChannelID:   channelID,
		ChannelName: resolvedName,
		SessionID:   session.ID,
		Status:      timeline.StatusOK,
		Prompt:      prompt,
		Reply:       replyText,
		DurationMs:  time.Since(start).Milliseconds(),
	})
	for _, chunk := range ChunkMessage(replyText, MaxMessageLen) {
		b.reply(channelID, chunk)
	}
	return result, nil
}
