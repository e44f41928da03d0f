package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lcances/opencode-discord-bot/internal/registry"
)

// handleCommand dispatches "start", "stop" and "status". Unknown commands
// are silently ignored so the prefix stays usable for other bots.
func (b *Bot) handleCommand(channelID, channelName, cmdText string) {
	parts := strings.SplitN(strings.TrimSpace(cmdText), " ", 2)
	command := strings.ToLower(parts[0])
	args := ""
	if len(parts) > 1 {
		args = strings.TrimSpace(parts[1])
	}

	switch command {
	case "start":
		b.cmdStart(channelID, channelName, args)
	case "stop":
		b.cmdStop(channelID)
	case "status":
		b.cmdStatus(channelID)
	}
}

// cmdStart creates a session and binds it to the channel. A channel with an
// active binding keeps it; the user is told to stop first.
func (b *Bot) cmdStart(channelID, channelName, title string) {
	if _, exists := b.sessions.Lookup(channelID); exists {
		b.reply(channelID, "⚠️ A session is already active in this channel. Use `"+b.cfg.Prefix+"stop` first to end it.")
		return
	}

	if title == "" {
		title = "discord-" + channelName
	}

	b.sendTyping(channelID)
	ctx := context.Background()
	session, err := b.backend.CreateSession(ctx, title)
	if err != nil {
		slog.Error("Session create failed", "channel", channelName, "error", err)
		b.reply(channelID, fmt.Sprintf("⚠️ OpenCode error: %v", err))
		return
	}

	if err := b.sessions.Bind(channelID, session.ID); err != nil {
		if errors.Is(err, registry.ErrSessionAlreadyActive) {
			// A concurrent start won the race; drop the session we made.
			if delErr := b.backend.DeleteSession(ctx, session.ID); delErr != nil {
				slog.Warn("Failed to delete orphaned session", "session_id", session.ID, "error", delErr)
			}
			b.reply(channelID, "⚠️ A session is already active in this channel. Use `"+b.cfg.Prefix+"stop` first to end it.")
		}
		return
	}

	slog.Info("Session created", "session_id", session.ID, "channel", channelName)
	b.reply(channelID, fmt.Sprintf(
		"✅ OpenCode session started (`%s…`).\nSend messages normally — I'll forward them to OpenCode.",
		shortID(session.ID)))
}

// cmdStop unbinds the channel and best-effort deletes the backend session.
// Deletion failure is logged, not surfaced beyond the generic ack.
func (b *Bot) cmdStop(channelID string) {
	sessionID, ok := b.sessions.Unbind(channelID)
	if !ok {
		b.reply(channelID, "ℹ️ No active session in this channel.")
		return
	}

	if err := b.backend.DeleteSession(context.Background(), sessionID); err != nil {
		slog.Warn("Failed to delete session", "session_id", sessionID, "error", err)
	}
	b.reply(channelID, "🛑 Session ended.")
}

// cmdStatus lists every active binding with its channel display name.
func (b *Bot) cmdStatus(channelID string) {
	bindings := b.sessions.All()
	if len(bindings) == 0 {
		b.reply(channelID, "ℹ️ No active sessions.")
		return
	}

	lines := []string{"**Active sessions:**"}
	for _, binding := range bindings {
		line := fmt.Sprintf("• #%s → `%s…`", b.channelName(binding.ChannelID), shortID(binding.SessionID))
		if count, err := b.timeline.CountExchanges(binding.ChannelID); err == nil && count > 0 {
			line += fmt.Sprintf(" (%d exchanges)", count)
		}
		lines = append(lines, line)
	}
	b.reply(channelID, strings.Join(lines, "\n"))
}
