// Package api exposes the administrative HTTP API: a public health probe and
// a bearer-authenticated trigger that scripts channel+session creation.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/lcances/opencode-discord-bot/internal/config"
	"github.com/lcances/opencode-discord-bot/internal/discord"
)

// Trigger is the bot surface the API needs.
type Trigger interface {
	Ready() bool
	CreateSessionChannel(ctx context.Context, channelName, prompt, category string) (*discord.TriggerResult, error)
}

// Server is the administrative HTTP server.
type Server struct {
	cfg  config.APIConfig
	bot  Trigger
	http *http.Server
}

type triggerRequest struct {
	ChannelName string `json:"channel_name"`
	Prompt      string `json:"prompt"`
	Category    string `json:"category,omitempty"`
}

type triggerResponse struct {
	ChannelID   string `json:"channel_id"`
	ChannelName string `json:"channel_name"`
	SessionID   string `json:"session_id"`
	Error       string `json:"error,omitempty"`
}

// NewServer creates the API server without listening.
func NewServer(cfg config.APIConfig, bot Trigger) *Server {
	s := &Server{cfg: cfg, bot: bot}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/trigger", s.withAuth(s.handleTrigger))
	s.http = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the routed handler (used by tests).
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	if s.cfg.SecretKey == "" {
		slog.Warn("API server started WITHOUT a secret key — all requests are accepted. Set api.secretKey for production use.")
	}
	go func() {
		slog.Info("API server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server failed", "error", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// withAuth enforces the bearer secret. An empty configured secret disables
// the check, mirroring the original deployment behavior.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.SecretKey != "" {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				slog.Warn("Unauthorized API request", "path", r.URL.Path, "remote", r.RemoteAddr)
				http.Error(w, "Missing Bearer token", http.StatusUnauthorized)
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if token != s.cfg.SecretKey {
				slog.Warn("Forbidden API request", "path", r.URL.Path, "remote", r.RemoteAddr)
				http.Error(w, "Invalid API key", http.StatusForbidden)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if !s.bot.Ready() {
		http.Error(w, "Discord bot is not ready yet", http.StatusServiceUnavailable)
		return
	}

	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ChannelName) == "" {
		http.Error(w, "'channel_name' (string) is required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		http.Error(w, "'prompt' (string) is required", http.StatusBadRequest)
		return
	}

	slog.Info("API trigger",
		"channel_name", req.ChannelName,
		"category", req.Category,
		"prompt", previewOf(req.Prompt))

	result, err := s.bot.CreateSessionChannel(r.Context(), req.ChannelName, req.Prompt, req.Category)
	if err != nil {
		switch {
		case errors.Is(err, discord.ErrNotReady), errors.Is(err, discord.ErrNoGuildAvailable):
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
		default:
			slog.Error("Trigger failed", "error", err)
			http.Error(w, fmt.Sprintf("Internal error: %v", err), http.StatusInternalServerError)
		}
		return
	}

	resp := triggerResponse{
		ChannelID:   result.ChannelID,
		ChannelName: result.ChannelName,
		SessionID:   result.SessionID,
	}
	if result.SendErr != nil {
		// Channel and session were created; report them along with the
		// send failure instead of discarding the state.
		resp.Error = result.SendErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func previewOf(s string) string {
	runes := []rune(s)
	if len(runes) <= 80 {
		return s
	}
	return string(runes[:80])
}
