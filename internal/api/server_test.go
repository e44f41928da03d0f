package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/lcances/opencode-discord-bot/internal/config"
	"github.com/lcances/opencode-discord-bot/internal/discord"
)

type fakeTrigger struct {
	ready   bool
	result  *discord.TriggerResult
	err     error
	gotName string
	gotCat  string
}

func (f *fakeTrigger) Ready() bool { return f.ready }

func (f *fakeTrigger) CreateSessionChannel(ctx context.Context, channelName, prompt, category string) (*discord.TriggerResult, error) {
	f.gotName = channelName
	f.gotCat = category
	return f.result, f.err
}

func newTestServer(secret string, bot *fakeTrigger) *Server {
	return NewServer(config.APIConfig{Host: "127.0.0.1", Port: 0, SecretKey: secret}, bot)
}

func doTrigger(t *testing.T, s *Server, auth, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/trigger", strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer("secret", &fakeTrigger{})
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]bool
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || !body["ok"] {
		t.Fatalf("unexpected health body: %s", rec.Body.String())
	}
}

func TestTriggerRequiresBearerToken(t *testing.T) {
	s := newTestServer("secret", &fakeTrigger{ready: true})

	if rec := doTrigger(t, s, "", `{}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing header: expected 401, got %d", rec.Code)
	}
	if rec := doTrigger(t, s, "Basic abc", `{}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong scheme: expected 401, got %d", rec.Code)
	}
	if rec := doTrigger(t, s, "Bearer wrong", `{}`); rec.Code != http.StatusForbidden {
		t.Errorf("wrong key: expected 403, got %d", rec.Code)
	}
}

func TestTriggerEmptySecretDisablesAuth(t *testing.T) {
	bot := &fakeTrigger{ready: true, result: &discord.TriggerResult{ChannelID: "c1", ChannelName: "n", SessionID: "s1"}}
	s := newTestServer("", bot)

	rec := doTrigger(t, s, "", `{"channel_name":"n","prompt":"p"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 without auth, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestTriggerValidatesBody(t *testing.T) {
	s := newTestServer("secret", &fakeTrigger{ready: true})
	auth := "Bearer secret"

	if rec := doTrigger(t, s, auth, `{not json`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad json: expected 400, got %d", rec.Code)
	}
	if rec := doTrigger(t, s, auth, `{"prompt":"p"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing channel_name: expected 400, got %d", rec.Code)
	}
	if rec := doTrigger(t, s, auth, `{"channel_name":"n"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing prompt: expected 400, got %d", rec.Code)
	}
}

func TestTriggerNotReadyIs503(t *testing.T) {
	s := newTestServer("secret", &fakeTrigger{ready: false})

	rec := doTrigger(t, s, "Bearer secret", `{"channel_name":"n","prompt":"p"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestTriggerErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"no guild is 503", discord.ErrNoGuildAvailable, http.StatusServiceUnavailable},
		{"not ready is 503", discord.ErrNotReady, http.StatusServiceUnavailable},
		{"other errors are 500", errors.New("discord exploded"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer("secret", &fakeTrigger{ready: true, err: tt.err})
			rec := doTrigger(t, s, "Bearer secret", `{"channel_name":"n","prompt":"p"}`)
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestTriggerSuccess(t *testing.T) {
	bot := &fakeTrigger{
		ready:  true,
		result: &discord.TriggerResult{ChannelID: "chan-9", ChannelName: "task-9", SessionID: "sess-9"},
	}
	s := newTestServer("secret", bot)

	rec := doTrigger(t, s, "Bearer secret", `{"channel_name":"task-9","prompt":"hello","category":"bots"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if bot.gotName != "task-9" || bot.gotCat != "bots" {
		t.Errorf("request fields not forwarded: %q / %q", bot.gotName, bot.gotCat)
	}

	var resp triggerResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.ChannelID != "chan-9" || resp.SessionID != "sess-9" || resp.Error != "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestPreviewOfKeepsRuneBoundaries(t *testing.T) {
	text := strings.Repeat("é", 100)
	got := previewOf(text)
	if n := utf8.RuneCountInString(got); n != 80 || !utf8.ValidString(got) {
		t.Fatalf("expected an 80-rune valid preview, got %d runes", n)
	}
	if got := previewOf("short"); got != "short" {
		t.Fatalf("short input must pass through, got %q", got)
	}
}

func TestTriggerSendFailureStillSucceeds(t *testing.T) {
	bot := &fakeTrigger{
		ready: true,
		result: &discord.TriggerResult{
			ChannelID:   "chan-9",
			ChannelName: "task-9",
			SessionID:   "sess-9",
			SendErr:     errors.New("backend timeout"),
		},
	}
	s := newTestServer("secret", bot)

	rec := doTrigger(t, s, "Bearer secret", `{"channel_name":"task-9","prompt":"hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 despite send failure, got %d", rec.Code)
	}
	var resp triggerResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Error != "backend timeout" || resp.SessionID != "sess-9" {
		t.Fatalf("expected ids plus error, got %+v", resp)
	}
}
