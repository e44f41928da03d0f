package opencode

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name  string
		parts []Part
		want  string
	}{
		{
			name: "text parts joined in order",
			parts: []Part{
				{Type: PartTypeText, Text: "a"},
				{Type: PartTypeToolCall, Tool: "bash"},
				{Type: PartTypeText, Text: "b"},
			},
			want: "a\nb",
		},
		{
			name:  "no parts yields placeholder",
			parts: []Part{},
			want:  NoTextPlaceholder,
		},
		{
			name:  "only tool parts yields placeholder",
			parts: []Part{{Type: PartTypeToolCall}, {Type: PartTypeToolResult}},
			want:  NoTextPlaceholder,
		},
		{
			name:  "whitespace-only text yields placeholder",
			parts: []Part{{Type: PartTypeText, Text: "  \n "}},
			want:  NoTextPlaceholder,
		},
		{
			name:  "surrounding whitespace trimmed",
			parts: []Part{{Type: PartTypeText, Text: "  hello  "}},
			want:  "hello",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractText(&MessageResponse{Parts: tt.parts})
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}

	if got := ExtractText(nil); got != NoTextPlaceholder {
		t.Errorf("nil response: expected placeholder, got %q", got)
	}
}

func TestCreateSessionAndSendMessage(t *testing.T) {
	var sentBody promptBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "POST /session":
			var body createSessionBody
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				t.Errorf("bad session body: %v", err)
			}
			if body.Title != "discord-demo" {
				t.Errorf("expected title discord-demo, got %q", body.Title)
			}
			json.NewEncoder(w).Encode(Session{ID: "sess-abc123", Title: body.Title})
		case "POST /session/sess-abc123/message":
			if err := json.NewDecoder(r.Body).Decode(&sentBody); err != nil {
				t.Errorf("bad message body: %v", err)
			}
			json.NewEncoder(w).Encode(MessageResponse{
				Parts: []Part{{Type: PartTypeText, Text: "hi there"}},
			})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClientForURL(srv.URL)
	ctx := context.Background()

	session, err := c.CreateSession(ctx, "discord-demo")
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	if session.ID != "sess-abc123" {
		t.Fatalf("unexpected session id %q", session.ID)
	}

	resp, err := c.SendMessage(ctx, session.ID, "hello", SendOptions{Model: "sonnet"})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if got := ExtractText(resp); got != "hi there" {
		t.Errorf("expected reply 'hi there', got %q", got)
	}
	if len(sentBody.Parts) != 1 || sentBody.Parts[0].Type != PartTypeText || sentBody.Parts[0].Text != "hello" {
		t.Errorf("unexpected prompt parts: %+v", sentBody.Parts)
	}
	if sentBody.Model != "sonnet" {
		t.Errorf("expected model passed through, got %q", sentBody.Model)
	}
}

func TestBackendErrorCarriesStatusAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClientForURL(srv.URL)
	err := c.DeleteSession(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error for unknown session")
	}
	var be *BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected *BackendError, got %T: %v", err, err)
	}
	if be.Status != http.StatusNotFound || be.Body != "session not found" {
		t.Errorf("unexpected backend error: %+v", be)
	}
}

func TestUnreachableServerIsBackendUnavailable(t *testing.T) {
	// A closed server guarantees connection refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClientForURL(srv.URL)
	_, err := c.Health(context.Background())
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestBasicAuthHeaderSent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "hunter2" {
			t.Errorf("missing or wrong basic auth: %q/%q", user, pass)
		}
		json.NewEncoder(w).Encode(Health{Healthy: true})
	}))
	defer srv.Close()

	c := NewClientForURL(srv.URL)
	c.username = "admin"
	c.password = "hunter2"

	health, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("health failed: %v", err)
	}
	if !health.Healthy {
		t.Error("expected healthy")
	}
}

func TestListMessagesAppliesLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/session/s1/message" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("expected limit=5, got %q", got)
		}
		json.NewEncoder(w).Encode([]Message{{Parts: []Part{{Type: PartTypeText, Text: "x"}}}})
	}))
	defer srv.Close()

	c := NewClientForURL(srv.URL)
	msgs, err := c.ListMessages(context.Background(), "s1", 5)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
}
