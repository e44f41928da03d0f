// Package opencode manages a local opencode serve process and talks to its
// REST API (https://opencode.ai/docs/server/).
package opencode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// NoTextPlaceholder is returned by ExtractText when a response carries no
// text parts at all.
const NoTextPlaceholder = "(no text in response)"

// Client is a thin HTTP client for the opencode serve API. It is safe for
// concurrent use; callers own retry policy.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
}

// ClientOptions configures a Client.
type ClientOptions struct {
	Hostname string
	Port     int
	Username string
	Password string
	// Timeout is the overall per-request ceiling. Message sends block until
	// the backend finishes, so this is deliberately long.
	Timeout time.Duration
}

// NewClient creates a client for http://hostname:port.
func NewClient(opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:  fmt.Sprintf("http://%s:%d", opts.Hostname, opts.Port),
		username: opts.Username,
		password: opts.Password,
		http:     &http.Client{Timeout: timeout},
	}
}

// NewClientForURL creates a client against an explicit base URL.
func NewClientForURL(base string) *Client {
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: 120 * time.Second},
	}
}

// BaseURL returns the server base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Close releases idle connections in the underlying pool.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// Health calls GET /global/health.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, "/global/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSession calls POST /session. Every call creates a new session.
func (c *Client) CreateSession(ctx context.Context, title string) (*Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodPost, "/session", createSessionBody{Title: title}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSessions calls GET /session.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	var out []Session
	if err := c.do(ctx, http.MethodGet, "/session", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSession calls GET /session/{id}.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodGet, "/session/"+url.PathEscape(sessionID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteSession calls DELETE /session/{id}. Deleting an unknown id surfaces
// a *BackendError.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/session/"+url.PathEscape(sessionID), nil, nil)
}

// AbortSession calls POST /session/{id}/abort.
func (c *Client) AbortSession(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, "/session/"+url.PathEscape(sessionID)+"/abort", nil, nil)
}

// SendOptions carries optional model/agent selection for message sends.
type SendOptions struct {
	Model string
	Agent string
}

// SendMessage calls POST /session/{id}/message and blocks until the backend
// has produced the full response. This is the dominant latency-bound call;
// it can take minutes.
func (c *Client) SendMessage(ctx context.Context, sessionID, text string, opts SendOptions) (*MessageResponse, error) {
	body := promptBody{
		Parts: []Part{{Type: PartTypeText, Text: text}},
		Model: opts.Model,
		Agent: opts.Agent,
	}
	var out MessageResponse
	if err := c.do(ctx, http.MethodPost, "/session/"+url.PathEscape(sessionID)+"/message", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendMessageAsync calls POST /session/{id}/prompt_async. Fire-and-forget:
// no response correlation is provided.
func (c *Client) SendMessageAsync(ctx context.Context, sessionID, text string, opts SendOptions) error {
	body := promptBody{
		Parts: []Part{{Type: PartTypeText, Text: text}},
		Model: opts.Model,
		Agent: opts.Agent,
	}
	return c.do(ctx, http.MethodPost, "/session/"+url.PathEscape(sessionID)+"/prompt_async", body, nil)
}

// ListMessages calls GET /session/{id}/message. A limit <= 0 means no limit.
func (c *Client) ListMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	path := "/session/" + url.PathEscape(sessionID) + "/message"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []Message
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMessage calls GET /session/{id}/message/{messageId}.
func (c *Client) GetMessage(ctx context.Context, sessionID, messageID string) (*Message, error) {
	path := "/session/" + url.PathEscape(sessionID) + "/message/" + url.PathEscape(messageID)
	var out Message
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExtractText pulls the user-visible reply out of a message response: text
// parts concatenated in order, joined by newline, trimmed. A response with
// no text parts yields NoTextPlaceholder.
func ExtractText(resp *MessageResponse) string {
	if resp == nil {
		return NoTextPlaceholder
	}
	var texts []string
	for _, part := range resp.Parts {
		if part.Type == PartTypeText {
			texts = append(texts, part.Text)
		}
	}
	joined := strings.TrimSpace(strings.Join(texts, "\n"))
	if joined == "" {
		return NoTextPlaceholder
	}
	return joined
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" && c.password != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &BackendError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
