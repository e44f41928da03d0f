package opencode

// Part types as they appear in message responses. Only text parts carry
// user-visible output; everything else is tool traffic.
const (
	PartTypeText       = "text"
	PartTypeToolCall   = "tool"
	PartTypeToolResult = "tool-result"
)

// Session is a backend conversational context.
type Session struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// Part is one segment of a message. The Type field discriminates; fields not
// used by a given type are left zero.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	// Tool carries the tool name for tool/tool-result parts.
	Tool string `json:"tool,omitempty"`
}

// MessageInfo is the message metadata returned alongside parts.
type MessageInfo struct {
	ID        string `json:"id,omitempty"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"sessionID,omitempty"`
}

// MessageResponse is the response to a synchronous message send:
// { info: Message, parts: Part[] }.
type MessageResponse struct {
	Info  MessageInfo `json:"info"`
	Parts []Part      `json:"parts"`
}

// Message is a stored message returned by the message listing endpoints.
type Message struct {
	Info  MessageInfo `json:"info"`
	Parts []Part      `json:"parts"`
}

// Health is the body of GET /global/health.
type Health struct {
	Healthy bool `json:"healthy"`
}

// promptBody is the request body for the sync and async message endpoints.
type promptBody struct {
	Parts []Part `json:"parts"`
	Model string `json:"model,omitempty"`
	Agent string `json:"agent,omitempty"`
}

// createSessionBody is the request body for POST /session.
type createSessionBody struct {
	Title string `json:"title,omitempty"`
}
