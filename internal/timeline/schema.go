package timeline

import "time"

// Schema is the exchange log schema, applied on open.
const Schema = `
CREATE TABLE IF NOT EXISTS exchanges (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	trace_id TEXT NOT NULL,
	source TEXT NOT NULL,
	channel_id TEXT NOT NULL,
	channel_name TEXT,
	session_id TEXT NOT NULL,
	status TEXT NOT NULL,
	prompt TEXT,
	reply TEXT,
	error_text TEXT,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_exchanges_trace ON exchanges(trace_id);
CREATE INDEX IF NOT EXISTS idx_exchanges_channel ON exchanges(channel_id);
CREATE INDEX IF NOT EXISTS idx_exchanges_session ON exchanges(session_id);
`

// Exchange sources.
const (
	SourceRelay   = "relay"
	SourceTrigger = "trigger"
)

// Exchange statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Exchange is one recorded relay round-trip.
type Exchange struct {
	ID          int64     `json:"id"`
	TraceID     string    `json:"trace_id"`
	Source      string    `json:"source"`
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name,omitempty"`
	SessionID   string    `json:"session_id"`
	Status      string    `json:"status"`
	Prompt      string    `json:"prompt,omitempty"`
	Reply       string    `json:"reply,omitempty"`
	ErrorText   string    `json:"error_text,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}
