// Package timeline persists a local audit log of relay exchanges.
package timeline

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Service is the sqlite-backed exchange log. A nil *Service is a valid no-op
// receiver so callers do not have to branch on whether the log is enabled.
type Service struct {
	db *sql.DB
}

// NewService opens (or creates) the exchange log at dbPath.
func NewService(dbPath string) (*Service, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open timeline db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Service{db: db}, nil
}

// Close closes the underlying database.
func (s *Service) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// RecordExchange appends one exchange. Errors are returned so callers can
// log them; a recording failure never affects message delivery.
func (s *Service) RecordExchange(ex Exchange) error {
	if s == nil {
		return nil
	}
	if ex.CreatedAt.IsZero() {
		ex.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO exchanges (trace_id, source, channel_id, channel_name, session_id, status, prompt, reply, error_text, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ex.TraceID, ex.Source, ex.ChannelID, ex.ChannelName, ex.SessionID,
		ex.Status, ex.Prompt, ex.Reply, ex.ErrorText, ex.DurationMs, ex.CreatedAt)
	if err != nil {
		return fmt.Errorf("record exchange: %w", err)
	}
	return nil
}

// RecentExchanges returns up to limit exchanges, newest first.
func (s *Service) RecentExchanges(limit int) ([]Exchange, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, trace_id, source, channel_id, channel_name, session_id, status, prompt, reply, error_text, duration_ms, created_at
		FROM exchanges ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list exchanges: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var ex Exchange
		var channelName, prompt, reply, errText sql.NullString
		if err := rows.Scan(&ex.ID, &ex.TraceID, &ex.Source, &ex.ChannelID, &channelName,
			&ex.SessionID, &ex.Status, &prompt, &reply, &errText, &ex.DurationMs, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		ex.ChannelName = channelName.String
		ex.Prompt = prompt.String
		ex.Reply = reply.String
		ex.ErrorText = errText.String
		out = append(out, ex)
	}
	return out, rows.Err()
}

// CountExchanges returns the total number of recorded exchanges for a
// channel. An empty channelID counts everything.
func (s *Service) CountExchanges(channelID string) (int, error) {
	if s == nil {
		return 0, nil
	}
	var count int
	var err error
	if channelID == "" {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM exchanges`).Scan(&count)
	} else {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM exchanges WHERE channel_id = ?`, channelID).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count exchanges: %w", err)
	}
	return count, nil
}
