package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"support-assistant/pkg/models"
)

func (s *SQLite) AppendLog(ctx context.Context, entry models.LogEntry) error {
	defer s.observe("append_log", time.Now())

	meta := "{}"
	if len(entry.Meta) > 0 {
		encoded, err := json.Marshal(entry.Meta)
		if err != nil {
			return fmt.Errorf("failed to encode log meta: %w", err)
		}
		meta = string(encoded)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO logs (id, conversation_id, level, message, meta, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.ConversationID, string(entry.Level), entry.Message, meta, formatTime(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	return nil
}

// ListLogs returns a conversation's log entries, oldest first
func (s *SQLite) ListLogs(ctx context.Context, conversationID string, limit int) ([]models.LogEntry, error) {
	defer s.observe("list_logs", time.Now())

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, level, message, meta, created_at
		FROM logs
		WHERE conversation_id = ?
		ORDER BY created_at ASC, seq ASC
		LIMIT ?
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query logs: %w", err)
	}
	defer rows.Close()

	out := make([]models.LogEntry, 0)
	for rows.Next() {
		var (
			entry       models.LogEntry
			level, meta string
			createdAt   string
		)
		if err := rows.Scan(&entry.ID, &entry.ConversationID, &level, &entry.Message, &meta, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		entry.Level = models.LogLevel(level)
		entry.CreatedAt = parseTime(createdAt)
		if meta != "" && meta != "{}" {
			_ = json.Unmarshal([]byte(meta), &entry.Meta)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// PurgeLogsBefore deletes log entries created before cutoff and returns how many were removed
func (s *SQLite) PurgeLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	defer s.observe("purge_logs", time.Now())

	res, err := s.db.ExecContext(ctx, `DELETE FROM logs WHERE created_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to purge logs: %w", err)
	}
	return res.RowsAffected()
}
