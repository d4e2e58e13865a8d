package store

import (
	"context"
	"fmt"
	"time"

	"support-assistant/pkg/models"
)

func (s *SQLite) CreateEscalation(ctx context.Context, e models.Escalation) error {
	defer s.observe("create_escalation", time.Now())

	status := e.Status
	if status == "" {
		status = models.EscalationQueued
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO escalations (id, conversation_id, reason, status, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.ConversationID, string(e.Reason), string(status), e.Notes, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create escalation: %w", err)
	}
	return nil
}

// ListEscalations returns the newest tickets first
func (s *SQLite) ListEscalations(ctx context.Context, limit int) ([]models.Escalation, error) {
	defer s.observe("list_escalations", time.Now())

	return s.queryEscalations(ctx, `
		SELECT id, conversation_id, reason, status, notes, created_at
		FROM escalations
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
}

// EscalationsForConversation returns a conversation's tickets, oldest first
func (s *SQLite) EscalationsForConversation(ctx context.Context, conversationID string) ([]models.Escalation, error) {
	defer s.observe("conversation_escalations", time.Now())

	return s.queryEscalations(ctx, `
		SELECT id, conversation_id, reason, status, notes, created_at
		FROM escalations
		WHERE conversation_id = ?
		ORDER BY created_at ASC
	`, conversationID)
}

func (s *SQLite) queryEscalations(ctx context.Context, query string, args ...interface{}) ([]models.Escalation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query escalations: %w", err)
	}
	defer rows.Close()

	out := make([]models.Escalation, 0)
	for rows.Next() {
		var (
			e              models.Escalation
			reason, status string
			createdAt      string
		)
		if err := rows.Scan(&e.ID, &e.ConversationID, &reason, &status, &e.Notes, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan escalation: %w", err)
		}
		e.Reason = models.TriggerReason(reason)
		e.Status = models.EscalationStatus(status)
		e.CreatedAt = parseTime(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}
