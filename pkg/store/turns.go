package store

import (
	"context"
	"fmt"
	"time"

	"support-assistant/pkg/models"
)

func (s *SQLite) AppendTurn(ctx context.Context, turn models.Turn) error {
	defer s.observe("append_turn", time.Now())

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (id, conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, turn.ID, turn.ConversationID, string(turn.Role), turn.Content, formatTime(turn.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// ListTurns returns up to limit turns, oldest first
func (s *SQLite) ListTurns(ctx context.Context, conversationID string, limit int) ([]models.Turn, error) {
	defer s.observe("list_turns", time.Now())

	return s.queryTurns(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM turns
		WHERE conversation_id = ?
		ORDER BY created_at ASC, seq ASC
		LIMIT ?
	`, conversationID, limit)
}

// RecentTurns returns the last n turns, oldest first
func (s *SQLite) RecentTurns(ctx context.Context, conversationID string, n int) ([]models.Turn, error) {
	defer s.observe("recent_turns", time.Now())

	turns, err := s.queryTurns(ctx, `
		SELECT id, conversation_id, role, content, created_at
		FROM turns
		WHERE conversation_id = ?
		ORDER BY created_at DESC, seq DESC
		LIMIT ?
	`, conversationID, n)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *SQLite) queryTurns(ctx context.Context, query string, args ...interface{}) ([]models.Turn, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	out := make([]models.Turn, 0)
	for rows.Next() {
		var (
			turn      models.Turn
			role      string
			createdAt string
		)
		if err := rows.Scan(&turn.ID, &turn.ConversationID, &role, &turn.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turn.Role = models.Role(role)
		turn.CreatedAt = parseTime(createdAt)
		out = append(out, turn)
	}
	return out, rows.Err()
}
