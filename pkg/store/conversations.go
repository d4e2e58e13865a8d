package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"support-assistant/pkg/models"
)

const conversationColumns = `id, user_id, created_at, last_active, summary, next_actions`

// CreateConversation inserts conv unless a conversation with the same ID
// exists, and returns the stored row either way.
func (s *SQLite) CreateConversation(ctx context.Context, conv models.Conversation) (models.Conversation, error) {
	defer s.observe("create_conversation", time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Conversation{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackTx(tx)

	createdAt := formatTime(conv.CreatedAt)
	lastActive := createdAt
	if !conv.LastActive.IsZero() {
		lastActive = formatTime(conv.LastActive)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO conversations (id, user_id, created_at, last_active, summary, next_actions)
		VALUES (?, ?, ?, ?, '', '[]')
	`, conv.ID, conv.UserID, createdAt, lastActive); err != nil {
		return models.Conversation{}, fmt.Errorf("failed to insert conversation: %w", err)
	}

	stored, err := scanConversation(tx.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, conv.ID))
	if err != nil {
		return models.Conversation{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Conversation{}, fmt.Errorf("failed to commit conversation: %w", err)
	}
	return stored, nil
}

func (s *SQLite) GetConversation(ctx context.Context, id string) (models.Conversation, error) {
	defer s.observe("get_conversation", time.Now())

	return scanConversation(s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`, id))
}

// ListConversations returns the most recently active conversations first
func (s *SQLite) ListConversations(ctx context.Context, limit int) ([]models.Conversation, error) {
	defer s.observe("list_conversations", time.Now())

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations ORDER BY last_active DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	out := make([]models.Conversation, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

func (s *SQLite) TouchConversation(ctx context.Context, id string, at time.Time) error {
	defer s.observe("touch_conversation", time.Now())

	return s.updateConversation(ctx, `UPDATE conversations SET last_active = ? WHERE id = ?`, formatTime(at), id)
}

func (s *SQLite) UpdateSummary(ctx context.Context, id, summary string) error {
	defer s.observe("update_summary", time.Now())

	return s.updateConversation(ctx, `UPDATE conversations SET summary = ? WHERE id = ?`, summary, id)
}

func (s *SQLite) UpdateNextActions(ctx context.Context, id string, actions []string) error {
	defer s.observe("update_next_actions", time.Now())

	if actions == nil {
		actions = []string{}
	}
	encoded, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("failed to encode next actions: %w", err)
	}
	return s.updateConversation(ctx, `UPDATE conversations SET next_actions = ? WHERE id = ?`, string(encoded), id)
}

func (s *SQLite) updateConversation(ctx context.Context, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanConversation(row rowScanner) (models.Conversation, error) {
	var (
		conv                  models.Conversation
		createdAt, lastActive string
		nextActions           string
	)
	if err := row.Scan(&conv.ID, &conv.UserID, &createdAt, &lastActive, &conv.Summary, &nextActions); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Conversation{}, ErrNotFound
		}
		return models.Conversation{}, fmt.Errorf("failed to scan conversation: %w", err)
	}
	conv.CreatedAt = parseTime(createdAt)
	conv.LastActive = parseTime(lastActive)
	if nextActions != "" {
		// A malformed list is treated as empty rather than failing the read
		_ = json.Unmarshal([]byte(nextActions), &conv.NextActions)
	}
	return conv, nil
}
