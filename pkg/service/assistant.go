package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"support-assistant/pkg/advisor"
	"support-assistant/pkg/constants"
	"support-assistant/pkg/conversation"
	"support-assistant/pkg/handoff"
	"support-assistant/pkg/metrics"
	"support-assistant/pkg/models"
	"support-assistant/pkg/orchestrator"
	"support-assistant/pkg/store"
)

var (
	// ErrInvalidInput is returned for a missing conversation ID or an empty message
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned for an unknown conversation or when there is nothing to act on
	ErrNotFound = errors.New("not found")
)

// Store is the persistence the assistant needs
type Store interface {
	CreateConversation(ctx context.Context, conv models.Conversation) (models.Conversation, error)
	GetConversation(ctx context.Context, id string) (models.Conversation, error)
	ListConversations(ctx context.Context, limit int) ([]models.Conversation, error)
	TouchConversation(ctx context.Context, id string, at time.Time) error
	UpdateSummary(ctx context.Context, id, summary string) error
	UpdateNextActions(ctx context.Context, id string, actions []string) error

	AppendTurn(ctx context.Context, turn models.Turn) error
	ListTurns(ctx context.Context, conversationID string, limit int) ([]models.Turn, error)
	RecentTurns(ctx context.Context, conversationID string, n int) ([]models.Turn, error)

	CreateEscalation(ctx context.Context, e models.Escalation) error
	ListEscalations(ctx context.Context, limit int) ([]models.Escalation, error)
	EscalationsForConversation(ctx context.Context, conversationID string) ([]models.Escalation, error)

	AppendLog(ctx context.Context, entry models.LogEntry) error
	ListLogs(ctx context.Context, conversationID string, limit int) ([]models.LogEntry, error)
	PurgeLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Matcher finds knowledge records for a message
type Matcher interface {
	Search(query string, limit int) []models.MatchResult
}

// Settings are the per-turn limits
type Settings struct {
	ContextWindow  int
	KnowledgeHits  int
	LogRetention   time.Duration
	HistoryLimit   int
	ListLimit      int
	SummaryHistory int
}

func DefaultSettings() Settings {
	return Settings{
		ContextWindow:  constants.DefaultContextWindow,
		KnowledgeHits:  constants.DefaultKnowledgeHits,
		LogRetention:   constants.HoursToDuration(constants.DefaultLogRetentionHours),
		HistoryLimit:   constants.DefaultHistoryLimit,
		ListLimit:      constants.DefaultListLimit,
		SummaryHistory: constants.DefaultSummaryHistoryLimit,
	}
}

// Assistant is the conversation service: it gathers context, runs the
// orchestrator and advisor, and persists everything that results.
type Assistant struct {
	store        Store
	cache        conversation.Cache
	matcher      Matcher
	orchestrator *orchestrator.Orchestrator
	advisor      *advisor.Advisor
	handoff      handoff.Sink
	settings     Settings
	logger       *logrus.Logger
	metrics      *metrics.Metrics
}

func NewAssistant(
	st Store,
	cache conversation.Cache,
	matcher Matcher,
	orch *orchestrator.Orchestrator,
	adv *advisor.Advisor,
	sink handoff.Sink,
	settings Settings,
	logger *logrus.Logger,
	m *metrics.Metrics,
) *Assistant {
	if sink == nil {
		sink = handoff.Noop{}
	}
	return &Assistant{
		store:        st,
		cache:        cache,
		matcher:      matcher,
		orchestrator: orch,
		advisor:      adv,
		handoff:      sink,
		settings:     settings,
		logger:       logger,
		metrics:      m,
	}
}

// MessageResult is what a submitted message produced
type MessageResult struct {
	ConversationID string               `json:"conversation_id"`
	Reply          models.Reply         `json:"reply"`
	Hits           []models.MatchResult `json:"hits"`
	Escalation     *models.Escalation   `json:"escalation,omitempty"`
}

// Detail is the admin view of one conversation
type Detail struct {
	Conversation models.Conversation `json:"conversation"`
	Turns        []models.Turn       `json:"turns"`
	Logs         []models.LogEntry   `json:"logs"`
	Escalations  []models.Escalation `json:"escalations"`
}

func (a *Assistant) CreateConversation(ctx context.Context, userID string) (models.Conversation, error) {
	now := time.Now().UTC()
	conv, err := a.store.CreateConversation(ctx, models.Conversation{
		ID:        uuid.New().String(),
		UserID:    strings.TrimSpace(userID),
		CreatedAt: now,
	})
	if err != nil {
		return models.Conversation{}, fmt.Errorf("failed to create conversation: %w", err)
	}

	a.appendLog(ctx, conv.ID, models.LogInfo, "conversation_created", map[string]interface{}{"user_id": conv.UserID})
	return conv, nil
}

// SubmitMessage answers one user message. The conversation is created if it does not exist.
func (a *Assistant) SubmitMessage(ctx context.Context, conversationID, text string) (*MessageResult, error) {
	conversationID = strings.TrimSpace(conversationID)
	text = strings.TrimSpace(text)
	if conversationID == "" {
		return nil, fmt.Errorf("%w: missing conversation id", ErrInvalidInput)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: missing text field", ErrInvalidInput)
	}

	logger := a.logger.WithField("conversation_id", conversationID)

	if _, err := a.store.CreateConversation(ctx, models.Conversation{ID: conversationID, CreatedAt: time.Now().UTC()}); err != nil {
		return nil, fmt.Errorf("failed to ensure conversation: %w", err)
	}
	a.appendLog(ctx, conversationID, models.LogInfo, "received_user_message", map[string]interface{}{
		"text_snippet": snippet(text),
	})

	// The window is read before the new user turn is stored so it holds only prior turns
	window, err := a.loadWindow(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	userTurn := newTurn(conversationID, models.RoleUser, text)
	if err := a.store.AppendTurn(ctx, userTurn); err != nil {
		return nil, fmt.Errorf("failed to store user turn: %w", err)
	}

	hits := a.search(text)
	a.appendLog(ctx, conversationID, models.LogDebug, "kb_search_completed", map[string]interface{}{
		"query": snippet(text),
		"hits":  hitSummary(hits),
	})

	reply := a.orchestrator.Respond(ctx, text, window.Turns(), hits)
	a.appendLog(ctx, conversationID, models.LogInfo, "assistant_generated", map[string]interface{}{
		"snippet":  snippet(reply.Text),
		"escalate": reply.ShouldEscalate,
		"source":   string(reply.Source),
	})

	result := &MessageResult{ConversationID: conversationID, Reply: reply, Hits: hits}

	if reply.ShouldEscalate {
		escalation, err := a.openEscalation(ctx, conversationID, reply.Reason, reply.Text)
		if err != nil {
			return nil, err
		}
		result.Escalation = escalation
		a.appendLog(ctx, conversationID, models.LogWarn, "escalation_created", map[string]interface{}{
			"escalation_id": escalation.ID,
			"reason":        string(reply.Reason),
		})
	}

	assistantTurn := newTurn(conversationID, models.RoleAssistant, reply.Text)
	if err := a.store.AppendTurn(ctx, assistantTurn); err != nil {
		return nil, fmt.Errorf("failed to store assistant turn: %w", err)
	}

	if err := a.cache.Append(ctx, conversationID, userTurn, assistantTurn); err != nil {
		logger.WithError(err).Warn("Failed to update context window cache, invalidating it")
		// A stale window would undercount clarifications; the next turn reloads from the store
		if err := a.cache.Invalidate(ctx, conversationID); err != nil {
			logger.WithError(err).Error("Failed to invalidate context window cache")
		}
	}
	if err := a.store.TouchConversation(ctx, conversationID, time.Now().UTC()); err != nil {
		logger.WithError(err).Warn("Failed to touch conversation")
	}

	a.metrics.TurnsProcessed.WithLabelValues(string(reply.Source)).Inc()
	logger.WithFields(logrus.Fields{
		"source":   reply.Source,
		"escalate": reply.ShouldEscalate,
		"reason":   reply.Reason,
	}).Debug("Answered user message")

	return result, nil
}

func (a *Assistant) History(ctx context.Context, conversationID string) ([]models.Turn, error) {
	turns, err := a.store.ListTurns(ctx, conversationID, a.settings.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return turns, nil
}

// Escalate opens a ticket on request. An empty reason records a manual escalation.
func (a *Assistant) Escalate(ctx context.Context, conversationID, reason, notes string) (*models.Escalation, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, fmt.Errorf("%w: missing conversation id", ErrInvalidInput)
	}

	trigger := models.TriggerReason(strings.TrimSpace(reason))
	if trigger == "" {
		trigger = models.ReasonManual
	}

	if _, err := a.store.CreateConversation(ctx, models.Conversation{ID: conversationID, CreatedAt: time.Now().UTC()}); err != nil {
		return nil, fmt.Errorf("failed to ensure conversation: %w", err)
	}

	escalation, err := a.openEscalation(ctx, conversationID, trigger, notes)
	if err != nil {
		return nil, err
	}

	a.appendLog(ctx, conversationID, models.LogInfo, "manual_escalation", map[string]interface{}{
		"escalation_id": escalation.ID,
		"reason":        string(trigger),
	})
	return escalation, nil
}

func (a *Assistant) Escalations(ctx context.Context, limit int) ([]models.Escalation, error) {
	escalations, err := a.store.ListEscalations(ctx, a.limit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list escalations: %w", err)
	}
	return escalations, nil
}

// Summarize summarizes the whole conversation and stores the result
func (a *Assistant) Summarize(ctx context.Context, conversationID string) (string, error) {
	turns, err := a.store.ListTurns(ctx, conversationID, a.settings.SummaryHistory)
	if err != nil {
		return "", fmt.Errorf("failed to load history: %w", err)
	}
	if len(turns) == 0 {
		return "", fmt.Errorf("%w: no messages to summarize", ErrNotFound)
	}

	summary := a.orchestrator.Summarize(orchestrator.RenderTranscript(turns), nil)
	summary = truncate(summary, constants.MaxSummaryLength)

	if err := a.store.UpdateSummary(ctx, conversationID, summary); err != nil {
		return "", a.storeError("failed to store summary", err)
	}

	a.appendLog(ctx, conversationID, models.LogInfo, "summary_generated", map[string]interface{}{"snippet": snippet(summary)})
	return summary, nil
}

// NextActions runs the advisor over the context window and stores the suggestion
func (a *Assistant) NextActions(ctx context.Context, conversationID string) (models.Suggestion, error) {
	if _, err := a.store.GetConversation(ctx, conversationID); err != nil {
		return models.Suggestion{}, a.storeError("failed to load conversation", err)
	}

	window, err := a.loadWindow(ctx, conversationID)
	if err != nil {
		return models.Suggestion{}, err
	}
	turns := window.Turns()

	lastUser := ""
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == models.RoleUser {
			lastUser = turns[i].Content
			break
		}
	}

	suggestion := a.advisor.Suggest(ctx, lastUser, turns, a.search(lastUser))
	if err := a.store.UpdateNextActions(ctx, conversationID, suggestion.Actions); err != nil {
		return models.Suggestion{}, a.storeError("failed to store next actions", err)
	}

	a.appendLog(ctx, conversationID, models.LogInfo, "next_actions_generated", map[string]interface{}{
		"count":  len(suggestion.Actions),
		"reason": string(suggestion.Reason),
	})
	return suggestion, nil
}

func (a *Assistant) Logs(ctx context.Context, conversationID string) ([]models.LogEntry, error) {
	logs, err := a.store.ListLogs(ctx, conversationID, a.settings.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load logs: %w", err)
	}
	return logs, nil
}

func (a *Assistant) ListConversations(ctx context.Context, limit int) ([]models.Conversation, error) {
	conversations, err := a.store.ListConversations(ctx, a.limit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return conversations, nil
}

func (a *Assistant) ConversationDetail(ctx context.Context, conversationID string) (*Detail, error) {
	conv, err := a.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, a.storeError("failed to load conversation", err)
	}

	turns, err := a.store.ListTurns(ctx, conversationID, a.settings.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	logs, err := a.store.ListLogs(ctx, conversationID, a.settings.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load logs: %w", err)
	}
	escalations, err := a.store.EscalationsForConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load escalations: %w", err)
	}

	return &Detail{Conversation: conv, Turns: turns, Logs: logs, Escalations: escalations}, nil
}

// PurgeLogs removes operational log entries older than the retention period
func (a *Assistant) PurgeLogs(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-a.settings.LogRetention)
	removed, err := a.store.PurgeLogsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge logs: %w", err)
	}

	if removed > 0 {
		a.metrics.LogEntriesPurged.Add(float64(removed))
		a.logger.WithFields(logrus.Fields{
			"removed_count": removed,
			"retention":     a.settings.LogRetention,
		}).Info("Purged expired log entries")
	}
	return removed, nil
}

// RecordError stores an unhandled error against a conversation
func (a *Assistant) RecordError(ctx context.Context, conversationID string, err error) {
	a.appendLog(ctx, conversationID, models.LogError, "unhandled_error", map[string]interface{}{"message": err.Error()})
}

func (a *Assistant) loadWindow(ctx context.Context, conversationID string) (*conversation.Window, error) {
	logger := a.logger.WithField("conversation_id", conversationID)

	turns, ok, err := a.cache.Get(ctx, conversationID)
	if err != nil {
		logger.WithError(err).Warn("Context window cache unavailable, reading from store")
	}
	if ok {
		return conversation.NewWindow(a.settings.ContextWindow, turns...), nil
	}

	turns, err = a.store.RecentTurns(ctx, conversationID, a.settings.ContextWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent turns: %w", err)
	}
	if err := a.cache.Store(ctx, conversationID, turns); err != nil {
		logger.WithError(err).Warn("Failed to populate context window cache")
	}
	return conversation.NewWindow(a.settings.ContextWindow, turns...), nil
}

func (a *Assistant) search(text string) []models.MatchResult {
	if strings.TrimSpace(text) == "" {
		return []models.MatchResult{}
	}

	start := time.Now()
	hits := a.matcher.Search(text, a.settings.KnowledgeHits)
	a.metrics.KnowledgeSearchDuration.Observe(time.Since(start).Seconds())
	if len(hits) > 0 {
		a.metrics.KnowledgeTopScore.Observe(hits[0].Score)
	}
	return hits
}

func (a *Assistant) openEscalation(ctx context.Context, conversationID string, reason models.TriggerReason, notes string) (*models.Escalation, error) {
	escalation := models.Escalation{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Reason:         reason,
		Status:         models.EscalationQueued,
		Notes:          notes,
		CreatedAt:      time.Now().UTC(),
	}
	if err := a.store.CreateEscalation(ctx, escalation); err != nil {
		return nil, fmt.Errorf("failed to create escalation: %w", err)
	}
	a.metrics.EscalationsCreated.WithLabelValues(string(reason)).Inc()

	// The ticket is already stored, so a failed publish is logged and the turn continues
	if err := a.handoff.Publish(ctx, models.HandoffEvent{
		EscalationID:   escalation.ID,
		ConversationID: conversationID,
		Reason:         reason,
		Notes:          notes,
		CreatedAt:      escalation.CreatedAt,
		Attempt:        1,
	}); err != nil {
		a.logger.WithError(err).WithFields(logrus.Fields{
			"conversation_id": conversationID,
			"escalation_id":   escalation.ID,
		}).Error("Failed to publish hand-off event")
	}

	return &escalation, nil
}

func (a *Assistant) appendLog(ctx context.Context, conversationID string, level models.LogLevel, message string, meta map[string]interface{}) {
	entry := models.LogEntry{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Level:          level,
		Message:        message,
		Meta:           meta,
		CreatedAt:      time.Now().UTC(),
	}
	if err := a.store.AppendLog(ctx, entry); err != nil {
		a.logger.WithError(err).WithFields(logrus.Fields{
			"conversation_id": conversationID,
			"event":           message,
		}).Warn("Failed to write operational log entry")
	}
}

func (a *Assistant) storeError(msg string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: conversation", ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func (a *Assistant) limit(requested int) int {
	if requested <= 0 || requested > a.settings.ListLimit {
		return a.settings.ListLimit
	}
	return requested
}

func newTurn(conversationID string, role models.Role, content string) models.Turn {
	return models.Turn{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
}

func hitSummary(hits []models.MatchResult) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(hits))
	for _, hit := range hits {
		out = append(out, map[string]interface{}{"id": hit.Record.ID, "score": hit.Score})
	}
	return out
}

func snippet(text string) string {
	return truncate(text, constants.LogSnippetLength)
}

func truncate(text string, max int) string {
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return string(r[:max])
}
