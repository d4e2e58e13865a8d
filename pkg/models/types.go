package models

import "time"

// Role identifies who authored a turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation. Turns are append-only and ordered by creation time.
type Turn struct {
	ID             string    `json:"id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// KnowledgeRecord is a single question/answer pair from the corpus
type KnowledgeRecord struct {
	ID                 string `json:"id"`
	Question           string `json:"question"`
	NormalizedQuestion string `json:"-"`
	Answer             string `json:"answer"`
}

// MatchResult pairs a record with its similarity to a query, in [0,1]
type MatchResult struct {
	Record KnowledgeRecord `json:"record"`
	Score  float64         `json:"score"`
}

// TriggerReason explains why a conversation was (or was not) escalated
type TriggerReason string

const (
	ReasonNone                  TriggerReason = "none"
	ReasonUserKeyword           TriggerReason = "user_keyword"
	ReasonRepeatedClarification TriggerReason = "repeated_clarification"
	ReasonLowConfidence         TriggerReason = "low_confidence"
	ReasonManual                TriggerReason = "manual"
)

// EscalationDecision is derived per turn; it is only persisted (as an Escalation) when ShouldEscalate is set
type EscalationDecision struct {
	ShouldEscalate bool          `json:"should_escalate"`
	Reason         TriggerReason `json:"trigger_reason"`
}

// ReplySource records which path of the orchestrator produced a reply
type ReplySource string

const (
	SourceHandoff       ReplySource = "handoff"
	SourceSummary       ReplySource = "summary"
	SourceGeneration    ReplySource = "generation"
	SourceKnowledge     ReplySource = "knowledge"
	SourceClarification ReplySource = "clarification"
)

// Reply is the orchestrator's output for one turn
type Reply struct {
	Text           string        `json:"text"`
	ShouldEscalate bool          `json:"should_escalate"`
	Reason         TriggerReason `json:"trigger_reason"`
	Source         ReplySource   `json:"source"`
}

// SuggestionReason records whether next actions came from the generation backend
type SuggestionReason string

const (
	SuggestionExternal SuggestionReason = "external"
	SuggestionFallback SuggestionReason = "fallback"
)

// Suggestion is the next-action advisor's output
type Suggestion struct {
	Actions []string         `json:"actions"`
	Reason  SuggestionReason `json:"reason"`
}

// Conversation is the persisted conversation header
type Conversation struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LastActive  time.Time `json:"last_active"`
	Summary     string    `json:"summary,omitempty"`
	NextActions []string  `json:"next_actions,omitempty"`
}

// EscalationStatus tracks a ticket through the human hand-off
type EscalationStatus string

const (
	EscalationQueued   EscalationStatus = "queued"
	EscalationResolved EscalationStatus = "resolved"
)

// Escalation is a hand-off ticket
type Escalation struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversation_id"`
	Reason         TriggerReason    `json:"reason"`
	Status         EscalationStatus `json:"status"`
	Notes          string           `json:"notes,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// LogLevel of an operational log entry
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// LogEntry is an append-only operational record scoped to a conversation
type LogEntry struct {
	ID             string                 `json:"id"`
	ConversationID string                 `json:"conversation_id,omitempty"`
	Level          LogLevel               `json:"level"`
	Message        string                 `json:"message"`
	Meta           map[string]interface{} `json:"meta,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// HandoffEvent is published to the hand-off stream whenever an escalation ticket is opened
type HandoffEvent struct {
	EscalationID   string        `json:"escalation_id"`
	ConversationID string        `json:"conversation_id"`
	Reason         TriggerReason `json:"reason"`
	Notes          string        `json:"notes"`
	CreatedAt      time.Time     `json:"created_at"`
	Attempt        int           `json:"attempt"`
}
