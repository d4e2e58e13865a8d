package orchestrator

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"support-assistant/pkg/constants"
	"support-assistant/pkg/escalation"
	"support-assistant/pkg/generation"
	"support-assistant/pkg/models"
)

// Fixed reply texts. Only the clarifying replies carry ClarifyingMarker.
const (
	HandoffMessage    = "I'm connecting you with a member of our support team who can help with this. A human agent will follow up shortly."
	EscalationMessage = "I'm having trouble resolving this, so I'm passing your conversation to a human agent who will follow up shortly."
	GenericClarifying = "Can you please provide more details about the issue (account type, product, or exact error)?"
	weakHitClarifying = "I found something that may be related: %q. Could you please provide more details so I can confirm it applies to you?"
)

// Settings are the orchestrator's tuning knobs
type Settings struct {
	ConfidenceThreshold float64
	KnowledgeHits       int
	MaxTokens           int
	Temperature         float64
}

func DefaultSettings() Settings {
	return Settings{
		ConfidenceThreshold: constants.DefaultConfidenceThreshold,
		KnowledgeHits:       constants.DefaultKnowledgeHits,
		MaxTokens:           constants.DefaultGenerationMaxTokens,
	}
}

// Orchestrator decides how to answer one user turn and whether to hand off.
// It has no side effects; persistence belongs to the caller.
type Orchestrator struct {
	policy   *escalation.Policy
	backend  generation.Backend
	settings Settings
	logger   *logrus.Logger
}

func New(policy *escalation.Policy, backend generation.Backend, settings Settings, logger *logrus.Logger) *Orchestrator {
	if backend == nil {
		backend = generation.Disabled{}
	}
	return &Orchestrator{
		policy:   policy,
		backend:  backend,
		settings: settings,
		logger:   logger,
	}
}

// Respond never fails: every path ends in an answer, a clarifying question or a hand-off.
func (o *Orchestrator) Respond(ctx context.Context, userMessage string, recentTurns []models.Turn, hits []models.MatchResult) models.Reply {
	if o.policy.HasSensitiveKeyword(userMessage) {
		return models.Reply{
			Text:           HandoffMessage,
			ShouldEscalate: true,
			Reason:         models.ReasonUserKeyword,
			Source:         models.SourceHandoff,
		}
	}

	if IsSummaryRequest(userMessage) {
		return models.Reply{
			Text:   o.Summarize(userMessage, recentTurns),
			Reason: models.ReasonNone,
			Source: models.SourceSummary,
		}
	}

	if reply, ok := o.generate(ctx, userMessage, recentTurns, hits); ok {
		return reply
	}

	return o.fromKnowledge(recentTurns, hits)
}

func (o *Orchestrator) generate(ctx context.Context, userMessage string, recentTurns []models.Turn, hits []models.MatchResult) (models.Reply, bool) {
	if !o.backend.Available() {
		return models.Reply{}, false
	}

	text, err := o.backend.Generate(ctx, o.buildRequest(userMessage, recentTurns, hits))
	if err != nil {
		if !errors.Is(err, generation.ErrNotConfigured) {
			o.logger.WithError(err).WithField("backend", o.backend.Name()).Debug("Falling back to knowledge base")
		}
		return models.Reply{}, false
	}

	text = StripIdentifiers(text)
	if text == "" {
		return models.Reply{}, false
	}

	// The keyword rule already passed and clarification history does not apply to a generated answer
	decision := o.policy.Decide(userMessage, text, 0)
	return models.Reply{
		Text:           text,
		ShouldEscalate: decision.ShouldEscalate,
		Reason:         decision.Reason,
		Source:         models.SourceGeneration,
	}, true
}

func (o *Orchestrator) fromKnowledge(recentTurns []models.Turn, hits []models.MatchResult) models.Reply {
	if len(hits) > 0 && hits[0].Score >= o.settings.ConfidenceThreshold {
		return models.Reply{
			Text:   hits[0].Record.Answer,
			Reason: models.ReasonNone,
			Source: models.SourceKnowledge,
		}
	}

	if o.policy.ClarificationExhausted(CountClarifications(recentTurns)) {
		return models.Reply{
			Text:           EscalationMessage,
			ShouldEscalate: true,
			Reason:         models.ReasonRepeatedClarification,
			Source:         models.SourceHandoff,
		}
	}

	// A zero score shares nothing with the message and is not worth quoting
	text := GenericClarifying
	if len(hits) > 0 && hits[0].Score > 0 && hits[0].Record.Question != "" {
		text = clarifyingFor(hits[0].Record.Question)
	}
	return models.Reply{Text: text, Reason: models.ReasonNone, Source: models.SourceClarification}
}
