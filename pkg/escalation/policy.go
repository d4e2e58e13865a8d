package escalation

import (
	"regexp"
	"strings"

	"support-assistant/pkg/constants"
	"support-assistant/pkg/models"
)

// DefaultKeywords are sensitive topics that always go to a human: billing
// disputes, legal threats, fraud and explicit requests for a person.
var DefaultKeywords = []string{
	"refund", "chargeback", "dispute", "overcharged",
	"legal", "lawyer", "attorney", "sue", "lawsuit",
	"fraud", "scam", "scammed", "scammer", "stolen", "suing",
	"complain*", "escalat*", "human", "real person", "manager", "speak to an agent", "talk to an agent",
}

// DefaultLowConfidencePhrases mark a candidate reply that admits it cannot help
var DefaultLowConfidencePhrases = []string{
	"not sure",
	"don't know",
	"dont know",
	"do not know",
	"unable to help",
	"cannot help",
	"can't help",
	"escalat",
	"human support",
	"contact a human",
}

// Policy decides whether a conversation must be handed off. It holds compiled
// matchers only and is safe for concurrent use.
type Policy struct {
	keywords               *regexp.Regexp
	lowConfidence          []string
	clarificationThreshold int
}

// Option customizes a Policy
type Option func(*Policy)

// WithKeywords replaces the sensitive keyword set
func WithKeywords(keywords []string) Option {
	return func(p *Policy) {
		p.keywords = CompileKeywords(keywords)
	}
}

// WithLowConfidencePhrases replaces the low-confidence phrase set
func WithLowConfidencePhrases(phrases []string) Option {
	return func(p *Policy) {
		p.lowConfidence = lowerAll(phrases)
	}
}

// WithClarificationThreshold sets how many consecutive clarifying replies force a hand-off
func WithClarificationThreshold(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.clarificationThreshold = n
		}
	}
}

func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		keywords:               CompileKeywords(DefaultKeywords),
		lowConfidence:          lowerAll(DefaultLowConfidencePhrases),
		clarificationThreshold: constants.DefaultClarificationThreshold,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ClarificationThreshold returns the configured repeated-clarification threshold
func (p *Policy) ClarificationThreshold() int {
	return p.clarificationThreshold
}

// Decide applies the rules in precedence order; the first match wins.
func (p *Policy) Decide(userMessage, candidateReply string, clarificationCount int) models.EscalationDecision {
	if p.HasSensitiveKeyword(userMessage) {
		return escalate(models.ReasonUserKeyword)
	}
	if p.ClarificationExhausted(clarificationCount) {
		return escalate(models.ReasonRepeatedClarification)
	}
	if p.IsLowConfidence(candidateReply) {
		return escalate(models.ReasonLowConfidence)
	}
	return models.EscalationDecision{ShouldEscalate: false, Reason: models.ReasonNone}
}

// HasSensitiveKeyword reports whether text mentions any sensitive keyword as a whole word
func (p *Policy) HasSensitiveKeyword(text string) bool {
	if p.keywords == nil || text == "" {
		return false
	}
	return p.keywords.MatchString(text)
}

// ClarificationExhausted reports whether count has reached the threshold
func (p *Policy) ClarificationExhausted(count int) bool {
	return count >= p.clarificationThreshold
}

// IsLowConfidence reports whether a candidate reply is missing or admits inability to help
func (p *Policy) IsLowConfidence(reply string) bool {
	text := strings.ToLower(strings.TrimSpace(reply))
	if text == "" {
		return true
	}
	for _, phrase := range p.lowConfidence {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

func escalate(reason models.TriggerReason) models.EscalationDecision {
	return models.EscalationDecision{ShouldEscalate: true, Reason: reason}
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(strings.ToLower(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
