package advisor

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"support-assistant/pkg/constants"
	"support-assistant/pkg/escalation"
	"support-assistant/pkg/generation"
	"support-assistant/pkg/metrics"
	"support-assistant/pkg/models"
)

const suggestSystem = "You help customer-support agents decide what to do next."

// Topic is a keyword group with the follow-up steps it implies
type Topic struct {
	Name     string
	Keywords []string
	Actions  []string
}

// DefaultTopics are scanned in this order
func DefaultTopics() []Topic {
	return []Topic{
		{
			Name:     "billing",
			Keywords: []string{"refund", "billing", "invoice", "charge", "payment", "subscription"},
			Actions: []string{
				"Verify the account holder and the affected account",
				"Look up the charge, invoice or subscription in the billing system",
				"Explain the refund policy and open a billing ticket if a refund is warranted",
			},
		},
		{
			Name:     "authentication",
			Keywords: []string{"login", "log in", "sign in", "password", "2fa", "locked", "account access"},
			Actions: []string{
				"Confirm the account email or username",
				"Send a password reset link and check whether the account is locked",
				"Review recent sign-in attempts and 2FA settings",
			},
		},
		{
			Name:     "integration",
			Keywords: []string{"api", "integration", "webhook", "error", "timeout", "crash", "sdk"},
			Actions: []string{
				"Ask for the exact error message, request ID and timestamp",
				"Check the API status page for recent incidents",
				"Reproduce the call with the customer's SDK version and payload",
			},
		},
	}
}

var genericActions = []string{
	"Ask the customer for specifics about the problem",
	"Collect an identifier such as an order number or account email",
	"Offer to escalate the conversation to a human agent",
}

// bulletPrefix matches "-", "*", "•", "1.", "2)", "(3)" at the start of a line
var bulletPrefix = regexp.MustCompile(`^\s*(?:[-*•]+|\(?\d+[.)])\s*`)

// Advisor proposes next actions for the agent handling a conversation. Its
// output never influences the escalation decision.
type Advisor struct {
	backend    generation.Backend
	topics     []Topic
	matchers   []*regexp.Regexp
	maxActions int
	maxTokens  int
	logger     *logrus.Logger
	metrics    *metrics.Metrics
}

type Option func(*Advisor)

func WithMaxActions(n int) Option {
	return func(a *Advisor) {
		if n > 0 {
			a.maxActions = n
		}
	}
}

// WithTopicKeywords replaces the keyword lists of the named topics. Unknown names are ignored.
func WithTopicKeywords(keywords map[string][]string) Option {
	return func(a *Advisor) {
		for i := range a.topics {
			if kws, ok := keywords[a.topics[i].Name]; ok && len(kws) > 0 {
				a.topics[i].Keywords = kws
			}
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(a *Advisor) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

func New(backend generation.Backend, logger *logrus.Logger, m *metrics.Metrics, opts ...Option) *Advisor {
	if backend == nil {
		backend = generation.Disabled{}
	}
	a := &Advisor{
		backend:    backend,
		topics:     DefaultTopics(),
		maxActions: constants.DefaultMaxActions,
		maxTokens:  constants.DefaultGenerationMaxTokens,
		logger:     logger,
		metrics:    m,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.matchers = make([]*regexp.Regexp, len(a.topics))
	for i, topic := range a.topics {
		a.matchers[i] = escalation.CompileKeywords(topic.Keywords)
	}
	return a
}

func (a *Advisor) Suggest(ctx context.Context, userMessage string, recentTurns []models.Turn, hits []models.MatchResult) models.Suggestion {
	suggestion := a.suggest(ctx, userMessage, recentTurns, hits)
	if a.metrics != nil {
		a.metrics.SuggestionsGenerated.WithLabelValues(string(suggestion.Reason)).Inc()
	}
	return suggestion
}

func (a *Advisor) suggest(ctx context.Context, userMessage string, recentTurns []models.Turn, hits []models.MatchResult) models.Suggestion {
	if a.backend.Available() {
		text, err := a.backend.Generate(ctx, generation.Request{
			System:    suggestSystem,
			Prompt:    buildPrompt(userMessage, recentTurns, hits),
			MaxTokens: a.maxTokens,
		})
		if err == nil {
			if actions := capUnique(ParseActions(text), a.maxActions); len(actions) > 0 {
				return models.Suggestion{Actions: actions, Reason: models.SuggestionExternal}
			}
		} else if !errors.Is(err, generation.ErrNotConfigured) {
			a.logger.WithError(err).Debug("Next-action generation failed, using topic templates")
		}
	}

	return models.Suggestion{Actions: a.Fallback(userMessage, recentTurns), Reason: models.SuggestionFallback}
}

// Fallback scans what the customer wrote for topic keywords and returns the
// matching templates. Assistant turns are skipped so canned replies never
// select a topic.
func (a *Advisor) Fallback(userMessage string, recentTurns []models.Turn) []string {
	var b strings.Builder
	for _, turn := range recentTurns {
		if turn.Role != models.RoleUser {
			continue
		}
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}
	b.WriteString(userMessage)
	text := b.String()

	var actions []string
	for i, topic := range a.topics {
		if m := a.matchers[i]; m != nil && m.MatchString(text) {
			actions = append(actions, topic.Actions...)
		}
	}
	if len(actions) == 0 {
		actions = genericActions
	}
	return capUnique(actions, a.maxActions)
}

// ParseActions turns a bulleted or numbered list into plain action strings
func ParseActions(text string) []string {
	var actions []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(bulletPrefix.ReplaceAllString(line, ""))
		if line != "" {
			actions = append(actions, line)
		}
	}
	return actions
}

func capUnique(actions []string, max int) []string {
	seen := make(map[string]struct{}, len(actions))
	out := make([]string, 0, len(actions))
	for _, action := range actions {
		key := strings.ToLower(action)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, action)
		if len(out) == max {
			break
		}
	}
	return out
}

func buildPrompt(userMessage string, recentTurns []models.Turn, hits []models.MatchResult) string {
	var b strings.Builder
	b.WriteString("Suggest 3 to 6 short imperative next actions for the support agent handling this conversation. ")
	b.WriteString("Reply with a bulleted list, one action per line, and nothing else.\n\n")

	if len(hits) > 0 {
		b.WriteString("Related knowledge:\n")
		for _, hit := range hits {
			fmt.Fprintf(&b, "- %s\n", hit.Record.Question)
		}
		b.WriteString("\n")
	}

	b.WriteString("Conversation:\n")
	for _, turn := range recentTurns {
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
	}
	if userMessage != "" {
		fmt.Fprintf(&b, "user: %s\n", userMessage)
	}
	return b.String()
}
