package escalation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"support-assistant/pkg/models"
)

func TestPolicy_Decide(t *testing.T) {
	p := NewPolicy()

	tests := []struct {
		name          string
		message       string
		reply         string
		clarification int
		expected      models.EscalationDecision
	}{
		{
			name:     "keyword in message",
			message:  "I want a refund, this is fraud",
			reply:    "Go to Settings > Reset Password",
			expected: models.EscalationDecision{ShouldEscalate: true, Reason: models.ReasonUserKeyword},
		},
		{
			name:          "keyword dominates clarification and low confidence",
			message:       "Let me talk to a human",
			reply:         "",
			clarification: 5,
			expected:      models.EscalationDecision{ShouldEscalate: true, Reason: models.ReasonUserKeyword},
		},
		{
			name:          "repeated clarification",
			message:       "it still does not work",
			reply:         "Here is a perfectly fine answer.",
			clarification: 2,
			expected:      models.EscalationDecision{ShouldEscalate: true, Reason: models.ReasonRepeatedClarification},
		},
		{
			name:          "clarification below threshold",
			message:       "it still does not work",
			reply:         "Here is a perfectly fine answer.",
			clarification: 1,
			expected:      models.EscalationDecision{ShouldEscalate: false, Reason: models.ReasonNone},
		},
		{
			name:     "empty candidate",
			message:  "hello",
			reply:    "   ",
			expected: models.EscalationDecision{ShouldEscalate: true, Reason: models.ReasonLowConfidence},
		},
		{
			name:     "candidate admits it does not know",
			message:  "what is the airspeed of a swallow",
			reply:    "I'm not sure about that.",
			expected: models.EscalationDecision{ShouldEscalate: true, Reason: models.ReasonLowConfidence},
		},
		{
			name:     "confident answer",
			message:  "how do I reset my password",
			reply:    "Go to Settings > Reset Password",
			expected: models.EscalationDecision{ShouldEscalate: false, Reason: models.ReasonNone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.Decide(tt.message, tt.reply, tt.clarification))
		})
	}
}

func TestPolicy_HasSensitiveKeyword(t *testing.T) {
	p := NewPolicy()

	assert.True(t, p.HasSensitiveKeyword("I want my money REFUNDED"))
	assert.True(t, p.HasSensitiveKeyword("I will file a complaint"))
	assert.True(t, p.HasSensitiveKeyword("please escalate this"))
	assert.True(t, p.HasSensitiveKeyword("I need a real   person"))
	assert.True(t, p.HasSensitiveKeyword("I'm going to sue you"))

	assert.False(t, p.HasSensitiveKeyword("I have an issue with my login"))
	assert.False(t, p.HasSensitiveKeyword("how do I reset my password"))
	assert.False(t, p.HasSensitiveKeyword(""))
}

func TestPolicy_KeywordsMatchWholeWordsAndInflections(t *testing.T) {
	p := NewPolicy()

	for _, text := range []string{"they sued me", "I was scammed", "we are suing", "I keep complaining", "this was escalated twice", "two disputes"} {
		assert.True(t, p.HasSensitiveKeyword(text), text)
	}
	for _, text := range []string{"my suede jacket", "the scampi was cold", "a humane interface", "the managerial view", "an illegal character in the path"} {
		assert.False(t, p.HasSensitiveKeyword(text), text)
	}
}

func TestCompileKeywords(t *testing.T) {
	assert.Nil(t, CompileKeywords(nil))
	assert.Nil(t, CompileKeywords([]string{" ", "*"}))

	re := CompileKeywords([]string{"log in", "time*"})
	assert.True(t, re.MatchString("I cannot LOG   IN"))
	assert.True(t, re.MatchString("the call timed out"))
	assert.False(t, re.MatchString("catalog index"))
}

func TestPolicy_Options(t *testing.T) {
	p := NewPolicy(
		WithKeywords([]string{"cancel subscription"}),
		WithLowConfidencePhrases([]string{"no idea"}),
		WithClarificationThreshold(3),
	)

	assert.Equal(t, 3, p.ClarificationThreshold())
	assert.True(t, p.HasSensitiveKeyword("How do I Cancel Subscription?"))
	assert.False(t, p.HasSensitiveKeyword("I want a refund"))
	assert.True(t, p.IsLowConfidence("No idea, sorry"))
	assert.False(t, p.IsLowConfidence("I'm not sure"))
	assert.False(t, p.ClarificationExhausted(2))
	assert.True(t, p.ClarificationExhausted(3))
}

func TestPolicy_EmptyKeywordSet(t *testing.T) {
	p := NewPolicy(WithKeywords(nil))

	assert.False(t, p.HasSensitiveKeyword("refund fraud lawyer"))
}
