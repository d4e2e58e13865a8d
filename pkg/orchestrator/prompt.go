package orchestrator

import (
	"fmt"
	"regexp"
	"strings"

	"support-assistant/pkg/constants"
	"support-assistant/pkg/generation"
	"support-assistant/pkg/models"
)

const systemInstruction = "You are a helpful customer-support assistant. Answer the user's latest message " +
	"briefly and accurately. Prefer the retrieved knowledge when it is relevant and never mention its identifiers. " +
	"If you cannot answer confidently, say that you are not sure."

// identifierPrefix matches knowledge identifiers leaked at the start of a line:
// "FAQ:faq_1 ...", "[faq_1] ..." or "(faq_1) ..."
var identifierPrefix = regexp.MustCompile(`(?m)^[ \t]*(?:FAQ:[ \t]*[\w.\-]+|\[[\w.\-]+\]|\([\w.\-]+\))[ \t:]*`)

// StripIdentifiers removes leaked knowledge identifiers from generated text
func StripIdentifiers(text string) string {
	return strings.TrimSpace(identifierPrefix.ReplaceAllString(text, ""))
}

func (o *Orchestrator) buildRequest(userMessage string, recentTurns []models.Turn, hits []models.MatchResult) generation.Request {
	return generation.Request{
		System:      systemInstruction,
		Prompt:      BuildPrompt(userMessage, recentTurns, hits, o.settings.KnowledgeHits),
		MaxTokens:   o.settings.MaxTokens,
		Temperature: o.settings.Temperature,
	}
}

// BuildPrompt renders the top hits, the recent turns and the user message
func BuildPrompt(userMessage string, recentTurns []models.Turn, hits []models.MatchResult, maxHits int) string {
	var b strings.Builder

	if maxHits > 0 && len(hits) > maxHits {
		hits = hits[:maxHits]
	}
	if len(hits) > 0 {
		b.WriteString("Retrieved knowledge (use it if relevant):\n")
		for i, hit := range hits {
			fmt.Fprintf(&b, "%d) [%s] Q: %s\nA: %s\n\n", i+1, hit.Record.ID, hit.Record.Question,
				truncateRunes(hit.Record.Answer, constants.DefaultPromptAnswerMaxChars))
		}
	}

	if len(recentTurns) > 0 {
		b.WriteString("Context (recent messages):\n")
		for _, turn := range recentTurns {
			fmt.Fprintf(&b, "[%s] %s\n", turn.Role, turn.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "User: %s\nAssistant:", userMessage)
	return b.String()
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
