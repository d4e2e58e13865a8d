package orchestrator

import (
	"fmt"
	"strings"

	"support-assistant/pkg/models"
)

const (
	summaryUserWords      = 12
	summaryAssistantWords = 20
	fallbackSummaryLines  = 10
	fallbackSummaryChars  = 300

	escalationAdvisory = " The conversation includes a request or keyword that may require human escalation."
)

// IsSummaryRequest reports whether a message asks for a summary of the conversation
func IsSummaryRequest(message string) bool {
	low := strings.ToLower(strings.TrimSpace(message))
	return strings.Contains(low, "summar") || strings.HasPrefix(low, "please write a concise")
}

// Summarize builds a one or two sentence summary from tagged lines in text
// ("user: ..." / "assistant: ..."). Without tagged lines the turns are used.
// It is a pure text transform.
func (o *Orchestrator) Summarize(text string, turns []models.Turn) string {
	userLines, assistantLines := taggedLines(text)
	if len(userLines) == 0 && len(assistantLines) == 0 && len(turns) > 0 {
		userLines, assistantLines = taggedLines(RenderTranscript(turns))
	}

	if len(userLines) == 0 && len(assistantLines) == 0 {
		return foldSummary(text)
	}

	var firstUser string
	if len(userLines) > 0 {
		firstUser = userLines[0]
	}
	summary := fmt.Sprintf("User asked about: %q.", firstWords(firstUser, summaryUserWords))

	firstAssistant := ""
	for _, line := range assistantLines {
		if len(line) > 5 {
			firstAssistant = line
			break
		}
	}
	if firstAssistant == "" && len(assistantLines) > 0 {
		firstAssistant = assistantLines[0]
	}

	if firstAssistant != "" {
		short := firstWords(firstAssistant, summaryAssistantWords)
		if len(strings.Fields(firstAssistant)) > summaryAssistantWords {
			short += "..."
		}
		summary += fmt.Sprintf(" Assistant responded: %q.", short)
	} else {
		summary += " No assistant response recorded."
	}

	combined := strings.Join(userLines, " ") + " " + strings.Join(assistantLines, " ")
	if o.policy.HasSensitiveKeyword(combined) {
		summary += escalationAdvisory
	}

	return summary
}

// RenderTranscript renders turns as "role: content" lines
func RenderTranscript(turns []models.Turn) string {
	lines := make([]string, 0, len(turns))
	for _, turn := range turns {
		lines = append(lines, fmt.Sprintf("%s: %s", turn.Role, strings.ReplaceAll(turn.Content, "\n", " ")))
	}
	return strings.Join(lines, "\n")
}

func taggedLines(text string) (userLines, assistantLines []string) {
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		low := strings.ToLower(line)
		switch {
		case strings.HasPrefix(low, "user:"):
			userLines = append(userLines, strings.TrimSpace(line[len("user:"):]))
		case strings.HasPrefix(low, "assistant:"):
			assistantLines = append(assistantLines, strings.TrimSpace(line[len("assistant:"):]))
		case strings.HasPrefix(low, "u:"):
			userLines = append(userLines, strings.TrimSpace(line[len("u:"):]))
		case strings.HasPrefix(low, "a:"):
			assistantLines = append(assistantLines, strings.TrimSpace(line[len("a:"):]))
		}
	}
	return userLines, assistantLines
}

func foldSummary(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) > fallbackSummaryLines {
		lines = lines[:fallbackSummaryLines]
	}
	folded := strings.Join(strings.Fields(strings.Join(lines, " ")), " ")
	if folded == "" {
		return "Conversation summary: no messages recorded."
	}
	if cut := truncateRunes(folded, fallbackSummaryChars); cut != folded {
		folded = cut + "..."
	}
	return "Conversation summary: " + folded
}

func firstWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
