package orchestrator

import (
	"fmt"
	"strings"

	"support-assistant/pkg/models"
)

// ClarifyingMarker appears in every clarifying reply and in nothing else the
// assistant says. The clarification count is derived from it.
const ClarifyingMarker = "please provide more details"

func IsClarifying(text string) bool {
	return strings.Contains(strings.ToLower(text), ClarifyingMarker)
}

// CountClarifications counts consecutive clarifying assistant turns at the
// tail of the context. User turns in between do not break the run.
func CountClarifications(turns []models.Turn) int {
	count := 0
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role != models.RoleAssistant {
			continue
		}
		if !IsClarifying(turns[i].Content) {
			break
		}
		count++
	}
	return count
}

func clarifyingFor(question string) string {
	return fmt.Sprintf(weakHitClarifying, strings.TrimSpace(question))
}
