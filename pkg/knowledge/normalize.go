package knowledge

import (
	"strings"
	"unicode"
)

// Normalize lower-cases text, drops everything that is not an ASCII letter,
// digit or whitespace and collapses whitespace runs. Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))

	pendingSpace := false
	for _, r := range strings.ToLower(text) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			pendingSpace = false
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			pendingSpace = true
		}
	}

	return sb.String()
}

// Similarity is the Dice coefficient over character bigrams of two normalized
// strings with whitespace removed. Strings that share no token score 0.
func Similarity(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	if !shareToken(a, b) {
		return 0
	}

	first := strings.ReplaceAll(a, " ", "")
	second := strings.ReplaceAll(b, " ", "")
	if first == second {
		return 1
	}
	if len(first) < 2 || len(second) < 2 {
		return 0
	}

	bigrams := make(map[string]int, len(first))
	for i := 0; i < len(first)-1; i++ {
		bigrams[first[i:i+2]]++
	}

	intersection := 0
	for i := 0; i < len(second)-1; i++ {
		bg := second[i : i+2]
		if count := bigrams[bg]; count > 0 {
			bigrams[bg] = count - 1
			intersection++
		}
	}

	score := 2 * float64(intersection) / float64(len(first)+len(second)-2)
	if score > 1 {
		return 1
	}
	return score
}

func shareToken(a, b string) bool {
	tokens := make(map[string]struct{})
	for _, t := range strings.Fields(a) {
		tokens[t] = struct{}{}
	}
	for _, t := range strings.Fields(b) {
		if _, ok := tokens[t]; ok {
			return true
		}
	}
	return false
}
