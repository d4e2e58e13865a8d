package escalation

import (
	"regexp"
	"strings"
)

// inflection is the only suffix a plain keyword may carry: "refund" matches
// "refunded" but "sue" does not match "suede".
const inflection = `(?:s|es|d|ed|ing)?\b`

// CompileKeywords builds a case-insensitive whole-word matcher. A keyword
// ending in "*" is a stem and matches any continuation ("complain*" matches
// "complaint"). Multi-word keywords tolerate any run of whitespace.
// It returns nil when no usable keyword is given.
func CompileKeywords(keywords []string) *regexp.Regexp {
	alternatives := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(strings.ToLower(kw))
		stem := strings.HasSuffix(kw, "*")
		kw = strings.TrimSpace(strings.TrimSuffix(kw, "*"))
		if kw == "" {
			continue
		}

		words := strings.Fields(kw)
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}

		suffix := inflection
		if stem {
			suffix = `\w*`
		}
		alternatives = append(alternatives, strings.Join(words, `\s+`)+suffix)
	}
	if len(alternatives) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(alternatives, "|") + `)`)
}
