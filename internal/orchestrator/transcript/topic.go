package transcript

import (
	"strings"
	"unicode"
)

// DefaultTopic labels text no rule matches.
const DefaultTopic = "General Discussion"

// OptionsTopic is the numeric + option-word fallback label.
const OptionsTopic = "Options & Decisions"

type topicRule struct {
	label    string
	keywords []string
}

// Rules are checked in order; the first reaching two distinct hits wins.
var topicRules = []topicRule{
	{"Project Planning", []string{"plan", "timeline", "deadline", "milestone", "roadmap", "sprint", "schedule", "deliverable", "scope"}},
	{"Technical Discussion", []string{"code", "bug", "deploy", "server", "api", "database", "release", "build", "architecture", "latency"}},
	{"Budget & Finance", []string{"budget", "cost", "price", "revenue", "invoice", "expense", "funding", "spend", "dollar"}},
	{"Action Items", []string{"action", "follow", "assign", "todo", "owner", "task", "responsible", "deadline"}},
	{"Meeting Logistics", []string{"agenda", "meeting", "call", "calendar", "reschedule", "attendee", "minutes", "invite"}},
	{"Customer & Sales", []string{"customer", "client", "sales", "deal", "contract", "prospect", "demo", "pricing"}},
}

var optionWords = []string{"option", "choice", "alternative", "either", "versus", "vs", "pick", "decide", "decision"}

// Classify returns the topic label for text.
func Classify(text string) string {
	tokens := tokenize(text)
	for _, rule := range topicRules {
		if hits(tokens, rule.keywords) >= 2 {
			return rule.label
		}
	}
	if strings.ContainsFunc(text, unicode.IsDigit) && hits(tokens, optionWords) >= 1 {
		return OptionsTopic
	}
	return DefaultTopic
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// hits counts distinct keywords that prefix some token ("deploying" hits "deploy").
func hits(tokens, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		for _, tok := range tokens {
			if tok == kw || (len(kw) >= 4 && strings.HasPrefix(tok, kw)) {
				n++
				break
			}
		}
	}
	return n
}
