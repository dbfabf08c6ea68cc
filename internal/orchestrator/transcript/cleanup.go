package transcript

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	fillerRe   = regexp.MustCompile(`(?i)\b(?:u+m+|u+h+|e+r+m*|a+h+|h+m+|m+h*m+|you know)\b[,]?`)
	spaceRe    = regexp.MustCompile(`\s+`)
	prePunctRe = regexp.MustCompile(`\s+([,.!?;:])`)
	loneIRe    = regexp.MustCompile(`\bi\b`)
)

// contractions maps informal spoken forms to their written equivalents.
var contractions = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(?i)\bgonna\b`), "going to"},
	{regexp.MustCompile(`(?i)\bwanna\b`), "want to"},
	{regexp.MustCompile(`(?i)\bgotta\b`), "got to"},
	{regexp.MustCompile(`(?i)\bkinda\b`), "kind of"},
	{regexp.MustCompile(`(?i)\bsorta\b`), "sort of"},
	{regexp.MustCompile(`(?i)\bdunno\b`), "don't know"},
	{regexp.MustCompile(`(?i)\blemme\b`), "let me"},
	{regexp.MustCompile(`(?i)\bgimme\b`), "give me"},
	{regexp.MustCompile(`(?i)\by'all\b`), "you all"},
	{regexp.MustCompile(`(?i)(?:\bcuz\b|'cause\b)`), "because"},
	{regexp.MustCompile(`(?i)\bain't\b`), "isn't"},
}

// Clean normalizes raw engine text. It is applied exactly once per fragment.
func Clean(text string) string {
	s := fillerRe.ReplaceAllString(text, "")
	for _, c := range contractions {
		s = c.re.ReplaceAllString(s, c.repl)
	}
	s = collapseRepeats(s)
	s = spaceRe.ReplaceAllString(s, " ")
	s = prePunctRe.ReplaceAllString(s, "$1")
	s = strings.TrimLeft(strings.TrimSpace(s), ",;: ")
	s = loneIRe.ReplaceAllString(s, "I")
	return capitalizeSentences(s)
}

// collapseRepeats drops immediately repeated words ("the the the" -> "the").
func collapseRepeats(s string) string {
	words := strings.Fields(s)
	out := words[:0]
	prev := ""
	for _, w := range words {
		key := strings.ToLower(strings.TrimFunc(w, unicode.IsPunct))
		if key != "" && key == prev {
			// keep trailing punctuation of the dropped repeat
			if p := trailingPunct(w); p != "" && len(out) > 0 && trailingPunct(out[len(out)-1]) == "" {
				out[len(out)-1] += p
			}
			continue
		}
		out = append(out, w)
		prev = key
	}
	return strings.Join(out, " ")
}

func trailingPunct(w string) string {
	i := len(w)
	for i > 0 && strings.ContainsRune(".,!?;:", rune(w[i-1])) {
		i--
	}
	return w[i:]
}

func capitalizeSentences(s string) string {
	r := []rune(s)
	start := true
	for i, c := range r {
		switch {
		case start && unicode.IsLetter(c):
			r[i] = unicode.ToUpper(c)
			start = false
		case c == '.' || c == '!' || c == '?':
			start = true
		case unicode.IsLetter(c) || unicode.IsDigit(c):
			start = false
		}
	}
	return string(r)
}

// joinText appends a cleaned fragment to a segment's text.
func joinText(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}
