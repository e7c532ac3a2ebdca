package skills

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// token is a normalized word of the input text.
type token struct {
	text     string
	sentence int
	// glued reports that only spaces or hyphens separate the token from the
	// previous one in the same sentence. Phrases match across glued tokens only.
	glued bool
}

var (
	folder      = cases.Fold()
	quoteMapper = strings.NewReplacer("‘", "'", "’", "'", "‐", "-", "‑", "-", "–", "-")
)

func normalize(s string) string {
	return folder.String(norm.NFKC.String(quoteMapper.Replace(s)))
}

func isTokenRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) {
		return true
	}
	switch r {
	case '+', '#', '.', '_', '/', '\'', '&':
		return true
	}
	return false
}

// scan splits s into normalized tokens. Slashes and periods inside tokens are
// kept; splitCompound decides on them.
func scan(s string) []token {
	var (
		toks     []token
		buf      strings.Builder
		sentence int
		broken   = true
	)

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		text, endsSentence := cleanToken(buf.String())
		buf.Reset()
		if text != "" {
			toks = append(toks, token{text: text, sentence: sentence, glued: !broken})
			broken = false
		}
		if endsSentence {
			sentence++
			broken = true
		}
	}

	for _, r := range normalize(s) {
		switch {
		case isTokenRune(r):
			buf.WriteRune(r)
		case r == '\n' || r == '\r' || r == '!' || r == '?' || r == ';':
			flush()
			sentence++
			broken = true
		case r == '-' || unicode.IsSpace(r):
			flush()
		default:
			flush()
			broken = true
		}
	}
	flush()

	return toks
}

// cleanToken trims punctuation that belongs to the surrounding prose and
// reports whether the token closed a sentence with a period.
func cleanToken(raw string) (string, bool) {
	text := strings.TrimRight(raw, "./'&")
	endsSentence := strings.Contains(raw[len(text):], ".")

	text = strings.TrimSuffix(text, "'s")
	text = strings.TrimRight(text, "'")
	text = strings.TrimLeft(text, "/'&#")
	if strings.HasPrefix(text, "..") {
		text = strings.TrimLeft(text, ".")
	}
	text = strings.TrimRight(text, "/")

	return text, endsSentence
}

// splitCompound breaks tokens joined by inner slashes or periods, as in
// "python/django" or "java.also" from text that lost its spaces. The longest
// runs that form a known token such as "ci/cd" or "node.js" stay whole. A
// period split starts a new sentence for every later token.
func splitCompound(toks []token, known map[string]bool) []token {
	out := make([]token, 0, len(toks))
	shift := 0
	for _, t := range toks {
		t.sentence += shift
		parts, seps := compoundParts(t.text)
		if len(parts) == 1 || known[t.text] {
			out = append(out, t)
			continue
		}

		sentence, glued := t.sentence, t.glued
		for i := 0; i < len(parts); {
			j := i
			for k := len(parts) - 1; k > i; k-- {
				if known[joinParts(parts[i:k+1], seps[i:k])] {
					j = k
					break
				}
			}
			out = append(out, token{text: joinParts(parts[i:j+1], seps[i:j]), sentence: sentence, glued: glued})
			if j+1 < len(parts) && seps[j] == '.' {
				sentence++
				shift++
			}
			glued = false
			i = j + 1
		}
	}
	return out
}

// compoundParts splits s at slashes and periods that sit between two word
// characters. Decimal points like "3.5" are not split points.
func compoundParts(s string) (parts []string, seps []byte) {
	start := 0
	for i := 1; i < len(s)-1; i++ {
		c := s[i]
		if c != '/' && c != '.' {
			continue
		}
		prev, next := s[i-1], s[i+1]
		if isCompoundSep(prev) || isCompoundSep(next) {
			continue
		}
		if c == '.' && isASCIIDigit(prev) && isASCIIDigit(next) {
			continue
		}
		parts = append(parts, s[start:i])
		seps = append(seps, c)
		start = i + 1
	}
	return append(parts, s[start:]), seps
}

func joinParts(parts []string, seps []byte) string {
	var b strings.Builder
	for i, part := range parts {
		if i > 0 {
			b.WriteByte(seps[i-1])
		}
		b.WriteString(part)
	}
	return b.String()
}

func isCompoundSep(c byte) bool { return c == '/' || c == '.' }

func isASCIIDigit(c byte) bool { return c >= '0' && c <= '9' }

// phraseKey normalizes an alias into the key used by the alias index.
func phraseKey(s string) string {
	toks := scan(s)
	words := make([]string, len(toks))
	for i, t := range toks {
		words[i] = t.text
	}
	return strings.Join(words, " ")
}
