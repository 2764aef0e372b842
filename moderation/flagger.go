package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Flagger detects configured terms in chat lines. It only reports matches:
// the broadcast text is never altered, since clients must always receive
// the raw attributed line before any correction notice.
type Flagger struct {
	matcher  *goahocorasick.Machine
	patterns [][]rune
}

// NewFlagger builds the Aho-Corasick automaton over a normalized version
// of the provided word list. An empty list yields a flagger that matches
// nothing, which is a valid configuration.
func NewFlagger(words []string) (Flagger, error) {
	if len(words) == 0 {
		return Flagger{}, nil
	}
	patterns := make([][]rune, len(words))
	for i, word := range words {
		patterns[i] = normalizeRunes([]rune(word))
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return Flagger{}, err
	}
	return Flagger{matcher: m, patterns: patterns}, nil
}

// Flag returns the flagged terms found in the input, normalized form.
func (f *Flagger) Flag(text string) []string {
	if f.matcher == nil {
		return nil
	}
	normalized := normalizeRunes([]rune(text))
	if len(normalized) == 0 {
		return nil
	}
	spans := f.matcher.MultiPatternSearch(normalized, false)
	found := make([]string, 0, len(spans))
	for _, span := range spans {
		found = append(found, string(span.Word))
	}
	return found
}

// normalizeRunes lowers the input and strips punctuation, spacing and
// common leet substitutions so obfuscated variants still match.
func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
