// Package textsim normalizes free text and scores how similar two texts are.
package textsim

import "strings"

// Normalize lowercases s and keeps only Arabic letters (U+0600..U+06FF),
// Latin a-z, digits and whitespace. Every other rune becomes a space, runs of
// whitespace collapse to one space and the result is trimmed.
func Normalize(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range s {
		if keep(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// NormalizeAny is Normalize for loosely typed input; non-strings normalize to "".
func NormalizeAny(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return Normalize(s)
}

func keep(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r >= 0x0600 && r <= 0x06FF:
		return true
	}
	return false
}

// Tokens returns the whitespace separated tokens of the normalized text.
func Tokens(s string) []string {
	return strings.Fields(Normalize(s))
}

// TokenSet returns the distinct normalized tokens of s.
func TokenSet(s string) map[string]struct{} {
	toks := Tokens(s)
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return set
}

// Score is |A ∩ B| / max(|A|, |B|) over the token sets of a and b.
// It is 0 when either side has no tokens.
func Score(a, b string) float64 {
	sa, sb := TokenSet(a), TokenSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	small, large := sa, sb
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for t := range small {
		if _, ok := large[t]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(large))
}
