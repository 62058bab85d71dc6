// Package similarity scores how alike two product descriptions are on a 0-100 scale.
package similarity

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// units are glued to a preceding number so "600 ml" and "600ml" compare equal.
var units = map[string]bool{
	"ml": true, "cc": true, "cm3": true,
	"l": true, "lt": true, "lts": true, "ltr": true,
	"kg": true, "g": true, "gr": true, "grs": true,
	"un": true, "u": true,
}

// Process canonicalizes a description before scoring: lower case, accents
// folded, punctuation replaced by spaces, whitespace collapsed and quantities
// glued to their unit. Decimal separators between digits are kept as '.'.
func Process(s string) string {
	lowered := strings.ToLower(s)
	folded, _, err := transform.String(foldAccents, lowered)
	if err != nil {
		folded = lowered
	}

	rs := []rune(folded)
	var b strings.Builder
	b.Grow(len(folded))
	for i, r := range rs {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case (r == '.' || r == ',') && i > 0 && i+1 < len(rs) && unicode.IsDigit(rs[i-1]) && unicode.IsDigit(rs[i+1]):
			b.WriteRune('.')
		default:
			b.WriteRune(' ')
		}
	}

	return strings.Join(glueUnits(strings.Fields(b.String())), " ")
}

func glueUnits(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		if i+1 < len(tokens) && isNumber(tokens[i]) && units[tokens[i+1]] {
			out = append(out, tokens[i]+tokens[i+1])
			i++
			continue
		}
		out = append(out, tokens[i])
	}
	return out
}

func isNumber(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if r != '.' && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
