package similarity

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/hbollon/go-edlib"
)

// ErrUnknownScorer is returned by ScorerByName for names it does not recognize.
var ErrUnknownScorer = errors.New("unknown scorer")

// Scorer returns a symmetric similarity between two descriptions, 0 to 100.
type Scorer func(a, b string) float64

// Scorer names accepted in configuration.
const (
	NameTokenSort   = "token_sort"
	NameRatio       = "ratio"
	NamePartial     = "partial"
	NameLevenshtein = "levenshtein"
)

// ScorerByName resolves a configured scorer name.
func ScorerByName(name string) (Scorer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameTokenSort, "token_sort_ratio":
		return TokenSortRatio, nil
	case NameRatio:
		return Ratio, nil
	case NamePartial, "partial_ratio":
		return PartialRatio, nil
	case NameLevenshtein:
		return LevenshteinRatio, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScorer, name)
	}
}

// Ratio is the normalized indel similarity of the processed strings.
func Ratio(a, b string) float64 {
	pa, pb := Process(a), Process(b)
	if pa == "" || pb == "" {
		return 0
	}
	return indelRatio(pa, pb)
}

// TokenSortRatio compares the processed strings after sorting their words, so
// "LATA PEPSI" and "pepsi lata" score 100.
func TokenSortRatio(a, b string) float64 {
	pa, pb := sortTokens(Process(a)), sortTokens(Process(b))
	if pa == "" || pb == "" {
		return 0
	}
	return indelRatio(pa, pb)
}

// PartialRatio scores the shorter string against its best aligned window of the longer one.
func PartialRatio(a, b string) float64 {
	short, long := []rune(Process(a)), []rune(Process(b))
	if len(short) == 0 || len(long) == 0 {
		return 0
	}
	if len(short) > len(long) {
		short, long = long, short
	}

	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		score := indelRatio(string(short), string(long[i:i+len(short)]))
		if score > best {
			best = score
			if best == 100 {
				break
			}
		}
	}
	return best
}

// LevenshteinRatio is one minus the edit distance over the longer length.
func LevenshteinRatio(a, b string) float64 {
	pa, pb := Process(a), Process(b)
	if pa == "" || pb == "" {
		return 0
	}
	longest := max(len([]rune(pa)), len([]rune(pb)))
	dist := levenshtein.ComputeDistance(pa, pb)
	return 100 * (1 - float64(dist)/float64(longest))
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// indelRatio is 200*LCS/(len(a)+len(b)) over runes, the insert/delete-only
// edit similarity.
func indelRatio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 0
	}
	return 200 * float64(edlib.LCS(a, b)) / float64(total)
}
