// Package normalize maps raw invoice descriptions to canonical product names
// using a reference table, and feeds confident matches back into that table.
package normalize

import (
	"strings"

	"github.com/Veraticus/product-normalizer/internal/model"
	"github.com/Veraticus/product-normalizer/internal/reftable"
	"github.com/Veraticus/product-normalizer/internal/similarity"
)

// DefaultThreshold is the minimum fuzzy score accepted by Match.
const DefaultThreshold = 75

// Matcher resolves single descriptions against a reference table.
type Matcher struct {
	scorer similarity.Scorer
}

// NewMatcher creates a matcher using scorer, or token-sort ratio when nil.
func NewMatcher(scorer similarity.Scorer) *Matcher {
	if scorer == nil {
		scorer = similarity.TokenSortRatio
	}
	return &Matcher{scorer: scorer}
}

var defaultMatcher = NewMatcher(nil)

// Match resolves description with the default scorer.
func Match(description string, table *reftable.Table, threshold float64) model.MatchResult {
	return defaultMatcher.Match(description, table, threshold)
}

// Match tries an exact case-insensitive variant lookup first, then the best
// fuzzy candidate. A fuzzy score equal to threshold is accepted. A nil table
// passes every description through as NoMatch.
func (m *Matcher) Match(description string, table *reftable.Table, threshold float64) model.MatchResult {
	desc := strings.TrimSpace(description)
	if desc == "" {
		return model.MatchResult{Method: model.MethodEmptyInput}
	}

	if variant, ok := table.LookupFold(desc); ok {
		base, _ := table.BaseOf(variant)
		return model.MatchResult{
			Label:          base,
			Method:         model.MethodExact,
			MatchedVariant: variant,
			Score:          100,
		}
	}

	best, ok := similarity.ExtractOne(desc, table.Variants(), m.scorer)
	if !ok {
		return model.MatchResult{Label: desc, Method: model.MethodNoMatch}
	}

	if best.Score >= threshold {
		base, _ := table.BaseOf(best.Candidate)
		return model.MatchResult{
			Label:          base,
			Method:         model.MethodFuzzy,
			MatchedVariant: best.Candidate,
			Score:          best.Score,
		}
	}

	return model.MatchResult{Label: desc, Method: model.MethodNoMatch, Score: best.Score}
}
