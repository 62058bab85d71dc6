// Package model defines the core domain models used throughout the application.
package model

// MatchMethod identifies how a description was resolved against the reference table.
type MatchMethod string

const (
	// MethodExact means the description equals a variant ignoring case.
	MethodExact MatchMethod = "Exact"
	// MethodFuzzy means the best fuzzy candidate cleared the acceptance threshold.
	MethodFuzzy MatchMethod = "Fuzzy"
	// MethodNoMatch means nothing cleared the threshold; the label is the trimmed input.
	MethodNoMatch MatchMethod = "NoMatch"
	// MethodEmptyInput means there was nothing to match.
	MethodEmptyInput MatchMethod = "EmptyInput"
)

// AllMethods lists every method in reporting order.
var AllMethods = []MatchMethod{MethodExact, MethodFuzzy, MethodNoMatch, MethodEmptyInput}

// MatchResult is the outcome of matching one raw description.
type MatchResult struct {
	Label          string      `json:"normalized_label"`
	Method         MatchMethod `json:"method"`
	MatchedVariant string      `json:"matched_variant,omitempty"`
	Score          float64     `json:"similarity_score"`
}

// Resolved reports whether the label came from the reference table.
func (r MatchResult) Resolved() bool {
	return r.Method == MethodExact || r.Method == MethodFuzzy
}
