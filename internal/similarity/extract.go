package similarity

// Match is the best candidate found by ExtractOne.
type Match struct {
	Candidate string
	Index     int
	Score     float64
}

// ExtractOne returns the highest scoring candidate for query. Equal scores keep
// the earliest candidate. It reports false when there are no candidates.
func ExtractOne(query string, candidates []string, scorer Scorer) (Match, bool) {
	if len(candidates) == 0 {
		return Match{}, false
	}

	best := Match{Index: -1, Score: -1}
	for i, candidate := range candidates {
		score := scorer(query, candidate)
		if score > best.Score {
			best = Match{Candidate: candidate, Index: i, Score: score}
			if score >= 100 {
				break
			}
		}
	}
	return best, true
}
