package normalize

import (
	"log/slog"

	"github.com/Veraticus/product-normalizer/internal/model"
	"github.com/Veraticus/product-normalizer/internal/reftable"
)

// Stats summarizes a normalization run.
type Stats struct {
	Counts           map[model.MatchMethod]int
	Total            int
	UniqueOriginal   int
	UniqueNormalized int
	MeanScore        float64
}

// Percentage returns the share of rows resolved by method, 0 to 100.
func (s Stats) Percentage(method model.MatchMethod) float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Counts[method]) * 100 / float64(s.Total)
}

// Resolved counts rows labelled from the reference table.
func (s Stats) Resolved() int {
	return s.Counts[model.MethodExact] + s.Counts[model.MethodFuzzy]
}

// NormalizeDataset matches every row. Each distinct description is matched
// once and the result shared by all rows carrying it. Rows without a
// description column become EmptyInput.
func (m *Matcher) NormalizeDataset(items []model.LineItem, table *reftable.Table, threshold float64) ([]model.NormalizedItem, Stats) {
	memo := make(map[string]model.MatchResult)
	out := make([]model.NormalizedItem, len(items))

	for i, item := range items {
		var result model.MatchResult
		switch {
		case item.DescriptionMissing:
			result = model.MatchResult{Method: model.MethodEmptyInput}
		default:
			cached, ok := memo[item.Description]
			if !ok {
				cached = m.Match(item.Description, table, threshold)
				memo[item.Description] = cached
			}
			result = cached
		}
		out[i] = model.NormalizedItem{LineItem: item, Result: result}
	}

	stats := ComputeStats(out)
	slog.Debug("Normalized dataset",
		"rows", stats.Total,
		"unique_descriptions", len(memo),
		"exact", stats.Counts[model.MethodExact],
		"fuzzy", stats.Counts[model.MethodFuzzy],
		"no_match", stats.Counts[model.MethodNoMatch])

	return out, stats
}

// NormalizeDataset normalizes items with the default scorer.
func NormalizeDataset(items []model.LineItem, table *reftable.Table, threshold float64) ([]model.NormalizedItem, Stats) {
	return defaultMatcher.NormalizeDataset(items, table, threshold)
}

// ComputeStats derives run statistics from normalized rows.
func ComputeStats(items []model.NormalizedItem) Stats {
	stats := Stats{
		Counts: make(map[model.MatchMethod]int, len(model.AllMethods)),
		Total:  len(items),
	}
	if len(items) == 0 {
		return stats
	}

	originals := make(map[string]struct{})
	labels := make(map[string]struct{})
	var sum float64

	for _, item := range items {
		stats.Counts[item.Result.Method]++
		sum += item.Result.Score
		if !item.DescriptionMissing && item.Description != "" {
			originals[item.Description] = struct{}{}
		}
		if item.Result.Label != "" {
			labels[item.Result.Label] = struct{}{}
		}
	}

	stats.MeanScore = sum / float64(len(items))
	stats.UniqueOriginal = len(originals)
	stats.UniqueNormalized = len(labels)
	return stats
}
