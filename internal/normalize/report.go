package normalize

import (
	"sort"

	"github.com/Veraticus/product-normalizer/internal/model"
	"github.com/shopspring/decimal"
)

// QualityRow aggregates every row sharing an (original, normalized, method) triple.
type QualityRow struct {
	Volume     decimal.Decimal
	Original   string
	Normalized string
	Method     model.MatchMethod
	Score      float64
	Rows       int
	Percentage float64
}

type qualityKey struct {
	original   string
	normalized string
	method     model.MatchMethod
}

// QualityReport groups normalized rows by triple, summing their volume, and
// returns the groups by descending volume. Ties keep first-appearance order.
func QualityReport(items []model.NormalizedItem) []QualityRow {
	index := make(map[qualityKey]int)
	var rows []QualityRow
	total := decimal.Zero

	for _, item := range items {
		key := qualityKey{
			original:   item.Description,
			normalized: item.Result.Label,
			method:     item.Result.Method,
		}
		vol := item.Volume()
		total = total.Add(vol)

		if i, ok := index[key]; ok {
			rows[i].Volume = rows[i].Volume.Add(vol)
			rows[i].Rows++
			continue
		}
		index[key] = len(rows)
		rows = append(rows, QualityRow{
			Original:   key.original,
			Normalized: key.normalized,
			Method:     key.method,
			Score:      item.Result.Score,
			Volume:     vol,
			Rows:       1,
		})
	}

	if !total.IsZero() {
		for i := range rows {
			rows[i].Percentage = rows[i].Volume.Div(total).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Volume.GreaterThan(rows[j].Volume)
	})
	return rows
}
