package lineitem

import (
	"sort"

	"github.com/Veraticus/product-normalizer/internal/model"
	"github.com/shopspring/decimal"
)

// ParetoCategory buckets a description by its cumulative share of weighted volume.
type ParetoCategory string

// Pareto categories, from the head of the distribution to its tail.
const (
	ParetoExcellent ParetoCategory = "Excelente"
	ParetoVeryGood  ParetoCategory = "Muy Bueno"
	ParetoGood      ParetoCategory = "Bueno"
	ParetoRegular   ParetoCategory = "Regular"
	ParetoNoise     ParetoCategory = "Ruido"
)

// Frequency is the Pareto row of one distinct description.
type Frequency struct {
	Quantity       decimal.Decimal
	WeightedVolume decimal.Decimal
	Description    string
	Category       ParetoCategory
	Count          int
	Percentile     float64
}

// CategoryFor maps a cumulative percentile to its category.
func CategoryFor(percentile float64) ParetoCategory {
	switch {
	case percentile <= 40:
		return ParetoExcellent
	case percentile <= 60:
		return ParetoVeryGood
	case percentile <= 80:
		return ParetoGood
	case percentile <= 95:
		return ParetoRegular
	default:
		return ParetoNoise
	}
}

// Pareto groups items by description and ranks them by weighted volume
// (occurrences times summed quantity), descending. When every weighted volume
// is zero the occurrence count is used instead.
func Pareto(items []model.LineItem) []Frequency {
	index := make(map[string]int)
	var freqs []Frequency

	for _, item := range items {
		if item.DescriptionMissing || item.Description == "" {
			continue
		}
		i, ok := index[item.Description]
		if !ok {
			i = len(freqs)
			index[item.Description] = i
			freqs = append(freqs, Frequency{Description: item.Description})
		}
		freqs[i].Count++
		freqs[i].Quantity = freqs[i].Quantity.Add(item.Quantity)
	}

	total := decimal.Zero
	for i := range freqs {
		freqs[i].WeightedVolume = freqs[i].Quantity.Mul(decimal.NewFromInt(int64(freqs[i].Count)))
		total = total.Add(freqs[i].WeightedVolume)
	}
	if total.IsZero() {
		for i := range freqs {
			freqs[i].WeightedVolume = decimal.NewFromInt(int64(freqs[i].Count))
			total = total.Add(freqs[i].WeightedVolume)
		}
	}

	sort.SliceStable(freqs, func(i, j int) bool {
		return freqs[i].WeightedVolume.GreaterThan(freqs[j].WeightedVolume)
	})

	if total.IsZero() {
		return freqs
	}

	cumulative := decimal.Zero
	hundred := decimal.NewFromInt(100)
	for i := range freqs {
		cumulative = cumulative.Add(freqs[i].WeightedVolume)
		freqs[i].Percentile = cumulative.Div(total).Mul(hundred).InexactFloat64()
		freqs[i].Category = CategoryFor(freqs[i].Percentile)
	}
	return freqs
}

// Counts returns the occurrence count of each description.
func Counts(freqs []Frequency) map[string]int {
	out := make(map[string]int, len(freqs))
	for _, f := range freqs {
		out[f.Description] = f.Count
	}
	return out
}
