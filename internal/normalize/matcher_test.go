package normalize

import (
	"testing"

	"github.com/Veraticus/product-normalizer/internal/model"
	"github.com/Veraticus/product-normalizer/internal/reftable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constScorer(score float64) func(a, b string) float64 {
	return func(_, _ string) float64 { return score }
}

func TestMatch_Scenarios(t *testing.T) {
	tests := []struct {
		name      string
		table     *reftable.Table
		input     string
		threshold float64
		want      model.MatchResult
		minScore  float64
	}{
		{
			name: "case-insensitive exact",
			table: reftable.New([]model.ReferenceEntry{
				{Variant: "Coca Cola 600ml", Base: "Coca-Cola"},
				{Variant: "COCA-COLA 600 ML", Base: "Coca-Cola"},
			}),
			input:     "coca cola 600ml",
			threshold: 75,
			want: model.MatchResult{
				Label:          "Coca-Cola",
				Method:         model.MethodExact,
				MatchedVariant: "Coca Cola 600ml",
				Score:          100,
			},
		},
		{
			name:      "empty table passes through",
			table:     reftable.New(nil),
			input:     "Producto X",
			threshold: 75,
			want:      model.MatchResult{Label: "Producto X", Method: model.MethodNoMatch},
		},
		{
			name:      "nil table passes through trimmed",
			table:     nil,
			input:     "  Producto X ",
			threshold: 75,
			want:      model.MatchResult{Label: "Producto X", Method: model.MethodNoMatch},
		},
		{
			name:      "whitespace only",
			table:     reftable.New([]model.ReferenceEntry{{Variant: "a", Base: "b"}}),
			input:     " \t ",
			threshold: 75,
			want:      model.MatchResult{Method: model.MethodEmptyInput},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Match(tt.input, tt.table, tt.threshold)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatch_FuzzyTokenSort(t *testing.T) {
	table := reftable.New([]model.ReferenceEntry{{Variant: "Pepsi Lata 354", Base: "Pepsi"}})

	got := Match("PEPSI LATA 354CC", table, 75)

	assert.Equal(t, model.MethodFuzzy, got.Method)
	assert.Equal(t, "Pepsi", got.Label)
	assert.Equal(t, "Pepsi Lata 354", got.MatchedVariant)
	assert.GreaterOrEqual(t, got.Score, 75.0)
}

func TestMatch_BelowThresholdKeepsBestScore(t *testing.T) {
	table := reftable.New([]model.ReferenceEntry{{Variant: "Fernet Branca 750", Base: "Fernet"}})

	got := Match("Harina 000 1kg", table, 75)

	assert.Equal(t, model.MethodNoMatch, got.Method)
	assert.Equal(t, "Harina 000 1kg", got.Label)
	assert.Less(t, got.Score, 75.0)
	assert.Empty(t, got.MatchedVariant)
}

func TestMatch_ThresholdIsInclusive(t *testing.T) {
	table := reftable.New([]model.ReferenceEntry{{Variant: "alpha", Base: "A"}})

	atThreshold := NewMatcher(constScorer(75)).Match("beta", table, 75)
	assert.Equal(t, model.MethodFuzzy, atThreshold.Method)
	assert.Equal(t, "A", atThreshold.Label)
	assert.InDelta(t, 75.0, atThreshold.Score, 0)

	below := NewMatcher(constScorer(74.99)).Match("beta", table, 75)
	assert.Equal(t, model.MethodNoMatch, below.Method)
	assert.Equal(t, "beta", below.Label)
}

func TestMatch_ExactWinsOverBetterFuzzy(t *testing.T) {
	table := reftable.New([]model.ReferenceEntry{
		{Variant: "agua mineral 500", Base: "Agua 500"},
		{Variant: "AGUA MINERAL", Base: "Agua generica"},
	})

	// A scorer that prefers the first variant must not override the exact hit.
	scorer := func(_, b string) float64 {
		if b == "agua mineral 500" {
			return 100
		}
		return 10
	}
	got := NewMatcher(scorer).Match("Agua Mineral", table, 50)

	assert.Equal(t, model.MethodExact, got.Method)
	assert.Equal(t, "Agua generica", got.Label)
	assert.InDelta(t, 100.0, got.Score, 0)
}

func TestMatch_Idempotent(t *testing.T) {
	table := reftable.New([]model.ReferenceEntry{
		{Variant: "Pepsi Lata 354", Base: "Pepsi"},
		{Variant: "Sprite Lata 354", Base: "Sprite"},
	})

	for _, input := range []string{"pepsi lata", "SPRITE 354", "", "Harina"} {
		first := Match(input, table, 60)
		second := Match(input, table, 60)
		assert.Equal(t, first, second, input)
	}
}

func TestMatch_DuplicateVariantUsesLastBase(t *testing.T) {
	table := reftable.New([]model.ReferenceEntry{
		{Variant: "Quilmes 1L", Base: "Quilmes viejo"},
		{Variant: "Quilmes 1L", Base: "Cerveza Quilmes 1 l"},
	})

	got := Match("quilmes 1l", table, 75)
	require.Equal(t, model.MethodExact, got.Method)
	assert.Equal(t, "Cerveza Quilmes 1 l", got.Label)
}
