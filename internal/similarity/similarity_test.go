package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lower case and punctuation", in: "Coca-Cola", want: "coca cola"},
		{name: "unit glued to quantity", in: "Coca-Cola 600 ml", want: "coca cola 600ml"},
		{name: "accents folded", in: "Jamón Cocido Paladini", want: "jamon cocido paladini"},
		{name: "decimal separator kept", in: "Agua 1,5 LT", want: "agua 1.5lt"},
		{name: "whitespace collapsed", in: "  Fernet   Branca  ", want: "fernet branca"},
		{name: "unit word alone is untouched", in: "caja un", want: "caja un"},
		{name: "empty", in: "  --  ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Process(tt.in))
		})
	}
}

func TestTokenSortRatio(t *testing.T) {
	assert.InDelta(t, 100.0, TokenSortRatio("LATA PEPSI", "pepsi lata"), 1e-9)
	assert.InDelta(t, 100.0, TokenSortRatio("Coca Cola 600ml", "Coca-Cola 600 ml"), 1e-9)
	// "354cc lata pepsi" vs "354 lata pepsi": LCS 14 over 30 runes.
	assert.InDelta(t, 200.0*14/30, TokenSortRatio("PEPSI LATA 354CC", "Pepsi Lata 354"), 1e-9)
	assert.Zero(t, TokenSortRatio("", "pepsi"))
	assert.Zero(t, TokenSortRatio("...", "..."))
}

func TestScorersAreSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"Fernet Branca 750", "FERNET 750 BRANCA"},
		{"Quilmes Clasica 1L", "Quilmes 1 lt"},
		{"Sprite lata", "Pepsi 600ml"},
	}
	scorers := map[string]Scorer{
		"ratio":       Ratio,
		"token_sort":  TokenSortRatio,
		"partial":     PartialRatio,
		"levenshtein": LevenshteinRatio,
	}

	for name, scorer := range scorers {
		for _, p := range pairs {
			assert.InDelta(t, scorer(p[0], p[1]), scorer(p[1], p[0]), 1e-9, "%s(%q,%q)", name, p[0], p[1])
			score := scorer(p[0], p[1])
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 100.0)
		}
	}
}

func TestRatio(t *testing.T) {
	assert.InDelta(t, 100.0, Ratio("Pepsi", "PEPSI"), 1e-9)
	// word order matters for the plain ratio
	assert.Less(t, Ratio("lata pepsi", "pepsi lata"), 100.0)
}

func TestIndelRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "identical", a: "pepsi", b: "pepsi", want: 100},
		{name: "one substitution costs two edits", a: "abcd", b: "abce", want: 75},
		{name: "counts runes not bytes", a: "ñandú", b: "ñandu", want: 80},
		{name: "one empty side", a: "", b: "coca", want: 0},
		{name: "both empty", a: "", b: "", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, indelRatio(tt.a, tt.b), 0.001)
			assert.InDelta(t, tt.want, indelRatio(tt.b, tt.a), 0.001)
		})
	}
}

func TestPartialRatio(t *testing.T) {
	assert.InDelta(t, 100.0, PartialRatio("pepsi", "Gaseosa Pepsi 500"), 1e-9)
	assert.Less(t, PartialRatio("sprite", "Gaseosa Pepsi 500"), 100.0)
}

func TestLevenshteinRatio(t *testing.T) {
	// one substitution over five runes
	assert.InDelta(t, 80.0, LevenshteinRatio("pepsi", "pepsa"), 1e-9)
	assert.InDelta(t, 100.0, LevenshteinRatio("Malbec", "malbec"), 1e-9)
}

func TestScorerByName(t *testing.T) {
	for _, name := range []string{"", "token_sort", "TOKEN_SORT_RATIO", "ratio", "partial", "partial_ratio", "levenshtein"} {
		scorer, err := ScorerByName(name)
		require.NoError(t, err, name)
		assert.NotNil(t, scorer)
	}

	_, err := ScorerByName("soundex")
	assert.ErrorIs(t, err, ErrUnknownScorer)
}

func TestExtractOne(t *testing.T) {
	t.Run("empty candidates", func(t *testing.T) {
		_, ok := ExtractOne("pepsi", nil, TokenSortRatio)
		assert.False(t, ok)
	})

	t.Run("best candidate wins", func(t *testing.T) {
		m, ok := ExtractOne("PEPSI LATA 354CC", []string{"Sprite Lata", "Pepsi Lata 354", "Pepsi 600"}, TokenSortRatio)
		require.True(t, ok)
		assert.Equal(t, "Pepsi Lata 354", m.Candidate)
		assert.Equal(t, 1, m.Index)
	})

	t.Run("ties keep input order", func(t *testing.T) {
		constant := func(_, _ string) float64 { return 50 }
		m, ok := ExtractOne("x", []string{"first", "second", "third"}, constant)
		require.True(t, ok)
		assert.Equal(t, "first", m.Candidate)
		assert.Equal(t, 0, m.Index)
		assert.InDelta(t, 50.0, m.Score, 1e-9)
	})

	t.Run("all zero still returns first", func(t *testing.T) {
		m, ok := ExtractOne("x", []string{"a", "b"}, func(_, _ string) float64 { return 0 })
		require.True(t, ok)
		assert.Equal(t, "a", m.Candidate)
		assert.Zero(t, m.Score)
	})
}
