package cluster

import (
	"math/rand/v2"
	"testing"

	"github.com/Veraticus/product-normalizer/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidThresholds(t *testing.T) {
	tests := []struct {
		name       string
		thresholds model.ThresholdSet
	}{
		{name: "empty", thresholds: nil},
		{name: "ascending", thresholds: model.ThresholdSet{55, 65}},
		{name: "equal", thresholds: model.ThresholdSet{70, 70}},
		{name: "out of range", thresholds: model.ThresholdSet{120, 50}},
		{name: "zero", thresholds: model.ThresholdSet{50, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.thresholds, nil)
			require.ErrorIs(t, err, model.ErrInvalidThresholds)
		})
	}
}

func TestCluster_SoftDrinks(t *testing.T) {
	c, err := New(model.DefaultThresholds, nil)
	require.NoError(t, err)

	input := []string{"Coca Cola 600ml", "Coca-Cola 600 ml", "Pepsi 600ml", "Sprite lata"}
	res := c.Cluster(input)

	require.Len(t, res.Levels, 4)
	counts := res.FamilyCounts()
	assert.Equal(t, 3, counts[0])

	for level := 1; level <= 4; level++ {
		a, ok := res.MasterOf(level, "Coca Cola 600ml")
		require.True(t, ok)
		b, ok := res.MasterOf(level, "Coca-Cola 600 ml")
		require.True(t, ok)
		assert.Equal(t, a, b, "level %d", level)
		assert.Equal(t, "Coca Cola 600ml", a)
	}

	pepsi, _ := res.MasterOf(1, "Pepsi 600ml")
	sprite, _ := res.MasterOf(1, "Sprite lata")
	assert.Equal(t, "Pepsi 600ml", pepsi)
	assert.Equal(t, "Sprite lata", sprite)

	for i := 1; i < len(counts); i++ {
		assert.LessOrEqual(t, counts[i], counts[i-1])
	}
}

var mixedInvoiceDescriptions = []string{
	"Coca Cola 600ml", "Coca-Cola 600 ml", "COCA COLA 600", "Coca Cola Zero 600ml", "Coca Cola 1.5 lt",
	"Pepsi 600ml", "Pepsi Lata 354", "PEPSI LATA 354CC", "Sprite lata", "Sprite 600ml",
	"Fernet Branca 750", "FERNET BRANCA 750ML", "Fernet Branca 1 lt", "Cinzano Rosso 1 lt",
	"Yerba Playadito 1kg", "Yerba Mate Playadito 500 g", "Yerba Taragui 1kg", "Yerba Rosamonte 1 kg",
	"Jamón Cocido Paladini", "Jamon cocido paladini x kg", "Queso Cremoso La Serenisima", "Queso Tybo",
	"Harina 000 Blancaflor 1kg", "Harina 0000 Pureza 1 kg", "Aceite Natura 900cc", "Aceite Cocinero 1.5l",
	"Quilmes Clasica 1L", "Cerveza Quilmes 1 l", "Agua Villavicencio 1,5 LT", "Agua Villa del Sur 2 lt",
	"Servilletas", "Bolsas residuo 60x90", "Detergente Magistral 750",
}

func TestCluster_SharedFamiliesStaySharedAtLaterLevels(t *testing.T) {
	thresholdSets := []model.ThresholdSet{
		model.DefaultThresholds,
		{95, 80, 60, 40, 20},
		{70, 50},
	}
	rng := rand.New(rand.NewPCG(7, 11))

	for _, thresholds := range thresholdSets {
		for round := 0; round < 5; round++ {
			input := append([]string(nil), mixedInvoiceDescriptions...)
			rng.Shuffle(len(input), func(i, j int) { input[i], input[j] = input[j], input[i] })
			// Repeat a few descriptions so weights differ.
			input = append(input, input[:round*3]...)

			c, err := New(thresholds, nil)
			require.NoError(t, err)
			res := c.Cluster(input)
			require.Len(t, res.Levels, len(thresholds))

			for i, a := range res.Assignments {
				for k := 1; k < len(thresholds); k++ {
					// The level k+1 master is chosen among level k masters.
					assert.Contains(t, res.Levels[k-1].Masters, a.Masters[k])
				}
				for _, b := range res.Assignments[i+1:] {
					shared := false
					for k := range thresholds {
						if a.Masters[k] == b.Masters[k] {
							shared = true
						} else if shared {
							t.Errorf("thresholds %v: %q and %q share a family at level %d but not at level %d",
								thresholds, a.Description, b.Description, k, k+1)
						}
					}
				}
			}

			counts := res.FamilyCounts()
			for k := 1; k < len(counts); k++ {
				assert.LessOrEqual(t, counts[k], counts[k-1])
			}
		}
	}
}

func TestCluster_Empty(t *testing.T) {
	c, err := New(model.DefaultThresholds, nil)
	require.NoError(t, err)

	res := c.Cluster(nil)
	assert.Empty(t, res.Levels)
	assert.Empty(t, res.Assignments)
	assert.Empty(t, res.FamilyCounts())

	_, ok := res.MasterOf(1, "anything")
	assert.False(t, ok)
}

func TestCluster_SingleElement(t *testing.T) {
	c, err := New(model.DefaultThresholds, nil)
	require.NoError(t, err)

	res := c.Cluster([]string{"Harina 000"})
	require.Len(t, res.Assignments, 1)
	assert.Equal(t, []string{"Harina 000", "Harina 000", "Harina 000", "Harina 000"}, res.Assignments[0].Masters)
	assert.Equal(t, []int{1, 1, 1, 1}, res.FamilyCounts())
}

func TestCluster_ThresholdIsExclusive(t *testing.T) {
	at, err := New(model.ThresholdSet{85}, func(_, _ string) float64 { return 85 })
	require.NoError(t, err)
	res := at.Cluster([]string{"a", "b", "c"})
	assert.Equal(t, []int{3}, res.FamilyCounts())

	above, err := New(model.ThresholdSet{85}, func(_, _ string) float64 { return 85.01 })
	require.NoError(t, err)
	res = above.Cluster([]string{"a", "b", "c"})
	assert.Equal(t, []int{1}, res.FamilyCounts())
	m, _ := res.MasterOf(1, "c")
	assert.Equal(t, "a", m)
}

func TestCluster_GreedyIsNotTransitive(t *testing.T) {
	// a~b and b~c but not a~c: b is claimed by a, so c stays alone.
	scores := map[string]float64{"ab": 90, "ba": 90, "bc": 90, "cb": 90}
	scorer := func(x, y string) float64 { return scores[x+y] }

	c, err := New(model.ThresholdSet{80}, scorer)
	require.NoError(t, err)

	res := c.Cluster([]string{"a", "b", "c"})
	assert.Equal(t, []string{"a", "c"}, res.Levels[0].Masters)
	assert.Equal(t, []string{"a", "b"}, res.Levels[0].Members("a"))
}

func TestCluster_FrequencyOrdersRepresentatives(t *testing.T) {
	scorer := func(_, _ string) float64 { return 99 }
	c, err := New(model.ThresholdSet{90}, scorer)
	require.NoError(t, err)

	res := c.Cluster([]string{"rare", "common", "common", " common "})
	m, ok := res.MasterOf(1, "rare")
	require.True(t, ok)
	assert.Equal(t, "common", m)

	weighted := c.ClusterWeighted([]Weighted{
		{Description: "x", Weight: 1},
		{Description: "y", Weight: 5},
		{Description: "x", Weight: 10},
	})
	m, _ = weighted.MasterOf(1, "y")
	assert.Equal(t, "x", m)
}

func TestCluster_LaterLevelsRouteThroughMasters(t *testing.T) {
	// Level 1 joins a-b, level 2 joins their master a with c.
	scores := map[string]float64{"ab": 95, "ba": 95, "ac": 80, "ca": 80, "bc": 10, "cb": 10}
	scorer := func(x, y string) float64 { return scores[x+y] }

	c, err := New(model.ThresholdSet{90, 70}, scorer)
	require.NoError(t, err)

	res := c.Cluster([]string{"a", "b", "c"})
	assert.Equal(t, []int{2, 1}, res.FamilyCounts())

	fa, ok := res.Assignment("b")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "a"}, fa.Masters)
	assert.Equal(t, "a", fa.Master(2))

	fc, _ := res.Assignment("c")
	assert.Equal(t, []string{"c", "a"}, fc.Masters)
}

func TestCluster_Progress(t *testing.T) {
	c, err := New(model.ThresholdSet{90, 50}, func(_, _ string) float64 { return 0 })
	require.NoError(t, err)

	var calls [][3]int
	c.Progress = func(level, done, total int) {
		calls = append(calls, [3]int{level, done, total})
	}
	c.Cluster([]string{"a", "b"})

	assert.Equal(t, [][3]int{{1, 1, 2}, {1, 2, 2}, {2, 1, 2}, {2, 2, 2}}, calls)
}

func TestResult_Apply(t *testing.T) {
	c, err := New(model.ThresholdSet{90}, nil)
	require.NoError(t, err)

	res := c.Cluster([]string{"Pepsi 600ml"})
	out := res.Apply([]model.LineItem{{Description: "Pepsi 600ml"}, {Description: "unknown"}})

	assert.Equal(t, []string{"Pepsi 600ml"}, out[0].Families)
	assert.Equal(t, []string{""}, out[1].Families)
}
