package normalize

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/product-normalizer/internal/common"
	"github.com/Veraticus/product-normalizer/internal/model"
	"github.com/Veraticus/product-normalizer/internal/reftable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fuzzyItem(desc, label string, score float64) model.NormalizedItem {
	return model.NormalizedItem{
		LineItem: model.LineItem{Description: desc},
		Result:   model.MatchResult{Label: label, Method: model.MethodFuzzy, Score: score, MatchedVariant: "Coca Cola 600ml"},
	}
}

func newLearnerFixture(t *testing.T, name string) (*reftable.MemoryStore, *reftable.Cache, *Learner) {
	t.Helper()
	store := reftable.NewMemoryStore(name, model.ReferenceEntry{Variant: "Coca Cola 600ml", Base: "Coca-Cola"})
	cache := reftable.NewCache(store, 0)
	return store, cache, NewLearner(cache)
}

func TestLearn_AddsOnceAndIsIdempotent(t *testing.T) {
	store, cache, learner := newLearnerFixture(t, t.Name())
	ctx := context.Background()
	data := []model.NormalizedItem{fuzzyItem("COCA COLA 600", "Coca-Cola", 85)}

	added, err := learner.Learn(ctx, data, 80)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Contains(t, store.Snapshot(), model.ReferenceEntry{Variant: "COCA COLA 600", Base: "Coca-Cola"})

	added, err = learner.Learn(ctx, data, 80)
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Len(t, store.Snapshot(), 2)

	table, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.True(t, table.ContainsFold("coca cola 600"))
}

func TestLearn_Filters(t *testing.T) {
	tests := []struct {
		name string
		item model.NormalizedItem
	}{
		{name: "below learn threshold", item: fuzzyItem("COCA COLA 600", "Coca-Cola", 79.9)},
		{name: "exact rows are not learned", item: model.NormalizedItem{
			LineItem: model.LineItem{Description: "Pepsi"},
			Result:   model.MatchResult{Label: "Pepsi", Method: model.MethodExact, Score: 100},
		}},
		{name: "variant already present ignoring case", item: fuzzyItem("coca cola 600ML", "Coca-Cola", 95)},
		{name: "description equals a base", item: fuzzyItem("coca-cola", "Coca-Cola", 95)},
		{name: "blank description", item: fuzzyItem("  ", "Coca-Cola", 95)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _, learner := newLearnerFixture(t, t.Name())
			added, err := learner.Learn(context.Background(), []model.NormalizedItem{tt.item}, 80)
			require.NoError(t, err)
			assert.Zero(t, added)
			assert.Zero(t, store.SaveCalls)
		})
	}
}

func TestLearn_DedupesStagedPairs(t *testing.T) {
	store, _, learner := newLearnerFixture(t, t.Name())

	added, err := learner.Learn(context.Background(), []model.NormalizedItem{
		fuzzyItem("COCA COLA 600", "Coca-Cola", 85),
		fuzzyItem("coca cola 600", "coca-cola", 85),
		fuzzyItem("Coca 600", "Coca-Cola", 90),
	}, 80)

	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, 1, store.SaveCalls)
	assert.Len(t, store.Snapshot(), 3)
}

func TestLearn_PersistenceFailureKeepsEntriesInMemory(t *testing.T) {
	store, cache, learner := newLearnerFixture(t, t.Name())
	store.SaveErr = errors.New("disk full")
	ctx := context.Background()
	data := []model.NormalizedItem{fuzzyItem("COCA COLA 600", "Coca-Cola", 85)}

	added, err := learner.Learn(ctx, data, 80)
	require.ErrorIs(t, err, common.ErrPersistence)
	assert.Equal(t, 1, added)

	table, err := cache.Get(ctx)
	require.NoError(t, err)
	base, ok := table.BaseOf("COCA COLA 600")
	require.True(t, ok)
	assert.Equal(t, "Coca-Cola", base)
	assert.Equal(t, 1, store.LoadCalls)

	added, err = learner.Learn(ctx, data, 80)
	require.NoError(t, err)
	assert.Zero(t, added)
}

func TestLearn_UnsavedEntriesOutliveCacheTTL(t *testing.T) {
	store := reftable.NewMemoryStore(t.Name(), model.ReferenceEntry{Variant: "Coca Cola 600ml", Base: "Coca-Cola"})
	store.SaveErr = errors.New("disk full")
	cache := reftable.NewCache(store, 20*time.Millisecond)
	learner := NewLearner(cache)
	ctx := context.Background()
	data := []model.NormalizedItem{fuzzyItem("COCA COLA 600", "Coca-Cola", 85)}

	added, err := learner.Learn(ctx, data, 80)
	require.ErrorIs(t, err, common.ErrPersistence)
	assert.Equal(t, 1, added)

	time.Sleep(40 * time.Millisecond)

	table, err := cache.Get(ctx)
	require.NoError(t, err)
	assert.True(t, table.ContainsFold("coca cola 600"))
	assert.GreaterOrEqual(t, store.LoadCalls, 2)

	added, err = learner.Learn(ctx, data, 80)
	require.NoError(t, err)
	assert.Zero(t, added)

	// Once the store accepts writes the earlier entry is saved with the next one.
	store.SaveErr = nil
	added, err = learner.Learn(ctx, []model.NormalizedItem{fuzzyItem("COCA-COLA 600CC", "Coca-Cola", 90)}, 80)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Empty(t, cache.Unsaved())
	assert.Contains(t, store.Snapshot(), model.ReferenceEntry{Variant: "COCA COLA 600", Base: "Coca-Cola"})
	assert.Contains(t, store.Snapshot(), model.ReferenceEntry{Variant: "COCA-COLA 600CC", Base: "Coca-Cola"})
}

func TestLearn_AppenderReceivesUnsavedEntries(t *testing.T) {
	store := &appendingStore{MemoryStore: reftable.NewMemoryStore(t.Name(), model.ReferenceEntry{Variant: "Coca Cola 600ml", Base: "Coca-Cola"})}
	store.SaveErr = errors.New("locked")
	learner := NewLearner(reftable.NewCache(store, 0))
	ctx := context.Background()

	_, err := learner.Learn(ctx, []model.NormalizedItem{fuzzyItem("COCA COLA 600", "Coca-Cola", 85)}, 80)
	require.ErrorIs(t, err, common.ErrPersistence)

	store.SaveErr = nil
	added, err := learner.Learn(ctx, []model.NormalizedItem{fuzzyItem("COCA-COLA 600CC", "Coca-Cola", 90)}, 80)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Len(t, store.Snapshot(), 3)
}

func TestLearn_MissingTable(t *testing.T) {
	store := reftable.NewMemoryStore(t.Name())
	store.Missing = true
	learner := NewLearner(reftable.NewCache(store, 0))

	_, err := learner.Learn(context.Background(), []model.NormalizedItem{fuzzyItem("x", "y", 99)}, 80)
	require.ErrorIs(t, err, common.ErrMissingResource)
}

type appendingStore struct {
	*reftable.MemoryStore
	runIDs []string
}

func (a *appendingStore) AppendEntries(ctx context.Context, runID string, entries []model.ReferenceEntry) error {
	a.runIDs = append(a.runIDs, runID)
	current, err := a.Load(ctx)
	if err != nil {
		return err
	}
	return a.MemoryStore.Save(ctx, append(current, entries...))
}

func TestLearn_PrefersAppender(t *testing.T) {
	store := &appendingStore{MemoryStore: reftable.NewMemoryStore(t.Name(), model.ReferenceEntry{Variant: "Coca Cola 600ml", Base: "Coca-Cola"})}
	learner := NewLearner(reftable.NewCache(store, 0))
	learner.newRunID = func() string { return "run-42" }

	added, err := learner.Learn(context.Background(), []model.NormalizedItem{fuzzyItem("COCA COLA 600", "Coca-Cola", 85)}, 80)

	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, []string{"run-42"}, store.runIDs)
	assert.Len(t, store.Snapshot(), 2)
}

func TestLearn_ConcurrentPassesAddOnce(t *testing.T) {
	store := reftable.NewMemoryStore(t.Name(), model.ReferenceEntry{Variant: "Coca Cola 600ml", Base: "Coca-Cola"})
	data := []model.NormalizedItem{fuzzyItem("COCA COLA 600", "Coca-Cola", 85)}

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Separate caches share only the store location.
			learner := NewLearner(reftable.NewCache(store, 0))
			added, err := learner.Learn(context.Background(), data, 80)
			assert.NoError(t, err)
			mu.Lock()
			total += added
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, total)
	assert.Len(t, store.Snapshot(), 2)
}
