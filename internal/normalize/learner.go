package normalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Veraticus/product-normalizer/internal/common"
	"github.com/Veraticus/product-normalizer/internal/model"
	"github.com/Veraticus/product-normalizer/internal/reftable"
	"github.com/google/uuid"
)

// DefaultLearnThreshold is the minimum fuzzy score promoted into the table.
const DefaultLearnThreshold = 80

// keyedMutex hands out one mutex per key for the life of the process.
type keyedMutex struct {
	locks sync.Map
}

func (k *keyedMutex) lock(key string) func() {
	v, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// learnLocks serializes learn passes that target the same table.
var learnLocks keyedMutex

// Learner promotes confident fuzzy matches to new reference entries.
type Learner struct {
	cache    *reftable.Cache
	newRunID func() string
}

// NewLearner creates a learner that reads and persists through cache.
func NewLearner(cache *reftable.Cache) *Learner {
	return &Learner{
		cache:    cache,
		newRunID: uuid.NewString,
	}
}

// Learn appends a (description, label) entry for every fuzzy row scoring at
// least threshold whose description is not yet in the table. It returns the
// number of entries added. When persisting fails the error wraps
// common.ErrPersistence and the entries stay in the cache for the rest of the
// process. The next pass that adds entries writes them again.
func (l *Learner) Learn(ctx context.Context, items []model.NormalizedItem, threshold float64) (int, error) {
	store := l.cache.Store()
	unlock := learnLocks.lock(store.Location())
	defer unlock()

	table, err := l.cache.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load reference table: %w", err)
	}

	staged := stageEntries(items, table, threshold)
	if len(staged) == 0 {
		slog.Debug("No new entries to learn", "location", store.Location())
		return 0, nil
	}

	updated := table.With(staged...)
	runID := l.newRunID()
	// Entries from an earlier failed save ride along with this one.
	pending := append(l.cache.Unsaved(), staged...)

	if err := persist(ctx, store, runID, pending, updated); err != nil {
		l.cache.KeepUnsaved(staged...)
		common.LogError(err, "Learned entries kept in memory only", common.Fields{
			"location": store.Location(),
			"run_id":   runID,
			"count":    len(staged),
		})
		if !errors.Is(err, common.ErrPersistence) {
			err = fmt.Errorf("%w: %w", common.ErrPersistence, err)
		}
		return len(staged), err
	}

	l.cache.MarkPersisted()
	slog.Info("Learned reference entries",
		"location", store.Location(),
		"run_id", runID,
		"count", len(staged))

	return len(staged), nil
}

func stageEntries(items []model.NormalizedItem, table *reftable.Table, threshold float64) []model.ReferenceEntry {
	seen := make(map[string]struct{})
	var staged []model.ReferenceEntry

	for _, item := range items {
		r := item.Result
		if r.Method != model.MethodFuzzy || r.Score < threshold {
			continue
		}

		variant := strings.TrimSpace(item.Description)
		base := strings.TrimSpace(r.Label)
		if variant == "" || base == "" || table.ContainsFold(variant) {
			continue
		}

		key := strings.ToUpper(variant) + "\x00" + strings.ToUpper(base)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		staged = append(staged, model.ReferenceEntry{Variant: variant, Base: base})
	}
	return staged
}

func persist(ctx context.Context, store reftable.Store, runID string, added []model.ReferenceEntry, updated *reftable.Table) error {
	if appender, ok := store.(reftable.Appender); ok {
		return appender.AppendEntries(ctx, runID, added)
	}
	return store.Save(ctx, updated.Entries())
}
