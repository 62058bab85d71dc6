package reftable

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Veraticus/product-normalizer/internal/model"
)

// DefaultCacheTTL bounds how long a loaded table is reused.
const DefaultCacheTTL = time.Hour

// Cache loads the table through a Store and reuses it until the TTL expires
// or it is invalidated. Entries that could not be persisted are kept and
// merged into every reload until MarkPersisted is called.
type Cache struct {
	expiry  time.Time
	store   Store
	table   *Table
	now     func() time.Time
	unsaved []model.ReferenceEntry
	ttl     time.Duration
	mu      sync.RWMutex
}

// NewCache creates a cache over store. A non-positive ttl uses DefaultCacheTTL.
func NewCache(store Store, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// Store returns the backing store.
func (c *Cache) Store() Store {
	return c.store
}

// Get returns the cached table, loading it when absent or expired.
func (c *Cache) Get(ctx context.Context) (*Table, error) {
	c.mu.RLock()
	if c.table != nil && c.now().Before(c.expiry) {
		t := c.table
		c.mu.RUnlock()
		return t, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if c.table != nil && c.now().Before(c.expiry) {
		return c.table, nil
	}

	entries, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}

	c.table = withMissing(New(entries), c.unsaved)
	c.expiry = c.now().Add(c.ttl)

	slog.Debug("Loaded reference table",
		"location", c.store.Location(),
		"entries", c.table.Len(),
		"bases", c.table.UniqueBases(),
		"unsaved", len(c.unsaved))

	return c.table, nil
}

// KeepUnsaved adds entries that failed to persist. They join the current
// table at once and every table loaded later in the process.
func (c *Cache) KeepUnsaved(entries ...model.ReferenceEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsaved = append(c.unsaved, entries...)
	if c.table != nil {
		c.table = withMissing(c.table, entries)
	}
}

// Unsaved returns a copy of the entries still waiting to be persisted.
func (c *Cache) Unsaved() []model.ReferenceEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.ReferenceEntry(nil), c.unsaved...)
}

// MarkPersisted forgets the unsaved entries and drops the cached table so
// the next Get reloads it from the store.
func (c *Cache) MarkPersisted() {
	c.mu.Lock()
	c.unsaved = nil
	c.mu.Unlock()
	c.Invalidate()
}

// Invalidate drops the cached table so the next Get reloads it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table = nil
	c.expiry = time.Time{}
}

// withMissing appends the entries whose variant t does not already hold.
func withMissing(t *Table, entries []model.ReferenceEntry) *Table {
	var missing []model.ReferenceEntry
	for _, e := range entries {
		if _, ok := t.LookupFold(e.Variant); !ok {
			missing = append(missing, e)
		}
	}
	if len(missing) == 0 {
		return t
	}
	return t.With(missing...)
}
