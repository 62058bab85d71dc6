// Package testutil provides helpers for tests that need a seeded reference table.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Veraticus/product-normalizer/internal/model"
	"github.com/Veraticus/product-normalizer/internal/storage"
)

// SampleEntries is a small gastro-distribution reference table.
var SampleEntries = []model.ReferenceEntry{
	{Variant: "Coca Cola 600ml", Base: "Coca-Cola 600 ml"},
	{Variant: "COCA COLA 600", Base: "Coca-Cola 600 ml"},
	{Variant: "Pepsi Lata 354", Base: "Pepsi 354 ml"},
	{Variant: "Fernet Branca 750", Base: "Fernet Branca 750 ml"},
	{Variant: "Quilmes Clasica 1L", Base: "Cerveza Quilmes 1 l"},
}

// SetupTestDB creates a migrated SQLite database in a temporary directory and
// seeds it with entries. It automatically handles cleanup.
//
// Example:
//
//	db := testutil.SetupTestDB(t, testutil.SampleEntries...)
func SetupTestDB(t *testing.T, entries ...model.ReferenceEntry) *storage.SQLiteStorage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "reference.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	if len(entries) > 0 {
		if err := store.Save(ctx, entries); err != nil {
			t.Fatalf("failed to seed reference entries: %v", err)
		}
	}

	return store
}
