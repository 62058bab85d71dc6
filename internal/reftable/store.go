package reftable

import (
	"context"

	"github.com/Veraticus/product-normalizer/internal/model"
)

// Default column names of the reference sheet.
const (
	DefaultVariantColumn = "Nombre Gestion"
	DefaultBaseColumn    = "Base"
)

// Store persists the reference table.
type Store interface {
	// Load returns every row. A missing table or missing columns yield an
	// error wrapping common.ErrMissingResource.
	Load(ctx context.Context) ([]model.ReferenceEntry, error)
	// Save replaces the stored table with entries.
	Save(ctx context.Context, entries []model.ReferenceEntry) error
	// Location identifies the storage, used to key cross-request locks.
	Location() string
}

// Appender is implemented by stores that can add rows without rewriting the table.
type Appender interface {
	AppendEntries(ctx context.Context, runID string, entries []model.ReferenceEntry) error
}
