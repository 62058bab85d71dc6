// Package storage provides the data persistence layer for the normalizer.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/product-normalizer/internal/model"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrInvalidEntry = errors.New("invalid reference entry")
	ErrInvalidRunID = errors.New("invalid learn run id")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateEntries checks every entry has both columns filled.
func validateEntries(entries []model.ReferenceEntry) error {
	for i, e := range entries {
		if err := validateEntry(e); err != nil {
			return fmt.Errorf("entry at index %d: %w", i, err)
		}
	}
	return nil
}

func validateEntry(e model.ReferenceEntry) error {
	if strings.TrimSpace(e.Variant) == "" {
		return fmt.Errorf("%w: missing variant", ErrInvalidEntry)
	}
	if strings.TrimSpace(e.Base) == "" {
		return fmt.Errorf("%w: missing base", ErrInvalidEntry)
	}
	return nil
}

func validateSource(src model.EntrySource) error {
	switch src {
	case model.SourceManual, model.SourceImport, model.SourceLearned:
		return nil
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidEntry, src)
	}
}
