package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/product-normalizer/internal/common"
	"github.com/Veraticus/product-normalizer/internal/model"
)

// Load returns every reference row in insertion order.
func (s *SQLiteStorage) Load(ctx context.Context) ([]model.ReferenceEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT variant, base FROM reference_entries ORDER BY id`)
	if err != nil {
		return nil, common.MissingResource(s.Location(), err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close rows", "error", closeErr)
		}
	}()

	var entries []model.ReferenceEntry
	for rows.Next() {
		var e model.ReferenceEntry
		if err := rows.Scan(&e.Variant, &e.Base); err != nil {
			return nil, fmt.Errorf("failed to scan reference entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Save replaces the stored table with entries, marking them as imported.
func (s *SQLiteStorage) Save(ctx context.Context, entries []model.ReferenceEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateEntries(entries); err != nil {
		return err
	}

	err := s.withWriteRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()

		if _, err = tx.ExecContext(ctx, `DELETE FROM reference_entries`); err != nil {
			return fmt.Errorf("failed to clear reference entries: %w", err)
		}
		if err = insertEntries(ctx, tx, entries, model.SourceImport); err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	return nil
}

// AppendEntries adds learned rows and records them under runID in the audit table.
func (s *SQLiteStorage) AppendEntries(ctx context.Context, runID string, entries []model.ReferenceEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(runID) == "" {
		return ErrInvalidRunID
	}
	if err := validateEntries(entries); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	err := s.withWriteRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()

		if err = insertEntries(ctx, tx, entries, model.SourceLearned); err != nil {
			return err
		}

		var stmt *sql.Stmt
		stmt, err = tx.PrepareContext(ctx, `INSERT INTO learned_entries (run_id, variant, base) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare audit insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, e := range entries {
			e = e.Clean()
			if _, err = stmt.ExecContext(ctx, runID, e.Variant, e.Base); err != nil {
				return fmt.Errorf("failed to record learned entry %q: %w", e.Variant, err)
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}

	slog.Info("Recorded learned entries", "run_id", runID, "count", len(entries))
	return nil
}

// AddEntry inserts a single row. A variant already present, ignoring case,
// yields common.ErrDuplicateEntry.
func (s *SQLiteStorage) AddEntry(ctx context.Context, entry model.ReferenceEntry, source model.EntrySource) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateEntry(entry); err != nil {
		return 0, err
	}
	if err := validateSource(source); err != nil {
		return 0, err
	}
	entry = entry.Clean()

	var id int64
	err := s.withWriteRetry(ctx, func() error {
		var exists int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM reference_entries WHERE variant = ? COLLATE NOCASE`, entry.Variant).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check existing variant: %w", err)
		}
		if exists > 0 {
			return fmt.Errorf("%w: variant %q", common.ErrDuplicateEntry, entry.Variant)
		}

		result, err := s.db.ExecContext(ctx,
			`INSERT INTO reference_entries (variant, base, source) VALUES (?, ?, ?)`,
			entry.Variant, entry.Base, string(source))
		if err != nil {
			return fmt.Errorf("failed to insert reference entry: %w", err)
		}
		id, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// DeleteVariant removes every row whose variant equals variant ignoring case.
func (s *SQLiteStorage) DeleteVariant(ctx context.Context, variant string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(variant, "variant"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM reference_entries WHERE variant = ? COLLATE NOCASE`, strings.TrimSpace(variant))
	if err != nil {
		return fmt.Errorf("failed to delete variant: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: variant %q", common.ErrNotFound, variant)
	}
	return nil
}

// ListEntries returns every row with its metadata.
func (s *SQLiteStorage) ListEntries(ctx context.Context) ([]model.StoredEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, variant, base, source, created_at FROM reference_entries ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reference entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.StoredEntry
	for rows.Next() {
		var (
			e      model.StoredEntry
			source string
		)
		if err := rows.Scan(&e.ID, &e.Variant, &e.Base, &source, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reference entry: %w", err)
		}
		e.Source = model.EntrySource(source)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetLearnedEntries returns the audit rows of one learn run, or of every run
// when runID is empty.
func (s *SQLiteStorage) GetLearnedEntries(ctx context.Context, runID string) ([]model.LearnedEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT run_id, variant, base, learned_at FROM learned_entries`
	var args []any
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query learned entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.LearnedEntry
	for rows.Next() {
		var e model.LearnedEntry
		if err := rows.Scan(&e.RunID, &e.Variant, &e.Base, &e.LearnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan learned entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountEntries returns the number of reference rows.
func (s *SQLiteStorage) CountEntries(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reference_entries`).Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count reference entries: %w", err)
	}
	return count, nil
}

func insertEntries(ctx context.Context, tx *sql.Tx, entries []model.ReferenceEntry, source model.EntrySource) error {
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO reference_entries (variant, base, source) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		e = e.Clean()
		if _, err := stmt.ExecContext(ctx, e.Variant, e.Base, string(source)); err != nil {
			return fmt.Errorf("failed to insert reference entry %q: %w", e.Variant, err)
		}
	}
	return nil
}
