package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Veraticus/product-normalizer/internal/common"
	"github.com/Veraticus/product-normalizer/internal/config"
	"github.com/Veraticus/product-normalizer/internal/lineitem"
	"github.com/Veraticus/product-normalizer/internal/model"
	"github.com/Veraticus/product-normalizer/internal/reftable"
	"github.com/Veraticus/product-normalizer/internal/similarity"
	"github.com/Veraticus/product-normalizer/internal/storage"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

// loadConfig resolves the application configuration from viper.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, common.NewUserError("Invalid configuration: "+err.Error(), err)
	}
	return cfg, nil
}

// initStorage opens the SQLite database and applies pending migrations.
func initStorage(ctx context.Context, dbPath string) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(config.ExpandPath(dbPath))
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// openStore opens the configured reference backend. The returned closer is
// never nil.
func openStore(ctx context.Context, cfg *config.Config) (reftable.Store, func(), error) {
	noop := func() {}

	switch cfg.Reference.Backend {
	case config.BackendSQLite:
		store, err := initStorage(ctx, cfg.Database.Path)
		if err != nil {
			return nil, noop, err
		}
		return store, func() {
			if err := store.Close(); err != nil {
				slog.Warn("failed to close database", "error", err)
			}
		}, nil

	case config.BackendSheets:
		sheetsCfg, err := config.LoadSheetsConfig(viper.GetViper(), cfg.Reference)
		if err != nil {
			return nil, noop, common.NewUserError("Google Sheets is not configured: "+err.Error(), err)
		}
		store, err := reftable.NewSheetsStore(ctx, *sheetsCfg)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil

	default:
		path, ok := config.ResolveReferencePath(cfg.ReferenceCandidates())
		if !ok {
			path = firstCandidate(cfg)
			slog.Warn("No reference table found", "candidates", cfg.ReferenceCandidates())
		}
		store := reftable.NewXLSXStore(path)
		store.Sheet = cfg.Reference.Sheet
		store.VariantColumn = cfg.Reference.VariantColumn
		store.BaseColumn = cfg.Reference.BaseColumn
		slog.Debug("Using reference workbook", "path", store.Location())
		return store, noop, nil
	}
}

func firstCandidate(cfg *config.Config) string {
	for _, c := range cfg.ReferenceCandidates() {
		if c = strings.TrimSpace(c); c != "" {
			return config.ExpandPath(c)
		}
	}
	return "tabla_normalizacion.xlsx"
}

// checkpointBefore snapshots a SQLite reference database before op. Other
// backends have no checkpoint support and are skipped.
func checkpointBefore(ctx context.Context, store reftable.Store, op string) {
	sqliteStore, ok := store.(*storage.SQLiteStorage)
	if !ok {
		return
	}
	manager, err := sqliteStore.NewCheckpointManager()
	if err != nil {
		if !errors.Is(err, storage.ErrCheckpointUnsupported) {
			slog.Warn("failed to create checkpoint manager", "error", err)
		}
		return
	}
	meta, err := manager.AutoCheckpoint(ctx, op)
	if err != nil {
		slog.Warn("Auto-checkpoint failed, continuing", "error", err)
		return
	}
	slog.Info("Created auto-checkpoint", "id", meta.ID, "entries", meta.EntryCount)
}

func scorerFor(cfg *config.Config) (similarity.Scorer, error) {
	scorer, err := similarity.ScorerByName(cfg.Matching.Scorer)
	if err != nil {
		return nil, common.NewUserError("Unknown scorer "+cfg.Matching.Scorer, err)
	}
	return scorer, nil
}

func readOptions(cfg *config.Config) lineitem.ReadOptions {
	opts := lineitem.DefaultReadOptions()
	opts.Sheet = cfg.Input.Sheet
	opts.DescriptionColumn = cfg.Input.DescriptionColumn
	opts.QuantityColumn = cfg.Input.QuantityColumn
	opts.PriceColumn = cfg.Input.PriceColumn
	opts.SubtotalColumn = cfg.Input.SubtotalColumn
	return opts
}

// readInvoices loads and rescues the invoice rows of path.
func readInvoices(path string, cfg *config.Config) (salvageable, unsalvageable []model.LineItem, err error) {
	items, err := lineitem.ReadXLSX(path, readOptions(cfg))
	if err != nil {
		return nil, nil, common.NewUserError("Could not read "+path, err)
	}
	salvageable, unsalvageable = lineitem.RescueAll(items)
	slog.Info("Read invoice rows",
		"path", path,
		"rows", len(items),
		"unsalvageable", len(unsalvageable))
	return salvageable, unsalvageable, nil
}

// defaultOutput derives the result workbook name from the input file.
func defaultOutput(input, suffix string) string {
	ext := filepath.Ext(input)
	return strings.TrimSuffix(input, ext) + "_" + suffix + ".xlsx"
}
