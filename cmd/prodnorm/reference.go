package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Veraticus/product-normalizer/internal/cli"
	"github.com/Veraticus/product-normalizer/internal/common"
	"github.com/Veraticus/product-normalizer/internal/model"
	"github.com/Veraticus/product-normalizer/internal/reftable"
	"github.com/Veraticus/product-normalizer/internal/storage"
)

func referenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reference",
		Aliases: []string{"ref"},
		Short:   "Manage the reference normalization table",
		Long: `List, edit, import and export the variant → base table used for matching.
The configured backend (xlsx, sqlite or sheets) is used.`,
		Example: `  # Show the table
  prodnorm reference list

  # Seed a SQLite backend from the spreadsheet
  prodnorm --backend sqlite reference import tabla_normalizacion.xlsx

  # Add a spelling by hand
  prodnorm reference add "COCA 600" "Coca-Cola 600 ml"`,
	}

	cmd.AddCommand(listReferenceCmd())
	cmd.AddCommand(addReferenceCmd())
	cmd.AddCommand(deleteReferenceCmd())
	cmd.AddCommand(importReferenceCmd())
	cmd.AddCommand(exportReferenceCmd())
	cmd.AddCommand(learnedReferenceCmd())
	cmd.AddCommand(checkpointCmd())

	return cmd
}

// withStore loads the configuration, opens the reference store and runs fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, store reftable.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(ctx, store)
}

// loadOrEmpty loads the table, treating a missing one as empty.
func loadOrEmpty(ctx context.Context, store reftable.Store) ([]model.ReferenceEntry, error) {
	entries, err := store.Load(ctx)
	if err != nil {
		if errors.Is(err, common.ErrMissingResource) {
			return nil, nil
		}
		return nil, err
	}
	return entries, nil
}

func listReferenceCmd() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reference entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, store reftable.Store) error {
				entries, err := store.Load(ctx)
				if err != nil {
					if errors.Is(err, common.ErrMissingResource) {
						return common.NewUserError("Reference table not found at "+store.Location(), err)
					}
					return err
				}
				writeEntries(cmd.OutOrStdout(), entries, filter)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&filter, "filter", "f", "", "only show entries containing this text")
	return cmd
}

func writeEntries(out io.Writer, entries []model.ReferenceEntry, filter string) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join([]string{
		cli.TableHeaderStyle.Render("VARIANT"),
		cli.TableHeaderStyle.Render("BASE"),
	}, "\t"))

	filter = strings.ToLower(filter)
	shown := 0
	for _, e := range entries {
		if filter != "" &&
			!strings.Contains(strings.ToLower(e.Variant), filter) &&
			!strings.Contains(strings.ToLower(e.Base), filter) {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\n", e.Variant, e.Base)
		shown++
	}
	_ = w.Flush()

	table := reftable.New(entries)
	fmt.Fprintln(out, cli.SubtleStyle.Render(fmt.Sprintf("%d of %d entries, %d base names", shown, table.Len(), table.UniqueBases())))
}

func addReferenceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <variant> <base>",
		Short: "Add a variant spelling of a base name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry := model.ReferenceEntry{Variant: args[0], Base: args[1]}.Clean()
			if !entry.Valid() {
				return common.NewUserError("Variant and base must not be empty", common.ErrMalformedRecord)
			}

			return withStore(cmd, func(ctx context.Context, store reftable.Store) error {
				if err := addEntry(ctx, store, entry); err != nil {
					if errors.Is(err, common.ErrDuplicateEntry) {
						return common.NewUserError(fmt.Sprintf("Variant %q already exists", entry.Variant), err)
					}
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Added %s → %s", entry.Variant, entry.Base)))
				return nil
			})
		},
	}
}

func addEntry(ctx context.Context, store reftable.Store, entry model.ReferenceEntry) error {
	if sqliteStore, ok := store.(*storage.SQLiteStorage); ok {
		_, err := sqliteStore.AddEntry(ctx, entry, model.SourceManual)
		return err
	}

	entries, err := loadOrEmpty(ctx, store)
	if err != nil {
		return err
	}
	if _, exists := reftable.New(entries).LookupFold(entry.Variant); exists {
		return fmt.Errorf("%w: variant %q", common.ErrDuplicateEntry, entry.Variant)
	}
	return store.Save(ctx, append(entries, entry))
}

func deleteReferenceCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <variant>",
		Short: "Delete a variant, ignoring case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			variant := strings.TrimSpace(args[0])

			return withStore(cmd, func(ctx context.Context, store reftable.Store) error {
				if !yes {
					ok, err := cli.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout()).
						Confirm(ctx, fmt.Sprintf("Delete variant %q?", variant), false)
					if err != nil || !ok {
						return err
					}
				}

				if err := deleteEntry(ctx, store, variant); err != nil {
					if errors.Is(err, common.ErrNotFound) {
						return common.NewUserError(fmt.Sprintf("Variant %q not found", variant), err)
					}
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted "+variant))
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func deleteEntry(ctx context.Context, store reftable.Store, variant string) error {
	if sqliteStore, ok := store.(*storage.SQLiteStorage); ok {
		return sqliteStore.DeleteVariant(ctx, variant)
	}

	entries, err := loadOrEmpty(ctx, store)
	if err != nil {
		return err
	}
	kept := entries[:0:0]
	for _, e := range entries {
		if !strings.EqualFold(e.Variant, variant) {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return fmt.Errorf("%w: variant %q", common.ErrNotFound, variant)
	}
	return store.Save(ctx, kept)
}

func importReferenceCmd() *cobra.Command {
	var (
		sheet         string
		variantColumn string
		baseColumn    string
		yes           bool
	)

	cmd := &cobra.Command{
		Use:   "import <table.xlsx>",
		Short: "Replace the reference table with a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := reftable.NewXLSXStore(args[0])
			source.Sheet = sheet
			source.VariantColumn = variantColumn
			source.BaseColumn = baseColumn

			return withStore(cmd, func(ctx context.Context, store reftable.Store) error {
				entries, err := source.Load(ctx)
				if err != nil {
					return common.NewUserError("Could not read "+args[0], err)
				}

				existing, err := loadOrEmpty(ctx, store)
				if err != nil {
					return err
				}
				if len(existing) > 0 && !yes {
					ok, err := cli.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout()).Confirm(ctx,
						fmt.Sprintf("Replace %d existing entries with %d from %s?", len(existing), len(entries), args[0]), false)
					if err != nil || !ok {
						return err
					}
				}

				checkpointBefore(ctx, store, "import")
				if err := store.Save(ctx, entries); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Imported %d entries into %s", len(entries), store.Location())))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sheet, "sheet", "", "sheet to read (default: first sheet)")
	cmd.Flags().StringVar(&variantColumn, "variant-column", reftable.DefaultVariantColumn, "variant column header")
	cmd.Flags().StringVar(&baseColumn, "base-column", reftable.DefaultBaseColumn, "base column header")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func exportReferenceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <table.xlsx>",
		Short: "Write the reference table to a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, store reftable.Store) error {
				entries, err := store.Load(ctx)
				if err != nil {
					return err
				}
				if err := reftable.NewXLSXStore(args[0]).Save(ctx, entries); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Exported %d entries to %s", len(entries), args[0])))
				return nil
			})
		},
	}
}

func learnedReferenceCmd() *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "learned",
		Short: "Show entries added by learn runs (sqlite backend)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, store reftable.Store) error {
				sqliteStore, ok := store.(*storage.SQLiteStorage)
				if !ok {
					return common.NewUserError("The learn audit trail requires the sqlite backend", common.ErrInvalidConfig)
				}

				learned, err := sqliteStore.GetLearnedEntries(ctx, runID)
				if err != nil {
					return err
				}
				if len(learned) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), cli.SubtitleStyle.Render("No learned entries found."))
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, strings.Join([]string{
					cli.TableHeaderStyle.Render("RUN"),
					cli.TableHeaderStyle.Render("LEARNED"),
					cli.TableHeaderStyle.Render("VARIANT"),
					cli.TableHeaderStyle.Render("BASE"),
				}, "\t"))
				for _, e := range learned {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", shortID(e.RunID), e.LearnedAt.Format("2006-01-02 15:04"), e.Variant, e.Base)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "only show one learn run")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
