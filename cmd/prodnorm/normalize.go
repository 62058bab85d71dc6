package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/product-normalizer/internal/cli"
	"github.com/Veraticus/product-normalizer/internal/normalize"
	"github.com/Veraticus/product-normalizer/internal/reftable"
	"github.com/Veraticus/product-normalizer/internal/report"
)

func normalizeCmd() *cobra.Command {
	var (
		output         string
		threshold      float64
		learnThreshold float64
		learn          bool
	)

	cmd := &cobra.Command{
		Use:   "normalize <invoices.xlsx>",
		Short: "Normalize invoice descriptions against the reference table",
		Long: `Match every invoice description to its reference base name, exactly when the
variant is known and fuzzily otherwise, and write a workbook with the labelled
rows, a quality report and a summary.`,
		Example: `  # Normalize with the configured reference table
  prodnorm normalize facturas.xlsx

  # Learn confident fuzzy matches back into the table
  prodnorm normalize facturas.xlsx --learn -o resultado.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			scorer, err := scorerFor(cfg)
			if err != nil {
				return err
			}

			input := args[0]
			if output == "" {
				output = defaultOutput(input, "normalizado")
			}
			if !cmd.Flags().Changed("threshold") {
				threshold = cfg.Matching.Threshold
			}
			if !cmd.Flags().Changed("learn-threshold") {
				learnThreshold = cfg.Learning.Threshold
			}
			if !cmd.Flags().Changed("learn") {
				learn = cfg.Learning.Enabled
			}

			ctx := cli.NewInterruptHandler(cmd.ErrOrStderr(), output).HandleInterrupts(cmd.Context())

			items, unsalvageable, err := readInvoices(input, cfg)
			if err != nil {
				return err
			}

			store, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			if learn && cfg.Learning.Checkpoint {
				checkpointBefore(ctx, store, "learn")
			}

			nc, err := normalize.NewContext(ctx, reftable.NewCache(store, cfg.Reference.CacheTTL), normalize.Options{
				Scorer:         scorer,
				Threshold:      threshold,
				LearnThreshold: learnThreshold,
				Learn:          learn,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if nc.Degraded() {
				fmt.Fprintln(out, cli.FormatWarning("Reference table not found, descriptions pass through unmatched"))
			}

			res, err := nc.Run(ctx, items)
			if err != nil {
				return err
			}
			if res.LearnErr != nil {
				fmt.Fprintln(out, cli.FormatWarning("Learned entries could not be saved: "+res.LearnErr.Error()))
			}

			if err := report.WriteNormalized(output, res.Items, res.Stats, unsalvageable); err != nil {
				return err
			}

			fmt.Fprintln(out, cli.RenderNormalizeSummary(res.Stats, res.Learned, len(unsalvageable)))
			fmt.Fprintln(out, cli.FormatSuccess("Results written to "+output))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output workbook (default: <input>_normalizado.xlsx)")
	cmd.Flags().Float64Var(&threshold, "threshold", normalize.DefaultThreshold, "minimum fuzzy similarity to accept a match")
	cmd.Flags().Float64Var(&learnThreshold, "learn-threshold", normalize.DefaultLearnThreshold, "minimum similarity to learn a fuzzy match")
	cmd.Flags().BoolVar(&learn, "learn", false, "append confident fuzzy matches to the reference table")

	return cmd
}
