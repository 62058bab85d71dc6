package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/product-normalizer/internal/cli"
	"github.com/Veraticus/product-normalizer/internal/common"
	"github.com/Veraticus/product-normalizer/internal/normalize"
	"github.com/Veraticus/product-normalizer/internal/reftable"
)

func learnCmd() *cobra.Command {
	var (
		threshold      float64
		learnThreshold float64
	)

	cmd := &cobra.Command{
		Use:   "learn <invoices.xlsx>",
		Short: "Learn new reference variants from an invoice workbook",
		Long: `Normalize the workbook and append every fuzzy match scoring at least the learn
threshold as a new variant of its base name. Running it twice on the same file
adds nothing the second time.`,
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
			if !cmd.Flags().Changed("threshold") {
				threshold = cfg.Matching.Threshold
			}
			if !cmd.Flags().Changed("learn-threshold") {
				learnThreshold = cfg.Learning.Threshold
			}

			ctx := cmd.Context()
			items, _, err := readInvoices(args[0], cfg)
			if err != nil {
				return err
			}

			store, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			if cfg.Learning.Checkpoint {
				checkpointBefore(ctx, store, "learn")
			}

			nc, err := normalize.NewContext(ctx, reftable.NewCache(store, cfg.Reference.CacheTTL), normalize.Options{
				Scorer:         scorer,
				Threshold:      threshold,
				LearnThreshold: learnThreshold,
				Learn:          true,
			})
			if err != nil {
				return err
			}
			if nc.Degraded() {
				return common.NewUserError("Reference table not found at "+store.Location(), common.ErrMissingResource)
			}

			res, err := nc.Run(ctx, items)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case res.LearnErr != nil:
				fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("Learned %d entries but could not save them: %v", res.Learned, res.LearnErr)))
			case res.Learned == 0:
				fmt.Fprintln(out, cli.FormatInfo("Nothing new to learn"))
			default:
				fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Learned %d new reference entries into %s", res.Learned, store.Location())))
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", normalize.DefaultThreshold, "minimum fuzzy similarity to accept a match")
	cmd.Flags().Float64Var(&learnThreshold, "learn-threshold", normalize.DefaultLearnThreshold, "minimum similarity to learn a fuzzy match")
	return cmd
}
