package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/product-normalizer/internal/cli"
	"github.com/Veraticus/product-normalizer/internal/model"
	"github.com/Veraticus/product-normalizer/internal/normalize"
	"github.com/Veraticus/product-normalizer/internal/reftable"
)

func matchCmd() *cobra.Command {
	var threshold float64

	cmd := &cobra.Command{
		Use:   "match <description>...",
		Short: "Match single descriptions against the reference table",
		Example: `  prodnorm match "COCA COLA 600 ML" "yerba playadito 1k"`,
		Args: cobra.MinimumNArgs(1),
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

			ctx := cmd.Context()
			store, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			nc, err := normalize.NewContext(ctx, reftable.NewCache(store, cfg.Reference.CacheTTL), normalize.Options{
				Scorer:    scorer,
				Threshold: threshold,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if nc.Degraded() {
				fmt.Fprintln(out, cli.FormatWarning("Reference table not found, descriptions pass through unmatched"))
			}
			for _, desc := range args {
				fmt.Fprintln(out, formatMatch(desc, nc.Matcher.Match(desc, nc.Table, threshold)))
			}
			return nil
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", normalize.DefaultThreshold, "minimum fuzzy similarity to accept a match")
	return cmd
}

func formatMatch(desc string, r model.MatchResult) string {
	switch r.Method {
	case model.MethodExact:
		return cli.FormatSuccess(fmt.Sprintf("%s → %s (exact)", desc, r.Label))
	case model.MethodFuzzy:
		return cli.InfoStyle.Render(fmt.Sprintf("~ %s → %s (%.1f via %q)", desc, r.Label, r.Score, r.MatchedVariant))
	case model.MethodNoMatch:
		return cli.FormatWarning(fmt.Sprintf("%s: no match (best %.1f)", desc, r.Score))
	default:
		return cli.SubtleStyle.Render("(empty description)")
	}
}
