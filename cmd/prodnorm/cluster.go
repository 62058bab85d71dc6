package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/product-normalizer/internal/cli"
	"github.com/Veraticus/product-normalizer/internal/cluster"
	"github.com/Veraticus/product-normalizer/internal/common"
	"github.com/Veraticus/product-normalizer/internal/lineitem"
	"github.com/Veraticus/product-normalizer/internal/model"
	"github.com/Veraticus/product-normalizer/internal/report"
)

func clusterCmd() *cobra.Command {
	var (
		output     string
		thresholds string
		top        int
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "cluster <invoices.xlsx>",
		Short: "Group invoice descriptions into product families",
		Long: `Cluster descriptions through a cascade of decreasing similarity thresholds.
Descriptions are visited by how many rows carry them, ties in file order, so
the most frequent spelling of a product becomes its family master.`,
		Example: `  # Four-level cascade with the configured thresholds
  prodnorm cluster facturas.xlsx

  # Custom cascade
  prodnorm cluster facturas.xlsx --thresholds 90,80,70`,
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

			levels := cfg.Clustering.Thresholds
			if thresholds != "" {
				if levels, err = parseThresholds(thresholds); err != nil {
					return err
				}
			}

			clusterer, err := cluster.New(levels, scorer)
			if err != nil {
				return common.NewUserError("Invalid thresholds: "+err.Error(), err)
			}

			input := args[0]
			if output == "" {
				output = defaultOutput(input, "familias")
			}

			ctx := cli.NewInterruptHandler(cmd.ErrOrStderr(), output).HandleInterrupts(cmd.Context())

			items, unsalvageable, err := readInvoices(input, cfg)
			if err != nil {
				return err
			}

			if !quiet {
				clusterer.Progress = cli.NewClusterProgress(cmd.ErrOrStderr()).Func()
			}
			result := clusterInvoices(clusterer, items)
			freqs := lineitem.Pareto(items)
			if err := ctx.Err(); err != nil {
				return err
			}

			if err := report.WriteClusters(output, result.Apply(items), result, freqs, unsalvageable); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, cli.RenderClusterSummary(clusterer.Thresholds(), result.FamilyCounts(), len(result.Assignments)))
			if top != 0 {
				fmt.Fprintln(out, cli.RenderPareto(freqs, top))
			}
			fmt.Fprintln(out, cli.FormatSuccess("Results written to "+output))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output workbook (default: <input>_familias.xlsx)")
	cmd.Flags().StringVar(&thresholds, "thresholds", "", "comma-separated descending thresholds, one per level")
	cmd.Flags().IntVar(&top, "top", 10, "Pareto rows to print (0 hides the table, -1 prints all)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide progress bars")

	return cmd
}

// clusterInvoices clusters the descriptions of items. Each row counts once
// toward its description's weight.
func clusterInvoices(clusterer *cluster.Clusterer, items []model.LineItem) *cluster.Result {
	descriptions := make([]string, 0, len(items))
	for _, item := range items {
		if !item.DescriptionMissing {
			descriptions = append(descriptions, item.Description)
		}
	}
	return clusterer.Cluster(descriptions)
}

func parseThresholds(s string) (model.ThresholdSet, error) {
	var out model.ThresholdSet
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, common.NewUserError(fmt.Sprintf("Threshold %q is not an integer", part), err)
		}
		out = append(out, n)
	}
	if err := out.Validate(); err != nil {
		return nil, common.NewUserError("Invalid thresholds: "+err.Error(), err)
	}
	return out, nil
}
