package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/product-normalizer/internal/lineitem"
	"github.com/Veraticus/product-normalizer/internal/model"
	"github.com/Veraticus/product-normalizer/internal/normalize"
)

// RenderNormalizeSummary renders the per-method breakdown of a normalization run.
func RenderNormalizeSummary(stats normalize.Stats, learned, unsalvageable int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Rows processed: %d\n", ChartIcon, stats.Total)
	fmt.Fprintf(&b, "  • Unique originals: %d\n", stats.UniqueOriginal)
	fmt.Fprintf(&b, "  • Unique normalized: %d\n", stats.UniqueNormalized)
	fmt.Fprintf(&b, "  • Mean similarity: %.1f\n", stats.MeanScore)
	b.WriteString("\n")

	for _, m := range model.AllMethods {
		line := fmt.Sprintf("  %-11s %6d  %5.1f%%", m, stats.Counts[m], stats.Percentage(m))
		b.WriteString(methodStyle(m).Render(line))
		b.WriteString("\n")
	}

	if learned > 0 {
		b.WriteString("\n")
		b.WriteString(FormatSuccess(fmt.Sprintf("Learned %d new reference entries", learned)))
	}
	if unsalvageable > 0 {
		b.WriteString("\n")
		b.WriteString(FormatWarning(fmt.Sprintf("%d rows could not be rescued", unsalvageable)))
	}

	return RenderBox("Normalization Complete", strings.TrimRight(b.String(), "\n"))
}

func methodStyle(m model.MatchMethod) lipgloss.Style {
	switch m {
	case model.MethodExact:
		return SuccessStyle
	case model.MethodFuzzy:
		return InfoStyle
	case model.MethodNoMatch:
		return WarningStyle
	default:
		return SubtleStyle
	}
}

// RenderClusterSummary renders the family count of each level.
func RenderClusterSummary(thresholds model.ThresholdSet, familyCounts []int, unique int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Unique descriptions: %d\n\n", TreeIcon, unique)
	for i, n := range familyCounts {
		var threshold int
		if i < len(thresholds) {
			threshold = thresholds[i]
		}
		fmt.Fprintf(&b, "  Level %d (> %d%%): %s families\n", i+1, threshold, BoldStyle.Render(fmt.Sprint(n)))
	}
	return RenderBox("Clustering Complete", strings.TrimRight(b.String(), "\n"))
}

// RenderPareto renders the first limit Pareto rows as a table. A
// non-positive limit renders all of them.
func RenderPareto(freqs []lineitem.Frequency, limit int) string {
	if limit <= 0 || limit > len(freqs) {
		limit = len(freqs)
	}

	header := TableHeaderStyle.Render(fmt.Sprintf("%-40s %6s %12s %7s  %s", "DESCRIPTION", "COUNT", "VOLUME", "PCT", "CATEGORY"))
	lines := []string{header}
	for _, f := range freqs[:limit] {
		lines = append(lines, fmt.Sprintf("%-40s %6d %12s %6.1f%%  %s",
			truncate(f.Description, 40),
			f.Count,
			f.WeightedVolume.StringFixed(2),
			f.Percentile,
			paretoStyle(f.Category).Render(string(f.Category))))
	}
	if limit < len(freqs) {
		lines = append(lines, SubtleStyle.Render(fmt.Sprintf("… and %d more", len(freqs)-limit)))
	}
	return strings.Join(lines, "\n")
}

func paretoStyle(c lineitem.ParetoCategory) lipgloss.Style {
	switch c {
	case lineitem.ParetoExcellent, lineitem.ParetoVeryGood:
		return SuccessStyle
	case lineitem.ParetoGood:
		return InfoStyle
	case lineitem.ParetoRegular:
		return WarningStyle
	default:
		return SubtleStyle
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
