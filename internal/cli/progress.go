package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/product-normalizer/internal/cluster"
)

func newBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(w); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

// ClusterProgress draws one progress bar per cascade level.
type ClusterProgress struct {
	writer io.Writer
	bar    *progressbar.ProgressBar
	level  int
}

// NewClusterProgress creates a progress reporter writing to w.
func NewClusterProgress(w io.Writer) *ClusterProgress {
	return &ClusterProgress{writer: w}
}

// Func returns the callback to install on a cluster.Clusterer.
func (p *ClusterProgress) Func() cluster.ProgressFunc {
	return p.update
}

func (p *ClusterProgress) update(level, done, total int) {
	if p.bar == nil || level != p.level {
		p.level = level
		p.bar = newBar(p.writer, total, fmt.Sprintf("[cyan][bold]Level %d[reset]", level))
	}
	if err := p.bar.Set(done); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// RowProgress wraps a bar advanced once per processed row.
type RowProgress struct {
	bar *progressbar.ProgressBar
}

// NewRowProgress creates a row counter bar with the given description.
func NewRowProgress(w io.Writer, total int, description string) *RowProgress {
	return &RowProgress{bar: newBar(w, total, "[cyan][bold]"+description+"[reset]")}
}

// Add advances the bar by n rows.
func (p *RowProgress) Add(n int) {
	if err := p.bar.Add(n); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Finish completes the bar.
func (p *RowProgress) Finish() {
	if err := p.bar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
}
