package normalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/product-normalizer/internal/common"
	"github.com/Veraticus/product-normalizer/internal/model"
	"github.com/Veraticus/product-normalizer/internal/reftable"
	"github.com/Veraticus/product-normalizer/internal/similarity"
)

// Options configures a normalization run.
type Options struct {
	Scorer         similarity.Scorer
	Threshold      float64
	LearnThreshold float64
	Learn          bool
}

// DefaultOptions returns the standard thresholds with learning disabled.
func DefaultOptions() Options {
	return Options{
		Threshold:      DefaultThreshold,
		LearnThreshold: DefaultLearnThreshold,
	}
}

// Context bundles what one batch run needs: the table snapshot, the matcher
// and, when learning is enabled, the learner.
type Context struct {
	Table          *reftable.Table
	Matcher        *Matcher
	Learner        *Learner
	Threshold      float64
	LearnThreshold float64
}

// RunResult is the outcome of Context.Run.
type RunResult struct {
	LearnErr error
	Items    []model.NormalizedItem
	Stats    Stats
	Learned  int
}

// NewContext loads the table through cache. A missing table is not an error:
// the context degrades to passing every description through unmatched.
func NewContext(ctx context.Context, cache *reftable.Cache, opts Options) (*Context, error) {
	table, err := cache.Get(ctx)
	if err != nil {
		if !errors.Is(err, common.ErrMissingResource) {
			return nil, fmt.Errorf("failed to load reference table: %w", err)
		}
		slog.Warn("Reference table unavailable, descriptions will pass through unmatched",
			"location", cache.Store().Location(),
			"error", err)
		table = nil
	}

	nc := &Context{
		Table:          table,
		Matcher:        NewMatcher(opts.Scorer),
		Threshold:      opts.Threshold,
		LearnThreshold: opts.LearnThreshold,
	}
	if opts.Learn && table != nil {
		nc.Learner = NewLearner(cache)
	}
	return nc, nil
}

// Degraded reports whether the run has no reference table.
func (c *Context) Degraded() bool {
	return c.Table == nil
}

// Run normalizes items and, when a learner is configured, learns from the
// result. A persistence failure while learning is reported in
// RunResult.LearnErr and does not fail the run.
func (c *Context) Run(ctx context.Context, items []model.LineItem) (*RunResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	normalized, stats := c.Matcher.NormalizeDataset(items, c.Table, c.Threshold)
	result := &RunResult{Items: normalized, Stats: stats}

	if c.Learner == nil {
		return result, nil
	}

	added, err := c.Learner.Learn(ctx, normalized, c.LearnThreshold)
	result.Learned = added
	if err != nil {
		if !errors.Is(err, common.ErrPersistence) {
			return result, err
		}
		result.LearnErr = err
	}
	return result, nil
}
