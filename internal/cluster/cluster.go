// Package cluster groups descriptions into product families across a cascade
// of decreasing similarity thresholds.
package cluster

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/Veraticus/product-normalizer/internal/model"
	"github.com/Veraticus/product-normalizer/internal/similarity"
)

// ProgressFunc is called after each representative of a level is processed.
type ProgressFunc func(level, done, total int)

// Weighted is a description with its occurrence weight.
type Weighted struct {
	Description string
	Weight      float64
}

// Clusterer runs the cascade. Each level makes one greedy left-to-right pass:
// an unassigned representative becomes a master and claims every later
// unassigned representative scoring strictly above the level's threshold.
type Clusterer struct {
	scorer     similarity.Scorer
	Progress   ProgressFunc
	thresholds model.ThresholdSet
}

// New creates a clusterer. A nil scorer uses token-sort ratio.
func New(thresholds model.ThresholdSet, scorer similarity.Scorer) (*Clusterer, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	if scorer == nil {
		scorer = similarity.TokenSortRatio
	}
	return &Clusterer{
		thresholds: append(model.ThresholdSet(nil), thresholds...),
		scorer:     scorer,
	}, nil
}

// Thresholds returns a copy of the configured thresholds.
func (c *Clusterer) Thresholds() model.ThresholdSet {
	return append(model.ThresholdSet(nil), c.thresholds...)
}

// Cluster clusters raw descriptions. Repeated descriptions raise their
// weight, so frequent ones are visited first; ties keep input order.
func (c *Clusterer) Cluster(descriptions []string) *Result {
	counts := make(map[string]int)
	var order []string
	for _, d := range descriptions {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if _, seen := counts[d]; !seen {
			order = append(order, d)
		}
		counts[d]++
	}

	weighted := make([]Weighted, len(order))
	for i, d := range order {
		weighted[i] = Weighted{Description: d, Weight: float64(counts[d])}
	}
	return c.ClusterWeighted(weighted)
}

// ClusterWeighted clusters descriptions visited by descending weight. Equal
// weights keep input order and repeated descriptions sum their weights.
func (c *Clusterer) ClusterWeighted(items []Weighted) *Result {
	weights := make(map[string]float64)
	var order []string
	for _, it := range items {
		d := strings.TrimSpace(it.Description)
		if d == "" {
			continue
		}
		if _, seen := weights[d]; !seen {
			order = append(order, d)
		}
		weights[d] += it.Weight
	}

	sort.SliceStable(order, func(i, j int) bool {
		return weights[order[i]] > weights[order[j]]
	})

	result := &Result{index: make(map[string]int, len(order))}
	if len(order) == 0 {
		return result
	}

	reps := order
	for i, threshold := range c.thresholds {
		level := c.runLevel(i+1, threshold, reps)
		result.Levels = append(result.Levels, level)
		reps = level.Masters
	}

	result.Assignments = make([]model.FamilyAssignment, len(order))
	for i, d := range order {
		masters := make([]string, len(result.Levels))
		current := d
		for l, level := range result.Levels {
			current = level.masterOf[current]
			masters[l] = current
		}
		result.Assignments[i] = model.FamilyAssignment{Description: d, Masters: masters}
		result.index[d] = i
	}

	slog.Debug("Clustered descriptions",
		"unique", len(order),
		"families", result.FamilyCounts())

	return result
}

func (c *Clusterer) runLevel(levelNum, threshold int, reps []string) Level {
	level := Level{
		Threshold: threshold,
		masterOf:  make(map[string]string, len(reps)),
		reps:      reps,
	}
	assigned := make([]bool, len(reps))
	limit := float64(threshold)

	for i, rep := range reps {
		if !assigned[i] {
			assigned[i] = true
			level.masterOf[rep] = rep
			level.Masters = append(level.Masters, rep)

			for j := i + 1; j < len(reps); j++ {
				if assigned[j] {
					continue
				}
				if c.scorer(rep, reps[j]) > limit {
					assigned[j] = true
					level.masterOf[reps[j]] = rep
				}
			}
		}
		if c.Progress != nil {
			c.Progress(levelNum, i+1, len(reps))
		}
	}

	return level
}
