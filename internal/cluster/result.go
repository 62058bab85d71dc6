package cluster

import (
	"strings"

	"github.com/Veraticus/product-normalizer/internal/model"
)

// Level is the outcome of one cascade level.
type Level struct {
	masterOf  map[string]string
	reps      []string
	Masters   []string
	Threshold int
}

// Members returns the representatives claimed by master, the master first.
func (l Level) Members(master string) []string {
	var out []string
	for _, rep := range l.reps {
		if l.masterOf[rep] == master {
			out = append(out, rep)
		}
	}
	return out
}

// Result holds every level and the per-description assignments.
type Result struct {
	index       map[string]int
	Levels      []Level
	Assignments []model.FamilyAssignment
}

// FamilyCounts returns the number of families at each level.
func (r *Result) FamilyCounts() []int {
	counts := make([]int, len(r.Levels))
	for i, l := range r.Levels {
		counts[i] = len(l.Masters)
	}
	return counts
}

// MasterOf returns the master of an original description at the 1-based level.
func (r *Result) MasterOf(level int, description string) (string, bool) {
	fa, ok := r.Assignment(description)
	if !ok || level < 1 || level > len(fa.Masters) {
		return "", false
	}
	return fa.Masters[level-1], true
}

// Assignment returns the full master chain of an original description.
func (r *Result) Assignment(description string) (model.FamilyAssignment, bool) {
	i, ok := r.index[strings.TrimSpace(description)]
	if !ok {
		return model.FamilyAssignment{}, false
	}
	return r.Assignments[i], true
}

// Apply attaches the family chain to each line item. Items whose description
// was not clustered get empty families.
func (r *Result) Apply(items []model.LineItem) []model.ClusteredItem {
	out := make([]model.ClusteredItem, len(items))
	for i, item := range items {
		out[i] = model.ClusteredItem{LineItem: item}
		if fa, ok := r.Assignment(item.Description); ok {
			out[i].Families = fa.Masters
		} else {
			out[i].Families = make([]string, len(r.Levels))
		}
	}
	return out
}
