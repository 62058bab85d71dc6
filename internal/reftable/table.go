// Package reftable loads, caches and persists the variant → base normalization table.
package reftable

import (
	"strings"

	"github.com/Veraticus/product-normalizer/internal/model"
)

// Table is an immutable, indexed view of the reference entries. Use With to
// derive a table with more entries.
type Table struct {
	bases    map[string]string
	exact    map[string]string
	folded   map[string]struct{}
	entries  []model.ReferenceEntry
	variants []string
}

// New builds a table from raw entries. Entries are trimmed and rows with an
// empty variant or base are dropped. A repeated variant keeps its first
// position while its base is taken from the last occurrence.
func New(entries []model.ReferenceEntry) *Table {
	t := &Table{
		bases:  make(map[string]string, len(entries)),
		exact:  make(map[string]string, len(entries)),
		folded: make(map[string]struct{}, 2*len(entries)),
	}
	for _, e := range entries {
		t.add(e)
	}
	return t
}

func (t *Table) add(e model.ReferenceEntry) bool {
	e = e.Clean()
	if e.Variant == "" || e.Base == "" {
		return false
	}

	if _, seen := t.bases[e.Variant]; !seen {
		t.variants = append(t.variants, e.Variant)
	}
	t.bases[e.Variant] = e.Base

	key := foldKey(e.Variant)
	if _, seen := t.exact[key]; !seen {
		t.exact[key] = e.Variant
	}
	t.folded[key] = struct{}{}
	t.folded[foldKey(e.Base)] = struct{}{}
	t.entries = append(t.entries, e)
	return true
}

// With returns a new table holding the receiver's entries followed by extra.
func (t *Table) With(extra ...model.ReferenceEntry) *Table {
	all := make([]model.ReferenceEntry, 0, t.Len()+len(extra))
	all = append(all, t.Entries()...)
	all = append(all, extra...)
	return New(all)
}

// Len returns the number of valid rows, duplicates included.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Entries returns a copy of the rows in load order.
func (t *Table) Entries() []model.ReferenceEntry {
	if t == nil {
		return nil
	}
	out := make([]model.ReferenceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Variants returns the distinct variants in first-appearance order.
func (t *Table) Variants() []string {
	if t == nil {
		return nil
	}
	return t.variants
}

// BaseOf returns the canonical name for an exact variant.
func (t *Table) BaseOf(variant string) (string, bool) {
	if t == nil {
		return "", false
	}
	base, ok := t.bases[variant]
	return base, ok
}

// LookupFold finds the first variant equal to s ignoring case.
func (t *Table) LookupFold(s string) (string, bool) {
	if t == nil {
		return "", false
	}
	v, ok := t.exact[foldKey(s)]
	return v, ok
}

// ContainsFold reports whether s appears in either column, ignoring case.
func (t *Table) ContainsFold(s string) bool {
	if t == nil {
		return false
	}
	_, ok := t.folded[foldKey(s)]
	return ok
}

// UniqueBases counts distinct canonical names.
func (t *Table) UniqueBases() int {
	if t == nil {
		return 0
	}
	seen := make(map[string]struct{}, len(t.bases))
	for _, b := range t.bases {
		seen[b] = struct{}{}
	}
	return len(seen)
}

func foldKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
