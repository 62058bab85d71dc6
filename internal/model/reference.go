package model

import (
	"strings"
	"time"
)

// ReferenceEntry is one row of the normalization table: an as-written invoice
// description and the canonical name it maps to.
type ReferenceEntry struct {
	Variant string
	Base    string
}

// Clean returns the entry with both fields trimmed.
func (e ReferenceEntry) Clean() ReferenceEntry {
	return ReferenceEntry{
		Variant: strings.TrimSpace(e.Variant),
		Base:    strings.TrimSpace(e.Base),
	}
}

// Valid reports whether both fields are non-empty after trimming.
func (e ReferenceEntry) Valid() bool {
	c := e.Clean()
	return c.Variant != "" && c.Base != ""
}

// EntrySource indicates how a reference entry was created.
type EntrySource string

const (
	// SourceManual indicates the entry was added by hand.
	SourceManual EntrySource = "MANUAL"
	// SourceImport indicates the entry came from a bulk import.
	SourceImport EntrySource = "IMPORT"
	// SourceLearned indicates the entry was added by the auto-learning pass.
	SourceLearned EntrySource = "LEARNED"
)

// StoredEntry is a reference entry with its persistence metadata.
type StoredEntry struct {
	CreatedAt time.Time
	ReferenceEntry
	Source EntrySource
	ID     int64
}

// LearnedEntry records a row added by one auto-learning pass.
type LearnedEntry struct {
	LearnedAt time.Time
	ReferenceEntry
	RunID string
}
