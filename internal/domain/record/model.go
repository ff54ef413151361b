package record

import (
	"strings"

	"github.com/termbridge/termbridge/pkg/errs"
)

// TerminologyRecord is a single entry in the local terminology system.
// Code is the primary key and is immutable once stored; every other field
// may change through an explicit update.
type TerminologyRecord struct {
	Code        string   `db:"code" json:"code"`
	Display     string   `db:"display" json:"display"`
	Description string   `db:"description" json:"description,omitempty"`
	Category    string   `db:"category" json:"category,omitempty"`
	System      string   `db:"system" json:"system"`
	Synonyms    []string `db:"synonyms" json:"synonyms,omitempty"`
	Keywords    []string `db:"keywords" json:"keywords"`
}

// Update carries the mutable fields of a partial update. Nil pointers leave
// the stored value untouched; Synonyms/Keywords replace the whole slice when
// non-nil.
type Update struct {
	// Code is accepted on the wire only so that attempts to change it can be
	// rejected with errs.ErrImmutableField.
	Code        *string  `json:"code,omitempty"`
	Display     *string  `json:"display,omitempty"`
	Description *string  `json:"description,omitempty"`
	Category    *string  `json:"category,omitempty"`
	System      *string  `json:"system,omitempty"`
	Synonyms    []string `json:"synonyms,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// Filter narrows list results by category and/or source system.
// Empty fields match everything.
type Filter struct {
	Category string
	System   string
}

// Matches reports whether r satisfies the filter.
func (f Filter) Matches(r *TerminologyRecord) bool {
	if f.Category != "" && !strings.EqualFold(f.Category, r.Category) {
		return false
	}
	if f.System != "" && !strings.EqualFold(f.System, r.System) {
		return false
	}
	return true
}

// NormalizeKeywords lower-cases, trims, and deduplicates search terms,
// preserving first-seen order.
func NormalizeKeywords(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// Normalize canonicalizes the record in place: keywords are lower-cased and
// deduplicated, synonyms and string fields are whitespace-trimmed.
func (r *TerminologyRecord) Normalize() {
	r.Code = strings.TrimSpace(r.Code)
	r.Display = strings.TrimSpace(r.Display)
	r.Category = strings.TrimSpace(r.Category)
	r.System = strings.TrimSpace(r.System)
	for i, s := range r.Synonyms {
		r.Synonyms[i] = strings.TrimSpace(s)
	}
	r.Keywords = NormalizeKeywords(r.Keywords)
}

// Validate checks the ingestion invariants. It assumes Normalize has run.
func (r *TerminologyRecord) Validate() error {
	if r.Code == "" {
		return errs.InvalidRecordf("record has no code")
	}
	if r.Display == "" {
		return errs.InvalidRecordf("record %q has no display", r.Code)
	}
	if len(r.Keywords) == 0 {
		return errs.InvalidRecordf("record %q has no searchable keywords after normalization", r.Code)
	}
	return nil
}

// Clone returns a deep copy so callers can hand records across the store
// boundary without sharing slices.
func (r *TerminologyRecord) Clone() *TerminologyRecord {
	cp := *r
	cp.Synonyms = append([]string(nil), r.Synonyms...)
	cp.Keywords = append([]string(nil), r.Keywords...)
	return &cp
}
