package mapping

import (
	"time"

	"github.com/google/uuid"
)

// Confidence is the tier assigned to a mapping entry. EXACT is reserved for
// curator-verified rows; automated suggestions enter as PROBABLE or UNCERTAIN.
type Confidence string

const (
	ConfidenceExact     Confidence = "EXACT"
	ConfidenceProbable  Confidence = "PROBABLE"
	ConfidenceUncertain Confidence = "UNCERTAIN"
	ConfidenceUnmapped  Confidence = "UNMAPPED"
)

// rank orders confidence tiers for retrieval, strongest first.
func (c Confidence) rank() int {
	switch c {
	case ConfidenceExact:
		return 0
	case ConfidenceProbable:
		return 1
	case ConfidenceUncertain:
		return 2
	default:
		return 3
	}
}

// Valid reports whether c is a known confidence tier.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceExact, ConfidenceProbable, ConfidenceUncertain, ConfidenceUnmapped:
		return true
	}
	return false
}

// Entry relates a local terminology code to one code in an external
// classification. A source code may carry any number of entries; at most one
// EXACT entry may exist per (SourceCode, TargetSystem) pair.
type Entry struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	SourceCode   string     `db:"source_code" json:"source_code"`
	TargetSystem string     `db:"target_system" json:"target_system"`
	TargetCode   *string    `db:"target_code" json:"target_code,omitempty"`
	Display      string     `db:"display" json:"display,omitempty"`
	Confidence   Confidence `db:"confidence" json:"confidence"`
	LastVerified *time.Time `db:"last_verified" json:"last_verified,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// Clone returns a copy safe to hand across the store boundary.
func (e *Entry) Clone() *Entry {
	cp := *e
	if e.TargetCode != nil {
		tc := *e.TargetCode
		cp.TargetCode = &tc
	}
	if e.LastVerified != nil {
		lv := *e.LastVerified
		cp.LastVerified = &lv
	}
	return &cp
}

// targetCodeOrEmpty is used for row matching; an unresolved entry matches
// the empty string.
func (e *Entry) targetCodeOrEmpty() string {
	if e.TargetCode == nil {
		return ""
	}
	return *e.TargetCode
}
