package mapping

import "context"

// Repository provides access to mapping entries.
//
// Add fails with errs.ErrConflict when a second EXACT entry is stored for a
// (sourceCode, targetSystem) pair that already has one. ListBySource returns
// entries ordered by confidence (EXACT first) then LastVerified descending.
// Remove fails with errs.ErrNotFound when no row matches.
type Repository interface {
	Add(ctx context.Context, e *Entry) (*Entry, error)
	ListBySource(ctx context.Context, sourceCode string) ([]*Entry, error)
	Remove(ctx context.Context, sourceCode, targetSystem, targetCode string) error
	// CountBySource reports how many entries reference sourceCode; the record
	// service uses it to enforce delete referential integrity.
	CountBySource(ctx context.Context, sourceCode string) (int, error)
	// DeleteBySource removes every entry referencing sourceCode (cascade).
	DeleteBySource(ctx context.Context, sourceCode string) (int, error)
}
