package record

import "context"

// Repository provides access to stored terminology records.
//
// Insert fails with errs.ErrDuplicateCode when the code already exists.
// Get and Update fail with errs.ErrNotFound for unknown codes. Delete does
// not check mapping references; that invariant is enforced by the Service,
// which owns the write boundary across the record store and mapping table.
type Repository interface {
	Insert(ctx context.Context, rec *TerminologyRecord) (*TerminologyRecord, error)
	Get(ctx context.Context, code string) (*TerminologyRecord, error)
	Update(ctx context.Context, code string, upd *Update) (*TerminologyRecord, error)
	Delete(ctx context.Context, code string) error
	List(ctx context.Context, filter Filter, limit, offset int) ([]*TerminologyRecord, int, error)
	// All returns a snapshot of every record, used by the search index rebuild.
	All(ctx context.Context) ([]*TerminologyRecord, error)
}
