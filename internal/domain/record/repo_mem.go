package record

import (
	"context"
	"sort"
	"sync"

	"github.com/termbridge/termbridge/pkg/errs"
)

// memRepo is the default in-memory record store. All methods are safe for
// concurrent use; reads run in parallel, writes serialize on the mutex.
type memRepo struct {
	mu      sync.RWMutex
	records map[string]*TerminologyRecord
}

// NewMemRepo creates an empty in-memory record repository.
func NewMemRepo() Repository {
	return &memRepo{records: make(map[string]*TerminologyRecord)}
}

func (r *memRepo) Insert(_ context.Context, rec *TerminologyRecord) (*TerminologyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[rec.Code]; ok {
		return nil, errs.DuplicateCodef("record %q already exists", rec.Code)
	}
	stored := rec.Clone()
	r.records[rec.Code] = stored
	return stored.Clone(), nil
}

func (r *memRepo) Get(_ context.Context, code string) (*TerminologyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[code]
	if !ok {
		return nil, errs.NotFoundf("record %q", code)
	}
	return rec.Clone(), nil
}

func (r *memRepo) Update(_ context.Context, code string, upd *Update) (*TerminologyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[code]
	if !ok {
		return nil, errs.NotFoundf("record %q", code)
	}
	next := rec.Clone()
	if upd.Display != nil {
		next.Display = *upd.Display
	}
	if upd.Description != nil {
		next.Description = *upd.Description
	}
	if upd.Category != nil {
		next.Category = *upd.Category
	}
	if upd.System != nil {
		next.System = *upd.System
	}
	if upd.Synonyms != nil {
		next.Synonyms = append([]string(nil), upd.Synonyms...)
	}
	if upd.Keywords != nil {
		next.Keywords = NormalizeKeywords(upd.Keywords)
	}
	next.Normalize()
	if err := next.Validate(); err != nil {
		return nil, err
	}
	r.records[code] = next
	return next.Clone(), nil
}

func (r *memRepo) Delete(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[code]; !ok {
		return errs.NotFoundf("record %q", code)
	}
	delete(r.records, code)
	return nil
}

func (r *memRepo) List(_ context.Context, filter Filter, limit, offset int) ([]*TerminologyRecord, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]*TerminologyRecord, 0, len(r.records))
	for _, rec := range r.records {
		if filter.Matches(rec) {
			matched = append(matched, rec)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Code < matched[j].Code })

	total := len(matched)
	if offset >= total {
		return []*TerminologyRecord{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	out := make([]*TerminologyRecord, 0, end-offset)
	for _, rec := range matched[offset:end] {
		out = append(out, rec.Clone())
	}
	return out, total, nil
}

func (r *memRepo) All(_ context.Context) ([]*TerminologyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*TerminologyRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}
