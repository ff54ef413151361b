package mapping

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/termbridge/termbridge/pkg/errs"
)

// memRepo is the default in-memory mapping table.
type memRepo struct {
	mu      sync.RWMutex
	entries map[string][]*Entry // keyed by source code
}

// NewMemRepo creates an empty in-memory mapping repository.
func NewMemRepo() Repository {
	return &memRepo{entries: make(map[string][]*Entry)}
}

func (r *memRepo) Add(_ context.Context, e *Entry) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.Confidence == ConfidenceExact {
		for _, existing := range r.entries[e.SourceCode] {
			if existing.TargetSystem == e.TargetSystem && existing.Confidence == ConfidenceExact {
				return nil, errs.Conflictf("EXACT mapping already exists for (%s, %s)", e.SourceCode, e.TargetSystem)
			}
		}
	}

	stored := e.Clone()
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.entries[e.SourceCode] = append(r.entries[e.SourceCode], stored)
	return stored.Clone(), nil
}

func (r *memRepo) ListBySource(_ context.Context, sourceCode string) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.entries[sourceCode]
	out := make([]*Entry, 0, len(rows))
	for _, e := range rows {
		out = append(out, e.Clone())
	}
	sortEntries(out)
	return out, nil
}

// sortEntries orders by confidence tier, then LastVerified descending with
// unverified rows last, then creation time for stability.
func sortEntries(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Confidence.rank() != b.Confidence.rank() {
			return a.Confidence.rank() < b.Confidence.rank()
		}
		switch {
		case a.LastVerified != nil && b.LastVerified != nil:
			if !a.LastVerified.Equal(*b.LastVerified) {
				return a.LastVerified.After(*b.LastVerified)
			}
		case a.LastVerified != nil:
			return true
		case b.LastVerified != nil:
			return false
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}

func (r *memRepo) Remove(_ context.Context, sourceCode, targetSystem, targetCode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := r.entries[sourceCode]
	for i, e := range rows {
		if e.TargetSystem == targetSystem && e.targetCodeOrEmpty() == targetCode {
			r.entries[sourceCode] = append(rows[:i], rows[i+1:]...)
			if len(r.entries[sourceCode]) == 0 {
				delete(r.entries, sourceCode)
			}
			return nil
		}
	}
	return errs.NotFoundf("mapping (%s, %s, %s)", sourceCode, targetSystem, targetCode)
}

func (r *memRepo) CountBySource(_ context.Context, sourceCode string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries[sourceCode]), nil
}

func (r *memRepo) DeleteBySource(_ context.Context, sourceCode string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.entries[sourceCode])
	delete(r.entries, sourceCode)
	return n, nil
}
