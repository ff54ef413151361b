package record

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/termbridge/termbridge/pkg/errs"
)

// WriteGate serializes writes across the record store and the mapping table.
// Reads never take it; index rebuilds snapshot the store through the normal
// read path and swap atomically, so they don't take it either.
type WriteGate struct {
	mu sync.Mutex
}

func (g *WriteGate) Lock()   { g.mu.Lock() }
func (g *WriteGate) Unlock() { g.mu.Unlock() }

// ReferenceCounter reports and removes mapping entries referencing a record
// code. Satisfied by the mapping repository; declared here to keep the
// record package free of a dependency on the mapping package.
type ReferenceCounter interface {
	CountBySource(ctx context.Context, sourceCode string) (int, error)
	DeleteBySource(ctx context.Context, sourceCode string) (int, error)
}

// Rebuilder regenerates the search index from the current store contents.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// Service implements the record store operations: validated ingestion,
// immutable-code updates, and reference-checked deletion. Every successful
// mutation triggers a search index rebuild.
type Service struct {
	repo    Repository
	refs    ReferenceCounter
	gate    *WriteGate
	rebuild Rebuilder
	logger  zerolog.Logger
}

// NewService creates a record service. refs and rebuild may be nil in tests
// that exercise the store in isolation.
func NewService(repo Repository, refs ReferenceCounter, gate *WriteGate, logger zerolog.Logger) *Service {
	return &Service{repo: repo, refs: refs, gate: gate, logger: logger}
}

// SetRebuilder wires the search index rebuild hook. Wired after construction
// because the search engine itself reads from this service's repository.
func (s *Service) SetRebuilder(r Rebuilder) { s.rebuild = r }

func (s *Service) afterWrite(ctx context.Context) {
	if s.rebuild == nil {
		return
	}
	if err := s.rebuild.Rebuild(ctx); err != nil {
		s.logger.Error().Err(err).Msg("search index rebuild failed")
	}
}

// Insert validates, normalizes, and stores a new record.
func (s *Service) Insert(ctx context.Context, rec *TerminologyRecord) (*TerminologyRecord, error) {
	rec = rec.Clone()
	rec.Normalize()
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	s.gate.Lock()
	stored, err := s.repo.Insert(ctx, rec)
	s.gate.Unlock()
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx)
	return stored, nil
}

// Get fetches a record by its immutable code.
func (s *Service) Get(ctx context.Context, code string) (*TerminologyRecord, error) {
	return s.repo.Get(ctx, code)
}

// Update applies a partial update. The code field is immutable; supplying a
// different code in the update fails with errs.ErrImmutableField.
func (s *Service) Update(ctx context.Context, code string, upd *Update) (*TerminologyRecord, error) {
	if upd.Code != nil && *upd.Code != code {
		return nil, errs.ImmutableFieldf("record code %q cannot be changed to %q", code, *upd.Code)
	}

	s.gate.Lock()
	updated, err := s.repo.Update(ctx, code, upd)
	s.gate.Unlock()
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx)
	return updated, nil
}

// Delete removes a record. Without cascade, deletion fails with
// errs.ErrReferenced while mapping entries still reference the code; with
// cascade, the mapping rows are removed first under the same write gate.
func (s *Service) Delete(ctx context.Context, code string, cascade bool) error {
	if err := s.deleteLocked(ctx, code, cascade); err != nil {
		return err
	}
	s.afterWrite(ctx)
	return nil
}

func (s *Service) deleteLocked(ctx context.Context, code string, cascade bool) error {
	s.gate.Lock()
	defer s.gate.Unlock()

	if s.refs != nil {
		n, err := s.refs.CountBySource(ctx, code)
		if err != nil {
			return err
		}
		if n > 0 {
			if !cascade {
				return errs.Referencedf("record %q is referenced by %d mapping entries", code, n)
			}
			if _, err := s.refs.DeleteBySource(ctx, code); err != nil {
				return err
			}
		}
	}

	return s.repo.Delete(ctx, code)
}

// List returns records matching the filter, paginated, with a total count.
func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]*TerminologyRecord, int, error) {
	return s.repo.List(ctx, filter, limit, offset)
}

// IngestResult reports the outcome of one record within a bulk ingestion.
type IngestResult struct {
	Code  string `json:"code"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Ingest bulk-loads records. It is partial-failure tolerant: each record is
// validated and inserted independently and the per-record outcome reported.
func (s *Service) Ingest(ctx context.Context, records []*TerminologyRecord) []IngestResult {
	results := make([]IngestResult, 0, len(records))
	inserted := 0
	for _, rec := range records {
		res := IngestResult{Code: rec.Code}
		if _, err := s.Insert(ctx, rec); err != nil {
			res.Error = err.Error()
		} else {
			res.OK = true
			inserted++
		}
		results = append(results, res)
	}
	s.logger.Info().Int("inserted", inserted).Int("total", len(records)).Msg("bulk ingestion finished")
	return results
}
