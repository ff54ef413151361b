package mapping

import (
	"context"
	"fmt"
	"time"

	"github.com/termbridge/termbridge/internal/domain/record"
	"github.com/termbridge/termbridge/pkg/errs"
)

// RecordGetter checks that a source code exists in the record store.
type RecordGetter interface {
	Get(ctx context.Context, code string) (*record.TerminologyRecord, error)
}

// Service enforces the mapping table contract: source codes must exist,
// confidence tiers must be valid, and at most one EXACT entry may exist per
// (sourceCode, targetSystem) pair.
type Service struct {
	repo    Repository
	records RecordGetter
	gate    *record.WriteGate
}

// NewService creates a mapping service sharing the record store's write gate.
func NewService(repo Repository, records RecordGetter, gate *record.WriteGate) *Service {
	return &Service{repo: repo, records: records, gate: gate}
}

// AddRequest carries the fields of a new mapping entry.
type AddRequest struct {
	SourceCode   string     `json:"source_code"`
	TargetSystem string     `json:"target_system"`
	TargetCode   *string    `json:"target_code,omitempty"`
	Display      string     `json:"display,omitempty"`
	Confidence   Confidence `json:"confidence"`
	LastVerified *time.Time `json:"last_verified,omitempty"`
}

// AddMapping validates and stores a new entry.
func (s *Service) AddMapping(ctx context.Context, req *AddRequest) (*Entry, error) {
	if req.SourceCode == "" {
		return nil, fmt.Errorf("source_code is required: %w", errs.ErrInvalidInput)
	}
	if req.TargetSystem == "" {
		return nil, fmt.Errorf("target_system is required: %w", errs.ErrInvalidInput)
	}
	if !req.Confidence.Valid() {
		return nil, fmt.Errorf("confidence %q is not one of EXACT, PROBABLE, UNCERTAIN, UNMAPPED: %w",
			req.Confidence, errs.ErrInvalidInput)
	}
	if _, err := s.records.Get(ctx, req.SourceCode); err != nil {
		return nil, err
	}

	s.gate.Lock()
	defer s.gate.Unlock()
	return s.repo.Add(ctx, &Entry{
		SourceCode:   req.SourceCode,
		TargetSystem: req.TargetSystem,
		TargetCode:   req.TargetCode,
		Display:      req.Display,
		Confidence:   req.Confidence,
		LastVerified: req.LastVerified,
	})
}

// GetMappings returns all entries for a source code, EXACT first, then by
// LastVerified descending. The source code must exist even when it has no
// entries, so an unknown code fails with errs.ErrNotFound rather than
// returning an empty list.
func (s *Service) GetMappings(ctx context.Context, sourceCode string) ([]*Entry, error) {
	if _, err := s.records.Get(ctx, sourceCode); err != nil {
		return nil, err
	}
	return s.repo.ListBySource(ctx, sourceCode)
}

// RemoveMapping deletes one entry identified by its natural key.
func (s *Service) RemoveMapping(ctx context.Context, sourceCode, targetSystem, targetCode string) error {
	s.gate.Lock()
	defer s.gate.Unlock()
	return s.repo.Remove(ctx, sourceCode, targetSystem, targetCode)
}
