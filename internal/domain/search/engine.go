package search

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/termbridge/termbridge/internal/domain/record"
	"github.com/termbridge/termbridge/pkg/errs"
)

// Lister supplies the record store snapshot a rebuild is computed from.
type Lister interface {
	All(ctx context.Context) ([]*record.TerminologyRecord, error)
}

// Engine answers ranked terminology searches. The index is a pure function
// of the record store: Rebuild constructs a fresh index off to the side and
// swaps it in atomically, so concurrent readers observe either the old or
// the new index, never a partially built one.
type Engine struct {
	lister Lister
	idx    atomic.Pointer[index]
}

// NewEngine creates an engine with an empty index. Call Rebuild to populate it.
func NewEngine(lister Lister) *Engine {
	e := &Engine{lister: lister}
	e.idx.Store(buildIndex(nil))
	return e
}

// Rebuild regenerates the index from the current store snapshot. Safe to
// call concurrently with Search.
func (e *Engine) Rebuild(ctx context.Context) error {
	records, err := e.lister.All(ctx)
	if err != nil {
		return err
	}
	e.idx.Store(buildIndex(records))
	return nil
}

// Search returns at most limit matches in tier precedence order. An empty
// result is not an error; an empty or whitespace-only query is.
func (e *Engine) Search(query string, limit int) ([]Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is empty or whitespace-only: %w", errs.ErrInvalidQuery)
	}
	matches := e.idx.Load().search(query, limit)
	if matches == nil {
		matches = []Match{}
	}
	return matches, nil
}
