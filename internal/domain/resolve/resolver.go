package resolve

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/termbridge/termbridge/internal/domain/mapping"
	"github.com/termbridge/termbridge/internal/domain/record"
	"github.com/termbridge/termbridge/internal/domain/search"
)

// Resolution statuses. A request moves through record lookup
// (NO_MATCH | AMBIGUOUS | resolved) and, once resolved, through mapping
// lookup (MAPPED | UNMAPPED). AMBIGUOUS and UNMAPPED are normal terminal
// states, not errors.
const (
	StatusNoMatch   = "NO_MATCH"
	StatusAmbiguous = "AMBIGUOUS"
	StatusMapped    = "MAPPED"
	StatusUnmapped  = "UNMAPPED"
)

// DefaultCandidates is the number of candidates returned with an AMBIGUOUS
// resolution when the caller does not override it.
const DefaultCandidates = 5

// uncertainThreshold: external suggestions scoring below this persist as
// UNCERTAIN instead of PROBABLE.
const uncertainThreshold = 0.5

// Result is the outcome of one resolution request.
type Result struct {
	Status     string                    `json:"status"`
	Record     *record.TerminologyRecord `json:"record,omitempty"`
	Candidates []search.Match            `json:"candidates,omitempty"`
	Mappings   []*mapping.Entry          `json:"mappings,omitempty"`
}

// Options tune a single resolution request.
type Options struct {
	// Candidates caps the list returned with an AMBIGUOUS result.
	Candidates int
}

// RecordGetter fetches a record by code.
type RecordGetter interface {
	Get(ctx context.Context, code string) (*record.TerminologyRecord, error)
}

// Searcher answers ranked free-text queries.
type Searcher interface {
	Search(query string, limit int) ([]search.Match, error)
}

// MappingStore is the slice of the mapping table the resolver needs: reading
// entries for a resolved record and persisting external suggestions.
type MappingStore interface {
	ListBySource(ctx context.Context, sourceCode string) ([]*mapping.Entry, error)
	Add(ctx context.Context, e *mapping.Entry) (*mapping.Entry, error)
}

// Resolver turns a local code or free-text query into ranked external-code
// mappings, consulting the external collaborator when the mapping table has
// nothing for a resolved record.
type Resolver struct {
	records  RecordGetter
	searcher Searcher
	mappings MappingStore
	gate     *record.WriteGate
	external ExternalLookuper
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewResolver creates a resolver. external may be nil, in which case records
// without mapping rows resolve to UNMAPPED immediately.
func NewResolver(records RecordGetter, searcher Searcher, mappings MappingStore,
	gate *record.WriteGate, external ExternalLookuper, timeout time.Duration, logger zerolog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Resolver{
		records:  records,
		searcher: searcher,
		mappings: mappings,
		gate:     gate,
		external: external,
		timeout:  timeout,
		logger:   logger,
	}
}

// Resolve handles a request carrying either a local code or a free-text
// query. Exactly one of code/query should be non-empty; when both are given
// the code wins, matching direct-lookup intent.
func (r *Resolver) Resolve(ctx context.Context, code, query string, opts Options) (*Result, error) {
	if opts.Candidates <= 0 {
		opts.Candidates = DefaultCandidates
	}

	var rec *record.TerminologyRecord
	if code != "" {
		got, err := r.records.Get(ctx, code)
		if err != nil {
			return nil, err
		}
		rec = got
	} else {
		// Fetch one past the candidate cap so the tie check always sees the
		// runner-up, even with candidates=1.
		matches, err := r.searcher.Search(query, opts.Candidates+1)
		if err != nil {
			return nil, err
		}
		switch {
		case len(matches) == 0:
			return &Result{Status: StatusNoMatch}, nil
		case len(matches) > 1 && !strictlyBetter(matches[0], matches[1]):
			// Near-tied candidates are never guessed among.
			if len(matches) > opts.Candidates {
				matches = matches[:opts.Candidates]
			}
			return &Result{Status: StatusAmbiguous, Candidates: matches}, nil
		}
		rec = matches[0].Record
	}

	return r.lookupMappings(ctx, rec)
}

// strictlyBetter reports whether match a outranks b: a lower tier, or a
// higher overlap score within the same tier.
func strictlyBetter(a, b search.Match) bool {
	if a.Rank != b.Rank {
		return a.Rank < b.Rank
	}
	return a.Score > b.Score
}

func (r *Resolver) lookupMappings(ctx context.Context, rec *record.TerminologyRecord) (*Result, error) {
	entries, err := r.mappings.ListBySource(ctx, rec.Code)
	if err != nil {
		return nil, err
	}
	if len(entries) > 0 {
		return &Result{Status: StatusMapped, Record: rec, Mappings: entries}, nil
	}
	if r.external == nil {
		return &Result{Status: StatusUnmapped, Record: rec, Mappings: []*mapping.Entry{}}, nil
	}
	return r.externalLookup(ctx, rec)
}

// externalLookup consults the collaborator with a bounded timeout and, on
// success, persists the suggestions as PROBABLE/UNCERTAIN rows. The write
// gate is taken only for the persistence step, never across the network
// call. Collaborator failure downgrades to UNMAPPED; caller cancellation
// before persistence discards the suggestions entirely.
func (r *Resolver) externalLookup(ctx context.Context, rec *record.TerminologyRecord) (*Result, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	suggestions, err := r.external.LookupExternalCode(lookupCtx, rec)
	if err != nil {
		r.logger.Warn().Err(err).Str("code", rec.Code).Msg("external code lookup failed")
		return &Result{Status: StatusUnmapped, Record: rec, Mappings: []*mapping.Entry{}}, nil
	}
	if len(suggestions) == 0 {
		return &Result{Status: StatusUnmapped, Record: rec, Mappings: []*mapping.Entry{}}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	persisted := make([]*mapping.Entry, 0, len(suggestions))

	r.gate.Lock()
	for _, sug := range suggestions {
		confidence := mapping.ConfidenceProbable
		if sug.Score < uncertainThreshold {
			confidence = mapping.ConfidenceUncertain
		}
		targetCode := sug.TargetCode
		entry, err := r.mappings.Add(ctx, &mapping.Entry{
			SourceCode:   rec.Code,
			TargetSystem: sug.TargetSystem,
			TargetCode:   &targetCode,
			Display:      sug.Display,
			Confidence:   confidence,
			LastVerified: &now,
		})
		if err != nil {
			r.gate.Unlock()
			return nil, err
		}
		persisted = append(persisted, entry)
	}
	r.gate.Unlock()

	return &Result{Status: StatusMapped, Record: rec, Mappings: persisted}, nil
}
