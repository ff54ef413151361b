package resolve

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/termbridge/termbridge/internal/domain/mapping"
	"github.com/termbridge/termbridge/internal/domain/record"
	"github.com/termbridge/termbridge/internal/domain/search"
	"github.com/termbridge/termbridge/pkg/errs"
)

const icd11System = "http://id.who.int/icd/release/11/mms"

// fakeSearcher returns canned matches.
type fakeSearcher struct {
	matches []search.Match
}

func (f *fakeSearcher) Search(query string, limit int) ([]search.Match, error) {
	if limit > 0 && len(f.matches) > limit {
		return f.matches[:limit], nil
	}
	return f.matches, nil
}

// fakeExternal is a scripted collaborator.
type fakeExternal struct {
	suggestions []Suggestion
	err         error
	calls       int
	onCall      func(ctx context.Context)
}

func (f *fakeExternal) LookupExternalCode(ctx context.Context, _ *record.TerminologyRecord) ([]Suggestion, error) {
	f.calls++
	if f.onCall != nil {
		f.onCall(ctx)
	}
	return f.suggestions, f.err
}

func madhumeha() *record.TerminologyRecord {
	return &record.TerminologyRecord{
		Code: "NAM004", Display: "Madhumeha", System: "Ayurveda",
		Synonyms: []string{"Diabetes"},
		Keywords: []string{"diabetes", "sweet", "urine"},
	}
}

func match(rec *record.TerminologyRecord, rank, score int) search.Match {
	return search.Match{Record: rec, Rank: rank, Score: score}
}

func newTestResolver(t *testing.T, searcher Searcher, external ExternalLookuper) (*Resolver, mapping.Repository) {
	t.Helper()
	gate := &record.WriteGate{}
	records := record.NewMemRepo()
	mappings := mapping.NewMemRepo()

	if _, err := records.Insert(context.Background(), madhumeha()); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	if searcher == nil {
		searcher = &fakeSearcher{}
	}

	r := NewResolver(records, searcher, mappings, gate, external, time.Second, zerolog.Nop())
	return r, mappings
}

func addMapping(t *testing.T, repo mapping.Repository, conf mapping.Confidence, targetCode string) {
	t.Helper()
	tc := targetCode
	if _, err := repo.Add(context.Background(), &mapping.Entry{
		SourceCode:   "NAM004",
		TargetSystem: icd11System,
		TargetCode:   &tc,
		Confidence:   conf,
	}); err != nil {
		t.Fatalf("add mapping: %v", err)
	}
}

func TestResolveByCodeMapped(t *testing.T) {
	r, mappings := newTestResolver(t, nil, nil)
	addMapping(t, mappings, mapping.ConfidenceExact, "5A11")

	res, err := r.Resolve(context.Background(), "NAM004", "", Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Status != StatusMapped {
		t.Fatalf("status = %s, want %s", res.Status, StatusMapped)
	}
	if res.Record == nil || res.Record.Code != "NAM004" {
		t.Errorf("record = %+v", res.Record)
	}
	if len(res.Mappings) != 1 || *res.Mappings[0].TargetCode != "5A11" {
		t.Errorf("mappings = %+v", res.Mappings)
	}
}

func TestResolveByCodeUnknown(t *testing.T) {
	r, _ := newTestResolver(t, nil, nil)

	_, err := r.Resolve(context.Background(), "NAM999", "", Options{})
	if !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestResolveByQueryNoMatch(t *testing.T) {
	r, _ := newTestResolver(t, &fakeSearcher{}, nil)

	res, err := r.Resolve(context.Background(), "", "xyzzy", Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Status != StatusNoMatch {
		t.Errorf("status = %s, want %s", res.Status, StatusNoMatch)
	}
}

func TestResolveByQuerySingleWinner(t *testing.T) {
	rec := madhumeha()
	searcher := &fakeSearcher{matches: []search.Match{match(rec, search.RankDisplay, 0)}}
	r, mappings := newTestResolver(t, searcher, nil)
	addMapping(t, mappings, mapping.ConfidenceProbable, "5A11")

	res, err := r.Resolve(context.Background(), "", "diabetes", Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Status != StatusMapped || res.Record.Code != "NAM004" {
		t.Errorf("result = %+v", res)
	}
}

func TestResolveAmbiguousOnRankTie(t *testing.T) {
	a := madhumeha()
	b := &record.TerminologyRecord{Code: "NAM001", Display: "Vataja Jwara", Keywords: []string{"fever"}}
	searcher := &fakeSearcher{matches: []search.Match{
		match(a, search.RankKeyword, 2),
		match(b, search.RankKeyword, 2),
	}}
	r, _ := newTestResolver(t, searcher, nil)

	res, err := r.Resolve(context.Background(), "", "fever", Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Status != StatusAmbiguous {
		t.Fatalf("status = %s, want %s", res.Status, StatusAmbiguous)
	}
	if len(res.Candidates) != 2 {
		t.Errorf("candidates = %d, want 2", len(res.Candidates))
	}
}

func TestResolveAmbiguousWithCandidateCapOfOne(t *testing.T) {
	a := madhumeha()
	b := &record.TerminologyRecord{Code: "NAM001", Display: "Vataja Jwara", Keywords: []string{"fever"}}
	searcher := &fakeSearcher{matches: []search.Match{
		match(a, search.RankKeyword, 1),
		match(b, search.RankKeyword, 1),
	}}
	r, _ := newTestResolver(t, searcher, nil)

	// candidates=1 must not hide the tied runner-up from the tie check.
	res, err := r.Resolve(context.Background(), "", "fever", Options{Candidates: 1})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Status != StatusAmbiguous {
		t.Fatalf("status = %s, want %s", res.Status, StatusAmbiguous)
	}
	// The cap still bounds the returned candidate list.
	if len(res.Candidates) != 1 {
		t.Errorf("candidates = %d, want 1", len(res.Candidates))
	}
}

func TestResolveNotAmbiguousWhenTopStrictlyBetter(t *testing.T) {
	a := madhumeha()
	b := &record.TerminologyRecord{Code: "NAM001", Display: "Vataja Jwara", Keywords: []string{"fever"}}

	// Better rank wins.
	searcher := &fakeSearcher{matches: []search.Match{
		match(a, search.RankDisplay, 0),
		match(b, search.RankKeyword, 5),
	}}
	r, mappings := newTestResolver(t, searcher, nil)
	addMapping(t, mappings, mapping.ConfidenceExact, "5A11")

	res, err := r.Resolve(context.Background(), "", "diabetes", Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Status != StatusMapped || res.Record.Code != "NAM004" {
		t.Errorf("result = %+v", res)
	}

	// Same rank, higher score wins too.
	searcher.matches = []search.Match{
		match(a, search.RankKeyword, 3),
		match(b, search.RankKeyword, 1),
	}
	res, err = r.Resolve(context.Background(), "", "diabetes sweet urine", Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Status != StatusMapped || res.Record.Code != "NAM004" {
		t.Errorf("result = %+v", res)
	}
}

func TestResolveCodeWinsOverQuery(t *testing.T) {
	b := &record.TerminologyRecord{Code: "NAM001", Display: "Vataja Jwara", Keywords: []string{"fever"}}
	searcher := &fakeSearcher{matches: []search.Match{match(b, search.RankCode, 0)}}
	r, mappings := newTestResolver(t, searcher, nil)
	addMapping(t, mappings, mapping.ConfidenceExact, "5A11")

	res, err := r.Resolve(context.Background(), "NAM004", "fever", Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Record.Code != "NAM004" {
		t.Errorf("record = %s, want NAM004", res.Record.Code)
	}
}

func TestResolveUnmappedWithoutExternal(t *testing.T) {
	r, _ := newTestResolver(t, nil, nil)

	res, err := r.Resolve(context.Background(), "NAM004", "", Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Status != StatusUnmapped {
		t.Fatalf("status = %s, want %s", res.Status, StatusUnmapped)
	}
	if res.Mappings == nil || len(res.Mappings) != 0 {
		t.Errorf("mappings = %v, want empty non-nil", res.Mappings)
	}
}

func TestResolveExternalSuggestionsPersist(t *testing.T) {
	external := &fakeExternal{suggestions: []Suggestion{
		{TargetSystem: icd11System, TargetCode: "5A11", Display: "Type 2 diabetes mellitus", Score: 0.92},
		{TargetSystem: icd11System, TargetCode: "5A14", Display: "Diabetes mellitus, unspecified", Score: 0.31},
	}}
	r, mappings := newTestResolver(t, nil, external)
	ctx := context.Background()

	res, err := r.Resolve(ctx, "NAM004", "", Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Status != StatusMapped {
		t.Fatalf("status = %s, want %s", res.Status, StatusMapped)
	}
	if len(res.Mappings) != 2 {
		t.Fatalf("mappings = %d, want 2", len(res.Mappings))
	}

	// Tiering by score: >= 0.5 persists as PROBABLE, below as UNCERTAIN.
	// External suggestions never enter as EXACT.
	if res.Mappings[0].Confidence != mapping.ConfidenceProbable {
		t.Errorf("first suggestion confidence = %s", res.Mappings[0].Confidence)
	}
	if res.Mappings[1].Confidence != mapping.ConfidenceUncertain {
		t.Errorf("low-score suggestion confidence = %s", res.Mappings[1].Confidence)
	}
	for _, e := range res.Mappings {
		if e.LastVerified == nil {
			t.Errorf("persisted suggestion has no last_verified: %+v", e)
		}
	}

	// Persisted: a second resolve finds them without calling the collaborator.
	res2, err := r.Resolve(ctx, "NAM004", "", Options{})
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if res2.Status != StatusMapped || len(res2.Mappings) != 2 {
		t.Errorf("second resolve = %+v", res2)
	}
	if external.calls != 1 {
		t.Errorf("collaborator called %d times, want 1", external.calls)
	}

	if n, _ := mappings.CountBySource(ctx, "NAM004"); n != 2 {
		t.Errorf("stored entries = %d, want 2", n)
	}
}

func TestResolveExternalFailureIsUnmapped(t *testing.T) {
	external := &fakeExternal{err: errs.Unavailablef("connection refused")}
	r, mappings := newTestResolver(t, nil, external)

	res, err := r.Resolve(context.Background(), "NAM004", "", Options{})
	if err != nil {
		t.Fatalf("collaborator failure must not propagate: %v", err)
	}
	if res.Status != StatusUnmapped {
		t.Errorf("status = %s, want %s", res.Status, StatusUnmapped)
	}
	if n, _ := mappings.CountBySource(context.Background(), "NAM004"); n != 0 {
		t.Errorf("failed lookup persisted %d entries", n)
	}
}

func TestResolveExternalEmptyIsUnmapped(t *testing.T) {
	external := &fakeExternal{}
	r, _ := newTestResolver(t, nil, external)

	res, err := r.Resolve(context.Background(), "NAM004", "", Options{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Status != StatusUnmapped {
		t.Errorf("status = %s, want %s", res.Status, StatusUnmapped)
	}
}

func TestResolveCancelledBeforePersistDiscards(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	external := &fakeExternal{
		suggestions: []Suggestion{{TargetSystem: icd11System, TargetCode: "5A11", Score: 0.9}},
		onCall:      func(context.Context) { cancel() },
	}
	r, mappings := newTestResolver(t, nil, external)

	_, err := r.Resolve(ctx, "NAM004", "", Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if n, _ := mappings.CountBySource(context.Background(), "NAM004"); n != 0 {
		t.Errorf("cancelled resolve persisted %d entries", n)
	}
}
