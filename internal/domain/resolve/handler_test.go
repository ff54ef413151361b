package resolve

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/termbridge/termbridge/internal/domain/mapping"
	"github.com/termbridge/termbridge/internal/domain/record"
	"github.com/termbridge/termbridge/internal/domain/search"
)

func newTestHTTP(t *testing.T) (*echo.Echo, mapping.Repository) {
	t.Helper()
	r, mappings := newTestResolver(t, nil, nil)
	e := echo.New()
	NewHandler(r, 0).RegisterRoutes(e.Group("/api/v1"))
	return e, mappings
}

func get(e *echo.Echo, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestResolveEndpointByCode(t *testing.T) {
	e, mappings := newTestHTTP(t)
	addMappingTo(t, mappings)

	rec := get(e, "/api/v1/resolve?code=NAM004")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var res Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Status != StatusMapped || res.Record.Code != "NAM004" {
		t.Errorf("result = %+v", res)
	}
}

func addMappingTo(t *testing.T, mappings mapping.Repository) {
	t.Helper()
	tc := "5A11"
	if _, err := mappings.Add(context.Background(), &mapping.Entry{
		SourceCode:   "NAM004",
		TargetSystem: icd11System,
		TargetCode:   &tc,
		Confidence:   mapping.ConfidenceExact,
	}); err != nil {
		t.Fatalf("add mapping: %v", err)
	}
}

func TestResolveEndpointConfiguredCandidateDefault(t *testing.T) {
	tied := []search.Match{
		{Record: &record.TerminologyRecord{Code: "NAM001", Display: "Vataja Jwara"}, Rank: search.RankKeyword, Score: 1},
		{Record: &record.TerminologyRecord{Code: "NAM002", Display: "Pittaja Jwara"}, Rank: search.RankKeyword, Score: 1},
		{Record: &record.TerminologyRecord{Code: "NAM003", Display: "Kaphaja Jwara"}, Rank: search.RankKeyword, Score: 1},
	}
	r, _ := newTestResolver(t, &fakeSearcher{matches: tied}, nil)
	e := echo.New()
	NewHandler(r, 2).RegisterRoutes(e.Group("/api/v1"))

	rec := get(e, "/api/v1/resolve?q=jwara")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var res Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Status != StatusAmbiguous {
		t.Fatalf("status = %s, want %s", res.Status, StatusAmbiguous)
	}
	if len(res.Candidates) != 2 {
		t.Errorf("candidates = %d, want the configured default of 2", len(res.Candidates))
	}
}

func TestResolveEndpointMissingParams(t *testing.T) {
	e, _ := newTestHTTP(t)

	rec := get(e, "/api/v1/resolve")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestResolveEndpointUnknownCode(t *testing.T) {
	e, _ := newTestHTTP(t)

	rec := get(e, "/api/v1/resolve?code=NAM999")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestResolveEndpointUnmapped(t *testing.T) {
	e, _ := newTestHTTP(t)

	rec := get(e, "/api/v1/resolve?code=NAM004")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var res Result
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Status != StatusUnmapped {
		t.Errorf("status = %s, want %s", res.Status, StatusUnmapped)
	}
}
