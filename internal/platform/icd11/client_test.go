package icd11

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/termbridge/termbridge/internal/domain/record"
	"github.com/termbridge/termbridge/pkg/errs"
)

const searchPayload = `{
	"destinationEntities": [
		{"theCode": "5A11", "title": "Type 2 <em class='found'>diabetes</em> mellitus", "score": 0.92},
		{"theCode": "5A10", "title": "Type 1 <em class='found'>diabetes</em> mellitus", "score": 0.47},
		{"theCode": "", "title": "Chapter placeholder", "score": 0.10}
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Timeout: time.Second}, zerolog.Nop())
}

func TestLookupExternalCode(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		if r.URL.Query().Get("flatResults") != "true" {
			t.Errorf("flatResults = %q, want true", r.URL.Query().Get("flatResults"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(searchPayload))
	})

	suggestions, err := c.LookupExternalCode(context.Background(),
		&record.TerminologyRecord{Code: "NAM004", Display: "Madhumeha"})
	if err != nil {
		t.Fatalf("LookupExternalCode() error = %v", err)
	}
	if gotQuery != "Madhumeha" {
		t.Errorf("search query = %q, want record display", gotQuery)
	}

	// The empty-code placeholder entity is dropped.
	if len(suggestions) != 2 {
		t.Fatalf("suggestions = %d, want 2", len(suggestions))
	}
	first := suggestions[0]
	if first.TargetCode != "5A11" || first.Score != 0.92 {
		t.Errorf("first suggestion = %+v", first)
	}
	if first.TargetSystem != SystemURI {
		t.Errorf("target system = %q, want %q", first.TargetSystem, SystemURI)
	}
	if first.Display != "Type 2 diabetes mellitus" {
		t.Errorf("display = %q, highlight markup not stripped", first.Display)
	}
}

func TestLookupExternalCodeServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	_, err := c.LookupExternalCode(context.Background(),
		&record.TerminologyRecord{Code: "NAM004", Display: "Madhumeha"})
	if !errors.Is(err, errs.ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestLookupExternalCodeBadJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := c.LookupExternalCode(context.Background(),
		&record.TerminologyRecord{Code: "NAM004", Display: "Madhumeha"})
	if !errors.Is(err, errs.ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}

func TestLookupExternalCodeEmptyResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"destinationEntities": []}`))
	})

	suggestions, err := c.LookupExternalCode(context.Background(),
		&record.TerminologyRecord{Code: "NAM999", Display: "Unknown"})
	if err != nil {
		t.Fatalf("LookupExternalCode() error = %v", err)
	}
	if len(suggestions) != 0 {
		t.Errorf("suggestions = %d, want 0", len(suggestions))
	}
}

func TestTokenCached(t *testing.T) {
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		if r.FormValue("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %q", r.FormValue("grant_type"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "tok-1", "expires_in": 3600}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		w.Write([]byte(`{"destinationEntities": []}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := NewClient(Config{
		BaseURL:      srv.URL,
		Timeout:      time.Second,
		ClientID:     "client",
		ClientSecret: "secret",
		TokenURL:     srv.URL + "/token",
	}, zerolog.Nop())

	rec := &record.TerminologyRecord{Code: "NAM004", Display: "Madhumeha"}
	for i := 0; i < 3; i++ {
		if _, err := c.LookupExternalCode(context.Background(), rec); err != nil {
			t.Fatalf("lookup %d: %v", i, err)
		}
	}
	if tokenCalls != 1 {
		t.Errorf("token endpoint called %d times, want 1", tokenCalls)
	}
}

func TestStripMarkup(t *testing.T) {
	in := "Type 2 <em class='found'>diabetes</em> mellitus"
	if got := stripMarkup(in); got != "Type 2 diabetes mellitus" {
		t.Errorf("stripMarkup(%q) = %q", in, got)
	}
	if got := stripMarkup("plain title"); got != "plain title" {
		t.Errorf("stripMarkup passthrough = %q", got)
	}
}
