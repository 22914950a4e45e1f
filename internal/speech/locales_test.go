package speech

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestLocales_FetchSortAndCache(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/models" {
			t.Errorf("expected /models, got %s", r.URL.Path)
		}
		io.WriteString(w, `{"values":[
			{"locale":"fr-FR","displayName":"French (France)"},
			{"locale":"en-US","displayName":"English (United States)"},
			{"locale":"en-US","displayName":"a duplicate model"},
			{"displayName":"model without locale"}
		]}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	locales, err := c.Locales(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(locales) != 2 {
		t.Fatalf("expected 2 deduplicated locales, got %d", len(locales))
	}
	if locales[0].Code != "en-US" || locales[1].Code != "fr-FR" {
		t.Errorf("expected codes sorted ascending, got %v", locales)
	}
	if locales[0].Name != "English (United States)" {
		t.Errorf("expected first occurrence to win, got %q", locales[0].Name)
	}

	// Second call must come from the cache.
	if _, err := c.Locales(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected exactly 1 catalog fetch, got %d", got)
	}
}

func TestLocales_FallbackOnError(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)

	locales, err := c.Locales(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(locales) != 30 {
		t.Fatalf("expected the 30-entry fallback list, got %d", len(locales))
	}
	if locales[0].Code != "en-US" {
		t.Errorf("expected fallback to lead with en-US, got %s", locales[0].Code)
	}

	// The fallback is not cached: the next call retries the service.
	if _, err := c.Locales(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected fallback responses to skip the cache, got %d fetches", got)
	}
}

func TestLocaleCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"values":[
			{"locale":"ja-JP","displayName":"Japanese (Japan)"},
			{"locale":"de-DE","displayName":"German (Germany)"}
		]}`)
	}))
	defer srv.Close()

	codes, err := newTestClient(srv.URL).LocaleCodes(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(codes) != 2 || codes[0] != "de-DE" || codes[1] != "ja-JP" {
		t.Errorf("unexpected codes: %v", codes)
	}
}
