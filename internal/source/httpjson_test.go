package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"go.uber.org/zap"

	"github.com/dealhound-cloud/dealhound/internal/config"
	"github.com/dealhound-cloud/dealhound/internal/domain"
	"github.com/dealhound-cloud/dealhound/internal/domain/criteria"
)

func testSourceConfig(baseURL string) config.SourceConfig {
	return config.SourceConfig{
		Enabled:    true,
		BaseURL:    baseURL,
		APIKey:     "secret",
		Currency:   "USD",
		TimeoutSec: 5,
		Paths: config.SourcePaths{
			Items:       "results",
			URL:         "url",
			Title:       "title",
			Description: "description",
			Price:       "price",
			OldPrice:    "old_price",
			Category:    "category",
			Rating:      "rating",
			Reviews:     "review_count",
		},
	}
}

func TestHTTPJSONAdapter_Fetch(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"results": [
				{"url": "https://shop.test/a", "title": "Headphones", "price": "79.99",
				 "old_price": "129.99", "category": "Audio", "rating": 4.4, "review_count": 210},
				{"url": "", "title": "No URL", "price": "1.00"},
				{"url": "https://shop.test/c", "title": "Speaker", "price": "39.99"}
			]
		}`))
	}))
	defer srv.Close()

	a, err := NewHTTPJSONAdapter("bargainbay", testSourceConfig(srv.URL), zap.NewNop())
	if err != nil {
		t.Fatalf("NewHTTPJSONAdapter: %v", err)
	}

	c, err := criteria.New("headphones", criteria.Filters{
		PriceMinCents: 1000, PriceMaxCents: 20000, Categories: []string{"audio"},
	}, criteria.Suggested{}, criteria.HeuristicParsed)
	if err != nil {
		t.Fatalf("criteria.New: %v", err)
	}

	cands, err := a.Fetch(context.Background(), c)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 candidates (unusable item skipped), got %d", len(cands))
	}

	first := cands[0]
	if first.URL != "https://shop.test/a" || first.Title != "Headphones" {
		t.Errorf("unexpected first candidate: %+v", first)
	}
	if first.RawPrice != "79.99" || first.RawOldPrice != "129.99" {
		t.Errorf("raw prices not carried through: %+v", first)
	}
	if first.Rating != 4.4 || first.ReviewCount != 210 {
		t.Errorf("rating fields not mapped: %+v", first)
	}
	if first.Currency != "USD" || first.Source != "bargainbay" {
		t.Errorf("source fields not stamped: %+v", first)
	}

	wantParams := map[string]string{
		"q":         "headphones",
		"min_price": "1000",
		"max_price": "20000",
		"category":  "audio",
		"api_key":   "secret",
	}
	for key, want := range wantParams {
		if got := gotQuery.Get(key); got != want {
			t.Errorf("query param %s = %q, want %q", key, got, want)
		}
	}
}

func TestHTTPJSONAdapter_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{"too many requests", http.StatusTooManyRequests, domain.ErrRateLimited},
		{"server error", http.StatusInternalServerError, domain.ErrUpstream},
		{"not found", http.StatusNotFound, domain.ErrUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			a, err := NewHTTPJSONAdapter("s", testSourceConfig(srv.URL), zap.NewNop())
			if err != nil {
				t.Fatalf("NewHTTPJSONAdapter: %v", err)
			}
			c, _ := criteria.New("x", criteria.Filters{}, criteria.Suggested{}, criteria.HeuristicParsed)
			if _, err := a.Fetch(context.Background(), c); !errors.Is(err, tt.sentinel) {
				t.Errorf("status %d: error = %v, want %v", tt.status, err, tt.sentinel)
			}
		})
	}
}

func TestHTTPJSONAdapter_MissingItemsArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected": true}`))
	}))
	defer srv.Close()

	a, err := NewHTTPJSONAdapter("s", testSourceConfig(srv.URL), zap.NewNop())
	if err != nil {
		t.Fatalf("NewHTTPJSONAdapter: %v", err)
	}
	c, _ := criteria.New("x", criteria.Filters{}, criteria.Suggested{}, criteria.HeuristicParsed)
	cands, err := a.Fetch(context.Background(), c)
	if err != nil {
		t.Fatalf("a missing items array is an empty result, not an error: %v", err)
	}
	if len(cands) != 0 {
		t.Errorf("expected no candidates, got %d", len(cands))
	}
}

func TestNewHTTPJSONAdapter_RequiresBaseURL(t *testing.T) {
	sc := testSourceConfig("")
	if _, err := NewHTTPJSONAdapter("s", sc, zap.NewNop()); err == nil {
		t.Fatal("expected error for empty base_url")
	}
}
