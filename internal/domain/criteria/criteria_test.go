package criteria

import "testing"

func TestNew_Valid(t *testing.T) {
	c, err := New("wireless headphones", Filters{
		PriceMinCents: 1000,
		PriceMaxCents: 15000,
		Brands:        []string{"Sony", "  bose ", "sony"},
	}, Suggested{Categories: []string{"Audio"}, Confidence: 0.8}, AIParsed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Query() != "wireless headphones" {
		t.Errorf("unexpected query: %q", c.Query())
	}
	if !c.AITrusted() {
		t.Error("expected AI-parsed criteria to be trusted")
	}

	brands := c.Filters().Brands
	if len(brands) != 2 || brands[0] != "bose" || brands[1] != "sony" {
		t.Errorf("expected deduplicated sorted brands, got %v", brands)
	}
	if c.Suggested().Categories[0] != "audio" {
		t.Errorf("expected lower-cased suggested category, got %v", c.Suggested().Categories)
	}
}

func TestNew_EmptyQuery(t *testing.T) {
	if _, err := New("  ", Filters{}, Suggested{}, HeuristicParsed); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestNew_InvertedPriceBounds(t *testing.T) {
	_, err := New("laptop", Filters{PriceMinCents: 5000, PriceMaxCents: 1000}, Suggested{}, HeuristicParsed)
	if err == nil {
		t.Fatal("expected error for min > max")
	}
}

func TestNew_InvalidConfidence(t *testing.T) {
	_, err := New("laptop", Filters{}, Suggested{Confidence: 1.5}, AIParsed)
	if err == nil {
		t.Fatal("expected error for confidence > 1")
	}
}

func TestPriceInRange(t *testing.T) {
	tests := []struct {
		name     string
		min, max int64
		price    int64
		want     bool
	}{
		{"no bounds", 0, 0, 50, true},
		{"within", 1000, 5000, 3000, true},
		{"below min", 1000, 5000, 999, false},
		{"above max", 1000, 5000, 5001, false},
		{"at min", 1000, 5000, 1000, true},
		{"at max", 1000, 5000, 5000, true},
		{"only max", 0, 5000, 100, true},
		{"only min", 1000, 0, 999999, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New("x", Filters{PriceMinCents: tt.min, PriceMaxCents: tt.max}, Suggested{}, HeuristicParsed)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := c.PriceInRange(tt.price); got != tt.want {
				t.Errorf("PriceInRange(%d) = %v, want %v", tt.price, got, tt.want)
			}
		})
	}
}

func TestCacheKeyMaterial_Deterministic(t *testing.T) {
	a, _ := New("Coffee maker", Filters{Brands: []string{"b", "a"}}, Suggested{}, HeuristicParsed)
	b, _ := New("Coffee maker", Filters{Brands: []string{"a", "b", "a"}}, Suggested{}, HeuristicParsed)
	if a.CacheKeyMaterial() != b.CacheKeyMaterial() {
		t.Errorf("equal criteria produced different key material:\n%q\n%q",
			a.CacheKeyMaterial(), b.CacheKeyMaterial())
	}

	c, _ := New("Coffee maker", Filters{Brands: []string{"a"}}, Suggested{}, HeuristicParsed)
	if a.CacheKeyMaterial() == c.CacheKeyMaterial() {
		t.Error("different criteria produced identical key material")
	}
}
