// Package criteria defines the immutable search criteria value object
// produced once per search request by the query interpreter.
package criteria

import (
	"fmt"
	"sort"
	"strings"
)

// Search parameter limits.
const (
	// MaxQueryLength is the maximum allowed free-text query length.
	MaxQueryLength = 2048
	// MaxTerms caps each term list to keep cache keys and scoring bounded.
	MaxTerms = 32
)

// Provenance records how the criteria terms were derived.
type Provenance string

// Criteria provenance values.
const (
	// AIParsed means AI-suggested terms are present and trusted.
	AIParsed Provenance = "ai"
	// HeuristicParsed means terms came from the fallback tokenizer.
	HeuristicParsed Provenance = "heuristic"
)

// Filters holds user-asserted structured filters. All fields are optional;
// zero values mean "not specified". Prices are integer cents.
type Filters struct {
	PriceMinCents    int64
	PriceMaxCents    int64
	Categories       []string
	Brands           []string
	RequiredFeatures []string
	MinDiscountPct   float64
}

// Suggested holds AI-derived terms. They are kept apart from user-asserted
// filters so the scorer can weight them by confidence instead of gating on them.
type Suggested struct {
	Categories []string
	Brands     []string
	Confidence float64
}

// Criteria is a validated, immutable search criteria value.
type Criteria struct {
	query      string
	filters    Filters
	suggested  Suggested
	provenance Provenance
}

// New validates and normalizes search criteria.
// Term lists are lower-cased, deduplicated, sorted, and capped at MaxTerms
// so that equal criteria always produce equal cache keys.
func New(query string, filters Filters, suggested Suggested, provenance Provenance) (Criteria, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Criteria{}, fmt.Errorf("query is required")
	}
	if len(query) > MaxQueryLength {
		return Criteria{}, fmt.Errorf("query too long (max %d chars)", MaxQueryLength)
	}
	if filters.PriceMinCents < 0 || filters.PriceMaxCents < 0 {
		return Criteria{}, fmt.Errorf("price bounds must be non-negative")
	}
	if filters.PriceMinCents > 0 && filters.PriceMaxCents > 0 &&
		filters.PriceMinCents > filters.PriceMaxCents {
		return Criteria{}, fmt.Errorf("price_min %d exceeds price_max %d",
			filters.PriceMinCents, filters.PriceMaxCents)
	}
	if filters.MinDiscountPct < 0 || filters.MinDiscountPct > 100 {
		return Criteria{}, fmt.Errorf("min_discount_pct must be between 0 and 100")
	}
	if suggested.Confidence < 0 || suggested.Confidence > 1 {
		return Criteria{}, fmt.Errorf("suggested confidence must be between 0 and 1")
	}
	switch provenance {
	case AIParsed, HeuristicParsed:
	default:
		return Criteria{}, fmt.Errorf("invalid provenance: %q", provenance)
	}

	filters.Categories = normalizeTerms(filters.Categories)
	filters.Brands = normalizeTerms(filters.Brands)
	filters.RequiredFeatures = normalizeTerms(filters.RequiredFeatures)
	suggested.Categories = normalizeTerms(suggested.Categories)
	suggested.Brands = normalizeTerms(suggested.Brands)

	return Criteria{
		query:      query,
		filters:    filters,
		suggested:  suggested,
		provenance: provenance,
	}, nil
}

// Query returns the free-text query.
func (c *Criteria) Query() string { return c.query }

// Filters returns the user-asserted structured filters.
func (c *Criteria) Filters() Filters { return c.filters }

// Suggested returns the AI-derived terms.
func (c *Criteria) Suggested() Suggested { return c.suggested }

// Provenance returns how the criteria were derived.
func (c *Criteria) Provenance() Provenance { return c.provenance }

// AITrusted reports whether AI-suggested terms are present and trusted.
func (c *Criteria) AITrusted() bool { return c.provenance == AIParsed }

// HasPriceRange reports whether any price bound is set.
func (c *Criteria) HasPriceRange() bool {
	return c.filters.PriceMinCents > 0 || c.filters.PriceMaxCents > 0
}

// PriceInRange reports whether a price in cents satisfies the bounds.
// An unset bound (zero) does not constrain.
func (c *Criteria) PriceInRange(cents int64) bool {
	if c.filters.PriceMinCents > 0 && cents < c.filters.PriceMinCents {
		return false
	}
	if c.filters.PriceMaxCents > 0 && cents > c.filters.PriceMaxCents {
		return false
	}
	return true
}

// CacheKeyMaterial returns a deterministic string covering every field that
// influences the result set. Equal criteria yield equal material.
func (c *Criteria) CacheKeyMaterial() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(c.query))
	fmt.Fprintf(&b, "|%d|%d|%.2f|%s",
		c.filters.PriceMinCents, c.filters.PriceMaxCents,
		c.filters.MinDiscountPct, c.provenance)
	for _, group := range [][]string{
		c.filters.Categories, c.filters.Brands, c.filters.RequiredFeatures,
		c.suggested.Categories, c.suggested.Brands,
	} {
		b.WriteString("|")
		b.WriteString(strings.Join(group, ","))
	}
	return b.String()
}

func normalizeTerms(terms []string) []string {
	if len(terms) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	if len(out) > MaxTerms {
		out = out[:MaxTerms]
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
