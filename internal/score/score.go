// Package score ranks normalized deals against search criteria using a
// two-pass policy: a strict gated pass, then a widening fallback expansion
// when too few items survive the gates.
package score

import (
	"sort"
	"strings"

	"github.com/dealhound-cloud/dealhound/internal/domain/criteria"
	"github.com/dealhound-cloud/dealhound/internal/domain/deal"
)

// Signal weights for the optional scoring sum. Title matches outrank
// description matches; AI-suggested terms are scaled by parse confidence.
const (
	weightTermTitle   = 0.30
	weightTermDesc    = 0.10
	weightBrand       = 0.20
	weightCategory    = 0.15
	weightDiscount    = 0.15
	weightRating      = 0.10
	maxRating         = 5.0
	discountSaturated = 80.0 // discount % at which the discount signal maxes out
)

// Floor computes the minimum result count before fallback expansion kicks
// in: the larger of floor and fraction*candidates, capped at candidates.
func Floor(floor int, fraction float64, candidates int) int {
	if floor <= 0 {
		floor = 10
	}
	if fraction <= 0 {
		fraction = 0.2
	}
	f := floor
	if byFrac := int(fraction * float64(candidates)); byFrac > f {
		f = byFrac
	}
	if f > candidates {
		f = candidates
	}
	return f
}

// Scored pairs a deal with its per-search relevance score and pass tag.
type Scored struct {
	Deal   deal.Deal
	Score  float64
	Strict bool // survived the strict pass (always ranked above fallback-only items)
}

// Scorer ranks deals. Stateless; safe for concurrent use.
type Scorer struct {
	floor    int
	fraction float64
}

// New creates a Scorer with the configured fallback floor.
func New(floor int, fraction float64) *Scorer {
	return &Scorer{floor: floor, fraction: fraction}
}

// Score runs the two-pass policy. Strict-pass items always rank ahead of
// fallback-only items; within a tier, ordering is score desc, then discount
// desc, rating desc, identity key asc, so repeated runs over the same
// candidate set are reproducible.
func (s *Scorer) Score(deals []deal.Deal, c criteria.Criteria) []Scored {
	if len(deals) == 0 {
		return nil
	}

	strict := make([]Scored, 0, len(deals))
	for _, d := range deals {
		if !passesStrict(&d, c) {
			continue
		}
		strict = append(strict, Scored{Deal: d, Score: optionalScore(&d, c), Strict: true})
	}

	floor := Floor(s.floor, s.fraction, len(deals))
	if len(strict) >= floor {
		sortScored(strict)
		return strict
	}

	// Fallback expansion: required filters downgrade to scoring signals and
	// category stops gating. Strict survivors keep their tier.
	strictKeys := make(map[string]struct{}, len(strict))
	for _, sc := range strict {
		strictKeys[sc.Deal.Key] = struct{}{}
	}

	expanded := make([]Scored, 0, len(deals)-len(strict))
	for _, d := range deals {
		if _, ok := strictKeys[d.Key]; ok {
			continue
		}
		expanded = append(expanded, Scored{Deal: d, Score: optionalScore(&d, c)})
	}
	sortScored(expanded)

	need := floor - len(strict)
	if need > len(expanded) {
		need = len(expanded)
	}
	sortScored(strict)
	return append(strict, expanded[:need]...)
}

// MatchesStrict reports whether a deal survives the strict-pass gates.
// Exported for the persistence layer's criteria matching.
func MatchesStrict(d *deal.Deal, c criteria.Criteria) bool {
	return passesStrict(d, c)
}

// passesStrict applies the required-filter gates. With AI-parsed criteria,
// AI-suggested brands/categories are NOT gates (they only score); with
// heuristic or user-only criteria every user-asserted filter is required.
func passesStrict(d *deal.Deal, c criteria.Criteria) bool {
	f := c.Filters()

	if !c.PriceInRange(d.PriceCents) {
		return false
	}
	if f.MinDiscountPct > 0 && d.DiscountPct < f.MinDiscountPct {
		return false
	}
	if len(f.Categories) > 0 && !termMatch(d.Category, f.Categories) {
		return false
	}
	if len(f.Brands) > 0 && !anyTermIn(d.Title, f.Brands) {
		return false
	}
	for _, feat := range f.RequiredFeatures {
		if !containsFold(d.Title, feat) && !containsFold(d.Description, feat) {
			return false
		}
	}
	return true
}

// optionalScore is the weighted sum over matched optional signals, in [0,1].
func optionalScore(d *deal.Deal, c criteria.Criteria) float64 {
	terms := queryTerms(c.Query())

	var score float64

	if len(terms) > 0 {
		var inTitle, inDesc int
		for _, t := range terms {
			if containsFold(d.Title, t) {
				inTitle++
			} else if containsFold(d.Description, t) {
				inDesc++
			}
		}
		score += weightTermTitle * float64(inTitle) / float64(len(terms))
		score += weightTermDesc * float64(inDesc) / float64(len(terms))
	}

	brands := c.Filters().Brands
	brandWeight := 1.0
	if len(brands) == 0 && c.AITrusted() {
		brands = c.Suggested().Brands
		brandWeight = c.Suggested().Confidence
	}
	if len(brands) > 0 && anyTermIn(d.Title, brands) {
		score += weightBrand * brandWeight
	}

	cats := c.Filters().Categories
	catWeight := 1.0
	if len(cats) == 0 && c.AITrusted() {
		cats = c.Suggested().Categories
		catWeight = c.Suggested().Confidence
	}
	if len(cats) > 0 && termMatch(d.Category, cats) {
		score += weightCategory * catWeight
	}

	discount := d.DiscountPct
	if discount > discountSaturated {
		discount = discountSaturated
	}
	score += weightDiscount * discount / discountSaturated

	rating := d.Rating
	if rating > maxRating {
		rating = maxRating
	}
	score += weightRating * rating / maxRating

	if score > 1 {
		score = 1
	}
	return score
}

func sortScored(items []Scored) {
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Deal.DiscountPct != b.Deal.DiscountPct {
			return a.Deal.DiscountPct > b.Deal.DiscountPct
		}
		if a.Deal.Rating != b.Deal.Rating {
			return a.Deal.Rating > b.Deal.Rating
		}
		return a.Deal.Key < b.Deal.Key
	})
}

func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()")
		if len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func anyTermIn(haystack string, terms []string) bool {
	for _, t := range terms {
		if containsFold(haystack, t) {
			return true
		}
	}
	return false
}

func termMatch(value string, terms []string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return false
	}
	for _, t := range terms {
		if value == t || strings.Contains(value, t) || strings.Contains(t, value) {
			return true
		}
	}
	return false
}
