package score

import (
	"fmt"
	"testing"
	"time"

	"github.com/dealhound-cloud/dealhound/internal/domain/criteria"
	"github.com/dealhound-cloud/dealhound/internal/domain/deal"
)

func mustCriteria(t *testing.T, query string, f criteria.Filters, s criteria.Suggested, p criteria.Provenance) criteria.Criteria {
	t.Helper()
	c, err := criteria.New(query, f, s, p)
	if err != nil {
		t.Fatalf("criteria.New: %v", err)
	}
	return c
}

func mkDeal(key string, priceCents int64) deal.Deal {
	return deal.Deal{
		Key:           key,
		Source:        "bargainbay",
		URL:           "https://x.test/" + key,
		Title:         "Item " + key,
		PriceCents:    priceCents,
		Currency:      "USD",
		FoundAt:       time.Now(),
		LastCheckedAt: time.Now(),
	}
}

func TestFloor(t *testing.T) {
	tests := []struct {
		floor      int
		fraction   float64
		candidates int
		want       int
	}{
		{10, 0.2, 100, 20},
		{10, 0.2, 30, 10},
		{10, 0.2, 5, 5},
		{0, 0, 100, 20}, // defaults
		{50, 0.2, 40, 40},
	}
	for _, tt := range tests {
		if got := Floor(tt.floor, tt.fraction, tt.candidates); got != tt.want {
			t.Errorf("Floor(%d, %v, %d) = %d, want %d",
				tt.floor, tt.fraction, tt.candidates, got, tt.want)
		}
	}
}

func TestMatchesStrict_PriceBounds(t *testing.T) {
	c := mustCriteria(t, "headphones",
		criteria.Filters{PriceMinCents: 1000, PriceMaxCents: 5000},
		criteria.Suggested{}, criteria.HeuristicParsed)

	in := mkDeal("a", 3000)
	below := mkDeal("b", 999)
	above := mkDeal("c", 5001)

	if !MatchesStrict(&in, c) {
		t.Error("in-range deal should pass")
	}
	if MatchesStrict(&below, c) {
		t.Error("deal below min should not pass")
	}
	if MatchesStrict(&above, c) {
		t.Error("deal above max should not pass")
	}
}

func TestMatchesStrict_RequiredFeatures(t *testing.T) {
	c := mustCriteria(t, "headphones",
		criteria.Filters{RequiredFeatures: []string{"noise cancelling"}},
		criteria.Suggested{}, criteria.HeuristicParsed)

	hasIt := mkDeal("a", 3000)
	hasIt.Description = "Active Noise Cancelling over-ear"
	lacksIt := mkDeal("b", 3000)

	if !MatchesStrict(&hasIt, c) {
		t.Error("deal with feature in description should pass")
	}
	if MatchesStrict(&lacksIt, c) {
		t.Error("deal lacking feature should not pass")
	}
}

func TestMatchesStrict_MinDiscount(t *testing.T) {
	c := mustCriteria(t, "headphones",
		criteria.Filters{MinDiscountPct: 30},
		criteria.Suggested{}, criteria.HeuristicParsed)

	steep := mkDeal("a", 5000)
	steep.OldPriceCents = 10000
	steep.DiscountPct = 50
	shallow := mkDeal("b", 9000)
	shallow.OldPriceCents = 10000
	shallow.DiscountPct = 10

	if !MatchesStrict(&steep, c) {
		t.Error("50% discount should pass a 30% gate")
	}
	if MatchesStrict(&shallow, c) {
		t.Error("10% discount should not pass a 30% gate")
	}
}

func TestScore_StrictAlwaysRanksFirst(t *testing.T) {
	// Six candidates, only two pass the price gate; floor of 4 forces
	// fallback expansion. Strict survivors must occupy the head positions
	// regardless of score.
	c := mustCriteria(t, "gadget",
		criteria.Filters{PriceMaxCents: 2000},
		criteria.Suggested{}, criteria.HeuristicParsed)

	deals := make([]deal.Deal, 0, 6)
	for i := 0; i < 2; i++ {
		deals = append(deals, mkDeal(fmt.Sprintf("cheap-%d", i), 1500))
	}
	for i := 0; i < 4; i++ {
		d := mkDeal(fmt.Sprintf("pricey-%d", i), 9000)
		d.OldPriceCents = 30000 // big discount, high fallback score
		d.DiscountPct = 70
		d.Rating = 5
		deals = append(deals, d)
	}

	s := New(4, 0)
	out := s.Score(deals, c)
	if len(out) != 4 {
		t.Fatalf("expected floor of 4 results, got %d", len(out))
	}
	if !out[0].Strict || !out[1].Strict {
		t.Errorf("strict matches must rank first, got strict flags %v %v",
			out[0].Strict, out[1].Strict)
	}
	if out[2].Strict || out[3].Strict {
		t.Error("fallback items must carry Strict=false")
	}
}

func TestScore_FallbackCountCappedByCandidates(t *testing.T) {
	c := mustCriteria(t, "gadget",
		criteria.Filters{PriceMaxCents: 100},
		criteria.Suggested{}, criteria.HeuristicParsed)

	deals := []deal.Deal{mkDeal("a", 500), mkDeal("b", 600)}
	s := New(10, 0.2)
	out := s.Score(deals, c)
	if len(out) != 2 {
		t.Errorf("expected min(floor, candidates) = 2 results, got %d", len(out))
	}
}

func TestScore_NoExpansionWhenFloorMet(t *testing.T) {
	c := mustCriteria(t, "gadget",
		criteria.Filters{PriceMaxCents: 2000},
		criteria.Suggested{}, criteria.HeuristicParsed)

	deals := make([]deal.Deal, 0, 5)
	for i := 0; i < 3; i++ {
		deals = append(deals, mkDeal(fmt.Sprintf("cheap-%d", i), 1000))
	}
	deals = append(deals, mkDeal("pricey-0", 9000), mkDeal("pricey-1", 9000))

	s := New(2, 0)
	out := s.Score(deals, c)
	if len(out) != 3 {
		t.Fatalf("expected only the 3 strict matches, got %d", len(out))
	}
	for _, sc := range out {
		if !sc.Strict {
			t.Errorf("deal %s should be a strict match", sc.Deal.Key)
		}
	}
}

func TestScore_DeterministicTieBreak(t *testing.T) {
	c := mustCriteria(t, "gadget", criteria.Filters{}, criteria.Suggested{}, criteria.HeuristicParsed)

	deals := []deal.Deal{mkDeal("b", 1000), mkDeal("a", 1000), mkDeal("c", 1000)}
	s := New(3, 0)

	first := s.Score(deals, c)
	second := s.Score([]deal.Deal{deals[2], deals[0], deals[1]}, c)
	for i := range first {
		if first[i].Deal.Key != second[i].Deal.Key {
			t.Fatalf("ordering not deterministic at %d: %s vs %s",
				i, first[i].Deal.Key, second[i].Deal.Key)
		}
	}
	if first[0].Deal.Key != "a" || first[1].Deal.Key != "b" || first[2].Deal.Key != "c" {
		t.Errorf("equal scores should break ties by key asc, got %s %s %s",
			first[0].Deal.Key, first[1].Deal.Key, first[2].Deal.Key)
	}
}

func TestOptionalScore_AISuggestedScaledByConfidence(t *testing.T) {
	d := mkDeal("a", 1000)
	d.Title = "Sony WH-1000XM5 Headphones"
	d.Category = "audio"

	ai := mustCriteria(t, "headphones", criteria.Filters{},
		criteria.Suggested{Brands: []string{"sony"}, Categories: []string{"audio"}, Confidence: 0.9},
		criteria.AIParsed)
	heuristic := mustCriteria(t, "headphones", criteria.Filters{},
		criteria.Suggested{Brands: []string{"sony"}, Categories: []string{"audio"}, Confidence: 0.9},
		criteria.HeuristicParsed)

	if aiScore, hScore := optionalScore(&d, ai), optionalScore(&d, heuristic); aiScore <= hScore {
		t.Errorf("AI-trusted suggestions should add score: ai=%v heuristic=%v", aiScore, hScore)
	}
}

func TestOptionalScore_TitleOutranksDescription(t *testing.T) {
	c := mustCriteria(t, "espresso machine", criteria.Filters{}, criteria.Suggested{}, criteria.HeuristicParsed)

	titleHit := mkDeal("a", 1000)
	titleHit.Title = "Espresso Machine Deluxe"
	descHit := mkDeal("b", 1000)
	descHit.Title = "Coffee Maker"
	descHit.Description = "Makes espresso like a real machine"

	if ts, ds := optionalScore(&titleHit, c), optionalScore(&descHit, c); ts <= ds {
		t.Errorf("title matches should outscore description matches: title=%v desc=%v", ts, ds)
	}
}
