// Package deal defines the normalized, persisted unit of search output.
package deal

import (
	"fmt"
	"time"
)

// MinPriceCents is the floor every persisted price is clamped up to.
// A zero, negative, or unparseable extracted price becomes this value
// instead of dropping the item.
const MinPriceCents int64 = 1

// Deal is a validated, deduplicated marketplace offer.
// Key is the stable identity: source + canonicalized URL.
// Score is assigned per-search and never persisted.
type Deal struct {
	Key           string    `json:"key"`
	Source        string    `json:"source"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	PriceCents    int64     `json:"price_cents"`
	OldPriceCents int64     `json:"old_price_cents,omitempty"`
	Currency      string    `json:"currency"`
	Category      string    `json:"category,omitempty"`
	DiscountPct   float64   `json:"discount_pct,omitempty"`
	Rating        float64   `json:"rating,omitempty"`
	ReviewCount   int       `json:"review_count,omitempty"`
	FoundAt       time.Time `json:"found_at"`
	LastCheckedAt time.Time `json:"last_checked_at"`

	Score float64 `json:"-"`
}

// Validate checks the persistence invariants.
func (d *Deal) Validate() error {
	if d.Key == "" {
		return fmt.Errorf("deal key is required")
	}
	if d.Source == "" {
		return fmt.Errorf("deal source is required")
	}
	if d.PriceCents < MinPriceCents {
		return fmt.Errorf("deal price %d below floor %d", d.PriceCents, MinPriceCents)
	}
	if d.FoundAt.IsZero() {
		return fmt.Errorf("deal found_at is required")
	}
	return nil
}

// Merge folds a later sighting of the same identity into d.
// Mutable fields (price, discount, rating, last-checked) take the later
// fetch's values; the original FoundAt is preserved.
func (d *Deal) Merge(later Deal) {
	if !later.LastCheckedAt.After(d.LastCheckedAt) {
		return
	}
	d.Title = later.Title
	if later.Description != "" {
		d.Description = later.Description
	}
	d.PriceCents = later.PriceCents
	d.OldPriceCents = later.OldPriceCents
	d.Currency = later.Currency
	if later.Category != "" {
		d.Category = later.Category
	}
	d.DiscountPct = later.DiscountPct
	d.Rating = later.Rating
	d.ReviewCount = later.ReviewCount
	d.LastCheckedAt = later.LastCheckedAt
}
