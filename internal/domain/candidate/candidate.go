// Package candidate defines the raw item shape returned by source adapters
// before normalization. Candidates are ephemeral and never persisted as-is.
package candidate

import "time"

// Candidate is a raw marketplace item as one source returned it.
// RawPrice is whatever the source exposed ("$19.99", "1 299,00 kr", "24.5");
// the normalizer owns turning it into a validated price.
type Candidate struct {
	Source      string
	URL         string
	Title       string
	Description string
	RawPrice    string
	RawOldPrice string
	Currency    string
	Category    string
	Rating      float64
	ReviewCount int
	FetchedAt   time.Time
}
