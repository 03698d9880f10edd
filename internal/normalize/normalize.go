// Package normalize canonicalizes raw candidates into persisted deals:
// URL canonicalization, price extraction with floor clamping, currency
// normalization, and cross-source deduplication.
package normalize

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/dealhound-cloud/dealhound/internal/domain/candidate"
	"github.com/dealhound-cloud/dealhound/internal/domain/deal"
	"github.com/dealhound-cloud/dealhound/internal/metrics"
)

// Normalizer turns candidates into deals. Pure except for correction logging.
type Normalizer struct {
	logger *zap.Logger
}

// New creates a Normalizer.
func New(logger *zap.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize canonicalizes and deduplicates a candidate batch. When two
// candidates resolve to the same identity key, the later fetch wins for
// mutable fields while the earliest fetch's timestamp is kept as FoundAt.
// Output order is deterministic (identity key ascending). Idempotent:
// normalizing the produced deals again is a fixed point.
func (n *Normalizer) Normalize(cands []candidate.Candidate) []deal.Deal {
	byKey := make(map[string]deal.Deal, len(cands))

	for _, c := range cands {
		d, ok := n.normalizeOne(c)
		if !ok {
			continue
		}
		existing, seen := byKey[d.Key]
		if !seen {
			byKey[d.Key] = d
			continue
		}
		if d.LastCheckedAt.After(existing.LastCheckedAt) {
			existing.Merge(d)
		}
		if d.FoundAt.Before(existing.FoundAt) {
			existing.FoundAt = d.FoundAt
		}
		byKey[d.Key] = existing
	}

	out := make([]deal.Deal, 0, len(byKey))
	for _, d := range byKey {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (n *Normalizer) normalizeOne(c candidate.Candidate) (deal.Deal, bool) {
	if c.Source == "" || c.URL == "" {
		return deal.Deal{}, false
	}

	canonical, corrected := CanonicalURL(c.URL)
	if canonical == "" {
		return deal.Deal{}, false
	}
	if corrected {
		metrics.NormalizationCorrections.WithLabelValues("url").Inc()
	}

	price, ok := ParsePriceCents(c.RawPrice)
	if !ok || price < deal.MinPriceCents {
		// Clamp instead of dropping: an unparseable price must not silently
		// reduce recall for an otherwise relevant match.
		metrics.NormalizationCorrections.WithLabelValues("price").Inc()
		n.logger.Info("price clamped to floor",
			zap.String("source", c.Source),
			zap.String("url", canonical),
			zap.String("raw_price", c.RawPrice),
		)
		price = deal.MinPriceCents
	}

	oldPrice, _ := ParsePriceCents(c.RawOldPrice)
	if oldPrice < 0 {
		oldPrice = 0
	}

	currency := strings.ToUpper(strings.TrimSpace(c.Currency))
	if len(currency) != 3 {
		metrics.NormalizationCorrections.WithLabelValues("currency").Inc()
		currency = "USD"
	}

	d := deal.Deal{
		Key:           IdentityKey(c.Source, canonical),
		Source:        c.Source,
		URL:           canonical,
		Title:         strings.TrimSpace(c.Title),
		Description:   strings.TrimSpace(c.Description),
		PriceCents:    price,
		OldPriceCents: oldPrice,
		Currency:      currency,
		Category:      strings.ToLower(strings.TrimSpace(c.Category)),
		Rating:        c.Rating,
		ReviewCount:   c.ReviewCount,
		FoundAt:       c.FetchedAt.UTC(),
		LastCheckedAt: c.FetchedAt.UTC(),
	}
	d.DiscountPct = DiscountPct(d.PriceCents, d.OldPriceCents)
	return d, true
}

// Renormalize maps already-normalized deals through the same pipeline,
// used to assert the fixed-point property in tests and to re-merge freshly
// fetched deals with persisted ones.
func (n *Normalizer) Renormalize(deals []deal.Deal) []deal.Deal {
	cands := make([]candidate.Candidate, 0, len(deals))
	for _, d := range deals {
		cands = append(cands, candidate.Candidate{
			Source:      d.Source,
			URL:         d.URL,
			Title:       d.Title,
			Description: d.Description,
			RawPrice:    strconv.FormatInt(d.PriceCents, 10) + "c",
			RawOldPrice: strconv.FormatInt(d.OldPriceCents, 10) + "c",
			Currency:    d.Currency,
			Category:    d.Category,
			Rating:      d.Rating,
			ReviewCount: d.ReviewCount,
			FetchedAt:   d.LastCheckedAt,
		})
	}
	out := n.Normalize(cands)
	// FoundAt survives renormalization by key.
	founds := make(map[string]deal.Deal, len(deals))
	for _, d := range deals {
		founds[d.Key] = d
	}
	for i := range out {
		if orig, ok := founds[out[i].Key]; ok && orig.FoundAt.Before(out[i].FoundAt) {
			out[i].FoundAt = orig.FoundAt
		}
	}
	return out
}

// IdentityKey derives the stable deal identity from source and canonical URL.
func IdentityKey(source, canonicalURL string) string {
	return source + "|" + canonicalURL
}

// CanonicalURL lower-cases the scheme and host and strips the query string
// and fragment. The second return reports whether anything was stripped.
func CanonicalURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	corrected := u.RawQuery != "" || u.Fragment != ""
	u.RawQuery = ""
	u.Fragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String(), corrected
}

var priceNumRe = regexp.MustCompile(`-?\d+(?:[.,]\d+)*`)

// ParsePriceCents extracts a price in cents from a raw representation.
// Accepts plain decimals ("19.99"), currency-decorated strings ("$1,299.00",
// "1 299,00 kr"), and the internal "<cents>c" form. Returns ok=false when no
// numeric value can be extracted.
func ParsePriceCents(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	// Internal fixed-point form: integer cents with a "c" suffix.
	if strings.HasSuffix(raw, "c") {
		if n, err := strconv.ParseInt(strings.TrimSuffix(raw, "c"), 10, 64); err == nil {
			return n, true
		}
	}

	compact := strings.ReplaceAll(raw, " ", "")
	m := priceNumRe.FindString(compact)
	if m == "" {
		return 0, false
	}

	// Disambiguate thousand vs decimal separators: the last separator with
	// exactly two trailing digits is decimal, everything else is grouping.
	lastSep := strings.LastIndexAny(m, ".,")
	var intPart, fracPart string
	if lastSep >= 0 && len(m)-lastSep-1 <= 2 {
		intPart = m[:lastSep]
		fracPart = m[lastSep+1:]
	} else {
		intPart = m
	}
	intPart = strings.Map(func(r rune) rune {
		if r == '.' || r == ',' {
			return -1
		}
		return r
	}, intPart)

	whole, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, false
	}
	var frac int64
	if fracPart != "" {
		frac, err = strconv.ParseInt(fracPart, 10, 64)
		if err != nil {
			return 0, false
		}
		if len(fracPart) == 1 {
			frac *= 10
		}
	}
	if whole < 0 {
		return whole*100 - frac, true
	}
	return whole*100 + frac, true
}

// DiscountPct derives the discount percentage from current and old price.
// Returns 0 when no meaningful old price exists.
func DiscountPct(priceCents, oldPriceCents int64) float64 {
	if oldPriceCents <= 0 || oldPriceCents <= priceCents {
		return 0
	}
	return float64(oldPriceCents-priceCents) / float64(oldPriceCents) * 100
}
