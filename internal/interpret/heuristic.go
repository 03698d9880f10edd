package interpret

import (
	"regexp"
	"strconv"
	"strings"
)

// stopWords are dropped before term extraction. Kept deliberately small:
// over-filtering hurts recall more than the occasional noise term.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "for": {},
	"with": {}, "in": {}, "on": {}, "of": {}, "to": {}, "best": {},
	"cheap": {}, "deal": {}, "deals": {}, "find": {}, "me": {}, "buy": {},
}

var (
	// "$50", "50 dollars", "50.99"
	moneyRe = regexp.MustCompile(`\$?\s*(\d+(?:[.,]\d{1,2})?)\s*(?:dollars|usd|eur|€|£)?`)
	// "under $50", "below 50", "less than 50", "up to 50"
	maxRe = regexp.MustCompile(`(?i)\b(?:under|below|less than|up to|max(?:imum)?|cheaper than)\s+\$?\s*(\d+(?:[.,]\d{1,2})?)`)
	// "over $50", "above 50", "more than 50", "at least 50"
	minRe = regexp.MustCompile(`(?i)\b(?:over|above|more than|at least|min(?:imum)?|from)\s+\$?\s*(\d+(?:[.,]\d{1,2})?)`)
	// "between 20 and 80", "20-80", "$20 to $80"
	rangeRe = regexp.MustCompile(`(?i)\b(?:between\s+)?\$?\s*(\d+(?:[.,]\d{1,2})?)\s*(?:-|to|and|–)\s*\$?\s*(\d+(?:[.,]\d{1,2})?)`)
	// "50% off", "at least 30% discount"
	discountRe = regexp.MustCompile(`(?i)\b(\d{1,2})\s*%\s*(?:off|discount|reduction)?`)
)

// HeuristicResult is the fallback tokenizer's output.
type HeuristicResult struct {
	Terms          []string
	PriceMinCents  int64
	PriceMaxCents  int64
	MinDiscountPct float64
}

// ParseHeuristic tokenizes a query without the AI collaborator:
// stop-word removal plus numeric price-range and discount detection.
func ParseHeuristic(query string) HeuristicResult {
	var res HeuristicResult
	remaining := query

	if m := rangeRe.FindStringSubmatch(remaining); m != nil && strings.Contains(strings.ToLower(m[0]), "between") {
		res.PriceMinCents = toCents(m[1])
		res.PriceMaxCents = toCents(m[2])
		remaining = strings.Replace(remaining, m[0], " ", 1)
	}
	if res.PriceMaxCents == 0 {
		if m := maxRe.FindStringSubmatch(remaining); m != nil {
			res.PriceMaxCents = toCents(m[1])
			remaining = strings.Replace(remaining, m[0], " ", 1)
		}
	}
	if res.PriceMinCents == 0 {
		if m := minRe.FindStringSubmatch(remaining); m != nil {
			res.PriceMinCents = toCents(m[1])
			remaining = strings.Replace(remaining, m[0], " ", 1)
		}
	}
	if m := discountRe.FindStringSubmatch(remaining); m != nil {
		if pct, err := strconv.ParseFloat(m[1], 64); err == nil && pct <= 100 {
			res.MinDiscountPct = pct
		}
		remaining = strings.Replace(remaining, m[0], " ", 1)
	}
	// Inverted bounds can come out of free text ("from 80 ... under 20").
	// Swap rather than reject: the fallback must always produce criteria.
	if res.PriceMinCents > 0 && res.PriceMaxCents > 0 && res.PriceMinCents > res.PriceMaxCents {
		res.PriceMinCents, res.PriceMaxCents = res.PriceMaxCents, res.PriceMinCents
	}

	for _, tok := range strings.Fields(strings.ToLower(remaining)) {
		tok = strings.Trim(tok, ".,!?;:\"'()")
		if tok == "" {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		if moneyRe.MatchString(tok) && strings.IndexFunc(tok, isLetter) == -1 {
			continue
		}
		res.Terms = append(res.Terms, tok)
	}
	return res
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// toCents converts a decimal money token like "19.99" or "19,99" to cents.
func toCents(s string) int64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int64(f*100 + 0.5)
}
