// Package interpret merges user-supplied structured filters with AI-parsed
// terms into a single search criteria value, falling back to a heuristic
// tokenizer when the AI collaborator is unavailable.
package interpret

import (
	"context"

	"go.uber.org/zap"

	"github.com/dealhound-cloud/dealhound/internal/domain/criteria"
)

// Interpreter builds search criteria from a raw query and structured filters.
type Interpreter struct {
	parser AIParser
	logger *zap.Logger
}

// New creates an Interpreter. parser may be nil, in which case every
// interpretation uses the heuristic path.
func New(parser AIParser, logger *zap.Logger) *Interpreter {
	return &Interpreter{parser: parser, logger: logger}
}

// Interpret produces criteria for one search request. AI term extraction is
// always attempted as best-effort enrichment; any AI failure degrades to the
// heuristic tokenizer and never fails the search. User-asserted filters
// always win over AI-derived values for the same field.
func (i *Interpreter) Interpret(
	ctx context.Context, rawQuery string, filters criteria.Filters,
) (criteria.Criteria, error) {
	if i.parser != nil {
		parsed, err := i.parser.Parse(ctx, rawQuery)
		if err == nil {
			merged := filters
			if merged.PriceMinCents == 0 {
				merged.PriceMinCents = parsed.PriceMinCents
			}
			if merged.PriceMaxCents == 0 {
				merged.PriceMaxCents = parsed.PriceMaxCents
			}
			merged.RequiredFeatures = append(merged.RequiredFeatures, parsed.RequiredFeatures...)

			c, cerr := criteria.New(rawQuery, merged, criteria.Suggested{
				Categories: parsed.Categories,
				Brands:     parsed.Brands,
				Confidence: parsed.Confidence,
			}, criteria.AIParsed)
			if cerr == nil {
				return c, nil
			}
			// AI-enriched values broke a criteria invariant (e.g. an AI price
			// bound conflicting with a user bound). Degrade, don't fail.
			i.logger.Warn("AI-enriched criteria invalid, falling back",
				zap.String("query", rawQuery), zap.Error(cerr))
		} else {
			i.logger.Info("AI parse degraded to heuristic",
				zap.String("query", rawQuery), zap.Error(err))
		}
	}

	h := ParseHeuristic(rawQuery)
	merged := filters
	if merged.PriceMinCents == 0 {
		merged.PriceMinCents = h.PriceMinCents
	}
	if merged.PriceMaxCents == 0 {
		merged.PriceMaxCents = h.PriceMaxCents
	}
	if merged.MinDiscountPct == 0 {
		merged.MinDiscountPct = h.MinDiscountPct
	}
	// A heuristic-derived bound must never invalidate a user-asserted one.
	if merged.PriceMinCents > 0 && merged.PriceMaxCents > 0 && merged.PriceMinCents > merged.PriceMaxCents {
		if filters.PriceMinCents == 0 {
			merged.PriceMinCents = 0
		} else {
			merged.PriceMaxCents = 0
		}
	}

	return criteria.New(rawQuery, merged, criteria.Suggested{}, criteria.HeuristicParsed)
}
