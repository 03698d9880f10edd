package search

import (
	"context"

	"github.com/dealhound-cloud/dealhound/internal/cache"
	"github.com/dealhound-cloud/dealhound/internal/domain"
	"github.com/dealhound-cloud/dealhound/internal/domain/candidate"
	"github.com/dealhound-cloud/dealhound/internal/domain/criteria"
	"github.com/dealhound-cloud/dealhound/internal/domain/deal"
	"github.com/dealhound-cloud/dealhound/internal/score"
)

// Interpreter turns a raw query plus structured filters into criteria.
type Interpreter interface {
	Interpret(ctx context.Context, rawQuery string, filters criteria.Filters) (criteria.Criteria, error)
}

// Fetcher fans a search out to the enabled sources.
type Fetcher interface {
	Fetch(ctx context.Context, c criteria.Criteria) ([]candidate.Candidate, []domain.SourceError)
	SourceCount() int
}

// Normalizer canonicalizes and deduplicates raw candidates.
type Normalizer interface {
	Normalize(cands []candidate.Candidate) []deal.Deal
}

// Scorer ranks deals against criteria.
type Scorer interface {
	Score(deals []deal.Deal, c criteria.Criteria) []score.Scored
}

// Repository persists normalized deals.
type Repository interface {
	FindByCriteria(ctx context.Context, c criteria.Criteria) ([]deal.Deal, error)
	Upsert(ctx context.Context, d deal.Deal) error
}

// ResultCache provides read-through caching with single-flight semantics.
type ResultCache interface {
	GetOrCompute(ctx context.Context, crit criteria.Criteria, compute cache.ComputeFn) ([]deal.Deal, error)
	Invalidate(ctx context.Context, crit criteria.Criteria) error
}
