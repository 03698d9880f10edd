// Package search composes the query interpreter, cache coordinator, source
// orchestrator, normalizer and scorer into the engine's single entry point.
package search

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dealhound-cloud/dealhound/internal/domain"
	"github.com/dealhound-cloud/dealhound/internal/domain/criteria"
	"github.com/dealhound-cloud/dealhound/internal/domain/deal"
)

// Options tunes one search call.
type Options struct {
	// Limit caps the returned result list. 0 means no cap.
	Limit int
	// BypassCache forces a fresh computation (the result is still written back).
	BypassCache bool
}

// Result is the engine's response: a ranked list plus degradation signals.
// Partial=true means at least one source failed or the deadline truncated
// the fan-out; the caller can communicate reduced confidence without
// failing the request.
type Result struct {
	Items        []deal.Deal
	Partial      bool
	SourceErrors []domain.SourceError
	Criteria     criteria.Criteria
}

// Service is the search engine facade.
type Service struct {
	interp       Interpreter
	cache        ResultCache
	repo         Repository
	fetcher      Fetcher
	normalizer   Normalizer
	scorer       Scorer
	minPersisted int
	logger       *zap.Logger
}

// New creates the search engine.
func New(
	interp Interpreter,
	cache ResultCache,
	repo Repository,
	fetcher Fetcher,
	normalizer Normalizer,
	scorer Scorer,
	minPersisted int,
	logger *zap.Logger,
) *Service {
	if minPersisted <= 0 {
		minPersisted = 10
	}
	return &Service{
		interp:       interp,
		cache:        cache,
		repo:         repo,
		fetcher:      fetcher,
		normalizer:   normalizer,
		scorer:       scorer,
		minPersisted: minPersisted,
		logger:       logger,
	}
}

// Search runs the full pipeline: interpret, cached lookup, live fan-out when
// persisted matches are insufficient, normalize, persist, rank. Every
// degradation short of "no enabled sources" or "deadline exhausted with
// nothing to return" is absorbed into Partial/SourceErrors.
func (s *Service) Search(
	ctx context.Context, rawQuery string, filters criteria.Filters, opts Options,
) (Result, error) {
	if s.fetcher.SourceCount() == 0 {
		return Result{}, fmt.Errorf("%w: %w", domain.ErrSearchUnavailable, domain.ErrNoSourcesEnabled)
	}

	crit, err := s.interp.Interpret(ctx, rawQuery, filters)
	if err != nil {
		return Result{}, fmt.Errorf("interpret query: %w", err)
	}

	// Source errors escape the compute closure; only the caller that ran the
	// computation sees them — a single-flight sharer gets the items alone.
	var mu sync.Mutex
	var srcErrs []domain.SourceError

	compute := func(ctx context.Context) ([]deal.Deal, error) {
		items, errs := s.compute(ctx, crit)
		mu.Lock()
		srcErrs = append(srcErrs, errs...)
		mu.Unlock()
		return items, nil
	}

	var items []deal.Deal
	if opts.BypassCache {
		if err := s.cache.Invalidate(ctx, crit); err != nil {
			s.logger.Warn("cache invalidation failed", zap.Error(err))
		}
	}
	items, err = s.cache.GetOrCompute(ctx, crit, compute)
	if err != nil {
		return Result{}, err
	}

	mu.Lock()
	defer mu.Unlock()

	if len(items) == 0 && ctx.Err() != nil {
		return Result{}, fmt.Errorf("%w: deadline exhausted before any results", domain.ErrSearchUnavailable)
	}

	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}

	return Result{
		Items:        items,
		Partial:      len(srcErrs) > 0,
		SourceErrors: srcErrs,
		Criteria:     crit,
	}, nil
}

// compute is the uncached pipeline body: persisted lookup, conditional
// fan-out, normalization, write-through, ranking.
func (s *Service) compute(ctx context.Context, crit criteria.Criteria) ([]deal.Deal, []domain.SourceError) {
	persisted, err := s.repo.FindByCriteria(ctx, crit)
	if err != nil {
		// A broken store read degrades to a pure live search.
		s.logger.Warn("persisted lookup failed", zap.Error(err))
		persisted = nil
	}

	pool := persisted
	var srcErrs []domain.SourceError

	if len(persisted) < s.minPersisted {
		cands, errs := s.fetcher.Fetch(ctx, crit)
		srcErrs = errs

		fresh := s.normalizer.Normalize(cands)
		for _, d := range fresh {
			if err := s.repo.Upsert(ctx, d); err != nil {
				// A failed upsert never blocks the response.
				s.logger.Warn("deal upsert failed",
					zap.String("key", d.Key), zap.Error(err))
			}
		}
		pool = mergeByKey(persisted, fresh)
	}

	scored := s.scorer.Score(pool, crit)
	items := make([]deal.Deal, 0, len(scored))
	for _, sc := range scored {
		d := sc.Deal
		d.Score = sc.Score
		items = append(items, d)
	}
	return items, srcErrs
}

// mergeByKey overlays fresh deals onto persisted ones: a fresh sighting wins
// mutable fields while the persisted FoundAt is preserved.
func mergeByKey(persisted, fresh []deal.Deal) []deal.Deal {
	if len(persisted) == 0 {
		return fresh
	}
	byKey := make(map[string]int, len(persisted))
	out := make([]deal.Deal, len(persisted))
	copy(out, persisted)
	for i, d := range out {
		byKey[d.Key] = i
	}
	for _, f := range fresh {
		if i, ok := byKey[f.Key]; ok {
			out[i].Merge(f)
			continue
		}
		byKey[f.Key] = len(out)
		out = append(out, f)
	}
	return out
}

// Refresh forces recomputation for a query, used by the excluded API layer's
// explicit refresh action.
func (s *Service) Refresh(
	ctx context.Context, rawQuery string, filters criteria.Filters, opts Options,
) (Result, error) {
	opts.BypassCache = true
	return s.Search(ctx, rawQuery, filters, opts)
}
