package source

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/dealhound-cloud/dealhound/internal/domain"
	"github.com/dealhound-cloud/dealhound/internal/domain/candidate"
	"github.com/dealhound-cloud/dealhound/internal/domain/criteria"
	"github.com/dealhound-cloud/dealhound/internal/metrics"
)

// Orchestrator fans a search out to every admitted source concurrently,
// collecting partial results under a single deadline.
type Orchestrator struct {
	registry *Registry
	health   HealthSet
	workers  int64
	deadline time.Duration
	logger   *zap.Logger
}

// NewOrchestrator creates a fan-out orchestrator. health must hold one entry
// per registered source; the orchestrator only ever touches it through Admit
// and the report callbacks.
func NewOrchestrator(
	registry *Registry, health HealthSet, maxWorkers int, deadline time.Duration, logger *zap.Logger,
) *Orchestrator {
	if maxWorkers <= 0 {
		maxWorkers = 8
	}
	if deadline <= 0 {
		deadline = 15 * time.Second
	}
	return &Orchestrator{
		registry: registry,
		health:   health,
		workers:  int64(maxWorkers),
		deadline: deadline,
		logger:   logger,
	}
}

// SourceCount returns the number of registered sources.
func (o *Orchestrator) SourceCount() int { return o.registry.Len() }

type fetchOutcome struct {
	source     string
	candidates []candidate.Candidate
	err        error
}

// Fetch dispatches one task per admitted source. A failed or timed-out
// source contributes zero candidates and one SourceError; the other tasks
// are never aborted. Tasks still running when the deadline elapses are
// abandoned: their results are discarded and they are reported as timeouts,
// though they still update their own breaker state when they finish.
func (o *Orchestrator) Fetch(
	ctx context.Context, c criteria.Criteria,
) ([]candidate.Candidate, []domain.SourceError) {
	names := o.registry.Names()

	var srcErrs []domain.SourceError
	admitted := make([]Adapter, 0, len(names))
	for _, name := range names {
		adapter, _ := o.registry.Get(name)
		h, ok := o.health[name]
		if !ok {
			// No health entry means nobody owns this source's budget; skip it
			// rather than calling it unmetered.
			o.logger.Warn("source has no health entry, skipping", zap.String("source", name))
			continue
		}
		if err := h.Admit(); err != nil {
			kind := domain.KindFromError(err)
			metrics.SourceFetchTotal.WithLabelValues(name, string(kind)).Inc()
			srcErrs = append(srcErrs, *domain.NewSourceError(name, kind, err))
			continue
		}
		admitted = append(admitted, adapter)
	}

	if len(admitted) == 0 {
		return nil, srcErrs
	}

	ctx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	sem := semaphore.NewWeighted(o.workers)
	outcomes := make(chan fetchOutcome, len(admitted))
	var wg sync.WaitGroup

	for _, adapter := range admitted {
		wg.Add(1)
		go func(a Adapter) {
			defer wg.Done()
			outcomes <- o.runTask(ctx, sem, a, c)
		}(adapter)
	}

	// Close outcomes once every task has reported, so the collection loop
	// terminates early when all tasks beat the deadline.
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	reported := make(map[string]bool, len(admitted))
	var all []candidate.Candidate

collect:
	for {
		select {
		case out, ok := <-outcomes:
			if !ok {
				break collect
			}
			reported[out.source] = true
			if out.err != nil {
				srcErrs = append(srcErrs, *domain.NewSourceError(out.source, domain.KindFromError(out.err), out.err))
			} else {
				all = append(all, out.candidates...)
			}
		case <-ctx.Done():
			// Deadline elapsed: drain what is already buffered, then abandon.
			for {
				select {
				case out, ok := <-outcomes:
					if !ok {
						break collect
					}
					reported[out.source] = true
					if out.err != nil {
						srcErrs = append(srcErrs, *domain.NewSourceError(out.source, domain.KindFromError(out.err), out.err))
					} else {
						all = append(all, out.candidates...)
					}
				default:
					for _, a := range admitted {
						if !reported[a.Name()] {
							srcErrs = append(srcErrs,
								*domain.NewSourceError(a.Name(), domain.SourceTimeout, domain.ErrSourceTimeout))
						}
					}
					break collect
				}
			}
		}
	}

	return all, srcErrs
}

// runTask executes a single source fetch and owns all health reporting and
// metrics for it, so breaker state stays correct even when the caller has
// already abandoned the task.
func (o *Orchestrator) runTask(
	ctx context.Context, sem *semaphore.Weighted, a Adapter, c criteria.Criteria,
) fetchOutcome {
	name := a.Name()
	h := o.health[name]

	if err := sem.Acquire(ctx, 1); err != nil {
		h.ReportFailure()
		metrics.SourceFetchTotal.WithLabelValues(name, string(domain.SourceTimeout)).Inc()
		return fetchOutcome{source: name, err: domain.ErrSourceTimeout}
	}
	defer sem.Release(1)

	start := time.Now()
	cands, err := a.Fetch(ctx, c)
	metrics.SourceFetchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, domain.ErrSourceTimeout) {
			err = domain.ErrSourceTimeout
		}
		h.ReportFailure()
		kind := domain.KindFromError(err)
		metrics.SourceFetchTotal.WithLabelValues(name, string(kind)).Inc()
		o.logger.Warn("source fetch failed",
			zap.String("source", name),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return fetchOutcome{source: name, err: err}
	}

	h.ReportSuccess()
	metrics.SourceFetchTotal.WithLabelValues(name, "success").Inc()
	metrics.SourceCandidatesTotal.WithLabelValues(name).Add(float64(len(cands)))
	return fetchOutcome{source: name, candidates: cands}
}
