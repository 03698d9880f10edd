// Package cache provides read-through caching of ranked search results with
// single-flight semantics and generation-checked writes: an invalidation
// bumps a per-key generation counter, and an in-flight computation that
// finishes against a stale generation never overwrites fresher data.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dealhound-cloud/dealhound/internal/db"
	"github.com/dealhound-cloud/dealhound/internal/domain"
	"github.com/dealhound-cloud/dealhound/internal/domain/criteria"
	"github.com/dealhound-cloud/dealhound/internal/domain/deal"
	"github.com/dealhound-cloud/dealhound/internal/metrics"
)

var (
	valuePrefix = domain.KeyPrefix + "cache:"
	genPrefix   = domain.KeyPrefix + "cachegen:"
)

// store is the consumer interface for the result cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, key string) error
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	GetInt64(ctx context.Context, key string) (int64, error)
	SetIfGeneration(ctx context.Context, key string, value []byte, ttl time.Duration, genKey string, gen int64) (bool, error)
}

// ComputeFn produces the ranked result list for a cache miss.
type ComputeFn func(ctx context.Context) ([]deal.Deal, error)

type flight struct {
	done  chan struct{}
	deals []deal.Deal
	err   error
}

// Coordinator wraps the store with read-through caching.
type Coordinator struct {
	store  store
	ttl    time.Duration
	logger *zap.Logger

	mu       sync.Mutex
	inflight map[string]*flight
}

// New creates a cache coordinator.
func New(s store, ttl time.Duration, logger *zap.Logger) *Coordinator {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Coordinator{
		store:    s,
		ttl:      ttl,
		logger:   logger,
		inflight: make(map[string]*flight),
	}
}

// Key derives the deterministic cache key for criteria.
func Key(c criteria.Criteria) string {
	h := sha256.Sum256([]byte(c.CacheKeyMaterial()))
	return hex.EncodeToString(h[:])
}

// GetOrCompute returns the cached result for the criteria or computes it.
// Concurrent callers for the same key share one in-progress computation.
// A store failure degrades to pass-through: the computation still runs and
// its result is returned, only the cache write is skipped.
func (c *Coordinator) GetOrCompute(
	ctx context.Context, crit criteria.Criteria, compute ComputeFn,
) ([]deal.Deal, error) {
	key := Key(crit)

	if deals, ok := c.readCached(ctx, key); ok {
		metrics.ResultCacheTotal.WithLabelValues("hit").Inc()
		return deals, nil
	}

	c.mu.Lock()
	if fl, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-fl.done:
			return fl.deals, fl.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	fl := &flight{done: make(chan struct{})}
	c.inflight[key] = fl
	c.mu.Unlock()

	metrics.ResultCacheTotal.WithLabelValues("miss").Inc()
	fl.deals, fl.err = c.computeAndStore(ctx, key, compute)

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
	close(fl.done)

	return fl.deals, fl.err
}

// Invalidate bumps the generation for the criteria's key and drops the
// cached value. Any computation started before the bump will fail its
// generation check and leave the cache alone.
func (c *Coordinator) Invalidate(ctx context.Context, crit criteria.Criteria) error {
	key := Key(crit)
	if _, err := c.store.IncrBy(ctx, genPrefix+key, 1); err != nil {
		return err
	}
	if err := c.store.Del(ctx, valuePrefix+key); err != nil {
		c.logger.Warn("failed to drop cached value after invalidation",
			zap.String("key", key), zap.Error(err))
	}
	return nil
}

func (c *Coordinator) readCached(ctx context.Context, key string) ([]deal.Deal, bool) {
	data, err := c.store.Get(ctx, valuePrefix+key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			metrics.ResultCacheTotal.WithLabelValues("bypass").Inc()
			c.logger.Warn("cache read failed, bypassing",
				zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var deals []deal.Deal
	if err := json.Unmarshal(data, &deals); err != nil {
		c.logger.Warn("cached entry corrupt, recomputing",
			zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return deals, true
}

func (c *Coordinator) computeAndStore(
	ctx context.Context, key string, compute ComputeFn,
) ([]deal.Deal, error) {
	// Read the generation before computing, so an invalidation during the
	// computation makes the write a no-op.
	gen, genErr := c.store.GetInt64(ctx, genPrefix+key)

	deals, err := compute(ctx)
	if err != nil {
		return nil, err
	}

	if genErr != nil {
		// Cache unreachable: serve the computed result, skip the write.
		c.logger.Warn("cache degraded to pass-through",
			zap.String("key", key), zap.Error(genErr))
		return deals, nil
	}

	data, err := json.Marshal(deals)
	if err != nil {
		c.logger.Warn("failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return deals, nil
	}

	written, err := c.store.SetIfGeneration(ctx, valuePrefix+key, data, c.ttl, genPrefix+key, gen)
	if err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		return deals, nil
	}
	if !written {
		metrics.ResultCacheTotal.WithLabelValues("stale_discard").Inc()
	}
	return deals, nil
}
