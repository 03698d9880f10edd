// Package deal persists normalized deals in the key-value store as JSON
// values under a shared prefix.
package deal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dealhound-cloud/dealhound/internal/db"
	"github.com/dealhound-cloud/dealhound/internal/domain"
	"github.com/dealhound-cloud/dealhound/internal/domain/criteria"
	domdeal "github.com/dealhound-cloud/dealhound/internal/domain/deal"
)

var keyPrefix = domain.KeyPrefix + "deal:"

// store is the consumer interface for deal persistence (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Matcher decides whether a persisted deal satisfies search criteria.
// Injected so the repository shares the scorer's strict-pass semantics
// without importing it.
type Matcher func(d *domdeal.Deal, c criteria.Criteria) bool

// Repo stores and loads deals.
type Repo struct {
	store  store
	match  Matcher
	logger *zap.Logger
}

// New creates a deal repository.
func New(s store, match Matcher, logger *zap.Logger) *Repo {
	return &Repo{store: s, match: match, logger: logger}
}

// Get loads one deal by identity key.
func (r *Repo) Get(ctx context.Context, key string) (domdeal.Deal, error) {
	data, err := r.store.Get(ctx, keyPrefix+key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domdeal.Deal{}, domain.ErrNotFound
		}
		return domdeal.Deal{}, fmt.Errorf("get deal: %w", err)
	}
	var d domdeal.Deal
	if err := json.Unmarshal(data, &d); err != nil {
		return domdeal.Deal{}, fmt.Errorf("decode deal %s: %w", key, err)
	}
	return d, nil
}

// FindByCriteria scans the persisted set and returns deals matching the
// criteria's strict gates. Unreadable entries are skipped, not fatal.
func (r *Repo) FindByCriteria(ctx context.Context, c criteria.Criteria) ([]domdeal.Deal, error) {
	keys, err := r.store.Scan(ctx, keyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan deals: %w", err)
	}

	var out []domdeal.Deal
	for _, key := range keys {
		data, err := r.store.Get(ctx, key)
		if err != nil {
			continue
		}
		var d domdeal.Deal
		if err := json.Unmarshal(data, &d); err != nil {
			r.logger.Warn("skipping corrupt deal entry", zap.String("key", key), zap.Error(err))
			continue
		}
		if r.match(&d, c) {
			out = append(out, d)
		}
	}
	return out, nil
}

// Upsert writes a deal, merging with any prior sighting of the same
// identity: the incoming fetch wins mutable fields, the earliest FoundAt
// is preserved. Deals are never hard-deleted here; expiry belongs to the
// lifecycle job.
func (r *Repo) Upsert(ctx context.Context, d domdeal.Deal) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("invalid deal: %w", err)
	}

	existing, err := r.Get(ctx, d.Key)
	switch {
	case err == nil:
		if d.FoundAt.After(existing.FoundAt) {
			d.FoundAt = existing.FoundAt
		}
		if !d.LastCheckedAt.After(existing.LastCheckedAt) {
			existing.FoundAt = d.FoundAt
			d = existing
		}
	case errors.Is(err, domain.ErrNotFound):
	default:
		return err
	}

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode deal %s: %w", d.Key, err)
	}
	if err := r.store.Set(ctx, keyPrefix+d.Key, data); err != nil {
		return fmt.Errorf("store deal %s: %w", d.Key, err)
	}
	return nil
}
