package db

import (
	"context"
	"time"
)

// Store is the key-value store facade. Consumers depend on the narrow
// sub-interfaces, not on Store itself.
type Store interface {
	Pinger
	KVStore
	CASStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
}

// CASStore provides the compare-and-swap used for generation-checked writes.
type CASStore interface {
	GetInt64(ctx context.Context, key string) (int64, error)
	// SetIfGeneration writes value under key with ttl only if the integer at
	// genKey still equals gen. Returns false without writing otherwise.
	SetIfGeneration(ctx context.Context, key string, value []byte, ttl time.Duration, genKey string, gen int64) (bool, error)
}
