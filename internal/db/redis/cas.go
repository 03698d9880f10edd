package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/dealhound-cloud/dealhound/internal/db"
)

// setIfGenerationScript writes KEYS[1] only while the generation counter at
// KEYS[2] still equals ARGV[2]. A missing counter is treated as generation 0.
var setIfGenerationScript = rueidis.NewLuaScript(`
local gen = redis.call('GET', KEYS[2])
if not gen then gen = '0' end
if gen ~= ARGV[2] then return 0 end
if tonumber(ARGV[3]) > 0 then
  redis.call('SET', KEYS[1], ARGV[1], 'EX', ARGV[3])
else
  redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// GetInt64 reads an integer value; a missing key reads as 0.
func (s *Store) GetInt64(ctx context.Context, key string) (int64, error) {
	cmd := s.b().Get().Key(key).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return 0, nil
		}
		return 0, &db.Error{Op: db.OpGet, Err: err}
	}
	return n, nil
}

// SetIfGeneration atomically writes value under key iff the counter at genKey
// still equals gen. Returns false without writing when the generation moved.
func (s *Store) SetIfGeneration(
	ctx context.Context, key string, value []byte, ttl time.Duration, genKey string, gen int64,
) (bool, error) {
	ttlSec := int64(ttl / time.Second)
	res := setIfGenerationScript.Exec(ctx, s.client,
		[]string{key, genKey},
		[]string{string(value), strconv.FormatInt(gen, 10), strconv.FormatInt(ttlSec, 10)},
	)
	n, err := res.AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpEval, Err: err}
	}
	return n == 1, nil
}
