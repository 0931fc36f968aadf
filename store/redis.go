package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	receipts "github.com/x402-foundation/receipt-verifier"
)

// DefaultKeyPrefix namespaces progress records in a shared Redis.
const DefaultKeyPrefix = "receipt:"

// getAndUpdateIfGreater runs atomically inside Redis. Values are compared as
// canonical decimal strings because Lua numbers are doubles and would lose
// precision above 2^53.
//
// KEYS[1] progress key, ARGV[1] candidate amount.
// Returns the previous value, or nil when the key does not exist.
var getAndUpdateIfGreater = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
  return false
end
local candidate = ARGV[1]
local clen, plen = string.len(candidate), string.len(current)
if clen > plen or (clen == plen and candidate > current) then
  redis.call('SET', KEYS[1], candidate, 'KEEPTTL')
end
return current
`)

// RedisStore implements receipts.ProgressStore on Redis so several verifier
// instances can share progress. Expiry is handled by Redis key TTLs.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix sets the prefix prepended to every nonce key.
//
// Default: "receipt:"
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.keyPrefix = prefix
	}
}

// NewRedisStore creates a progress store backed by client. The caller owns
// the client and is responsible for closing it.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:    client,
		keyPrefix: DefaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(nonce string) string {
	return s.keyPrefix + nonce
}

// Ensure sets the record with NX so an existing record keeps its value and TTL.
func (s *RedisStore) Ensure(ctx context.Context, nonce string, baseline uint64, ttl time.Duration) error {
	if err := s.client.SetNX(ctx, s.key(nonce), strconv.FormatUint(baseline, 10), ttl).Err(); err != nil {
		return fmt.Errorf("redis: ensure %s: %w", nonce, err)
	}
	return nil
}

// GetAndUpdateIfGreater evaluates the compare-and-set script in one round trip.
func (s *RedisStore) GetAndUpdateIfGreater(ctx context.Context, nonce string, candidate uint64) (uint64, error) {
	res, err := getAndUpdateIfGreater.Run(ctx, s.client, []string{s.key(nonce)}, strconv.FormatUint(candidate, 10)).Text()
	if errors.Is(err, redis.Nil) {
		return 0, receipts.ErrNonceNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("redis: update progress %s: %w", nonce, err)
	}

	previous, err := strconv.ParseUint(res, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("redis: corrupt progress value %q for %s: %w", res, nonce, err)
	}
	return previous, nil
}

// Ensure RedisStore implements ProgressStore
var _ receipts.ProgressStore = (*RedisStore)(nil)
