package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key prefixes partitioning the shared KV namespace. There is no ownership
// beyond this naming discipline; any request asserting the right email or
// session scope may mutate a key.
const (
	KeyPrefixShield  = "shield:"
	KeyPrefixHash    = "hash:"
	KeyPrefixSession = "sess:"
)

// ShieldKey returns the KV key holding the one-time shield for an email.
func ShieldKey(email string) string { return KeyPrefixShield + email }

// PendingHashKey returns the KV key holding a pending-registration hash.
func PendingHashKey(email string) string { return KeyPrefixHash + email }

// SessionKey returns the KV key holding a session record.
func SessionKey(id string) string { return KeyPrefixSession + id }

// compareAndDeleteScript deletes a key only when its value matches, in one
// round trip. GET and DEL issued separately would let two concurrent
// verification attempts both pass the comparison before either deletes,
// double-spending a one-time token.
var compareAndDeleteScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisKVRepo implements the KVRepository port using Redis.
type RedisKVRepo struct {
	client redis.UniversalClient
}

// NewRedisKVRepo creates a new RedisKVRepo with the given Redis client.
func NewRedisKVRepo(client redis.UniversalClient) *RedisKVRepo {
	return &RedisKVRepo{client: client}
}

// Set stores a value in Redis with the given key and TTL, overwriting any
// prior value.
func (r *RedisKVRepo) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	return r.client.Set(ctx, key, value, ttl).Err()
}

// Get retrieves a value from Redis by key. A missing key and an expired key
// are indistinguishable; both return nil.
func (r *RedisKVRepo) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, errors.New("key cannot be empty")
	}

	result, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	return []byte(result), nil
}

// Delete removes a key from Redis.
func (r *RedisKVRepo) Delete(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("key cannot be empty")
	}

	result, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis del: %w", err)
	}

	return result > 0, nil
}

// Exists checks if a key exists in Redis.
func (r *RedisKVRepo) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("key cannot be empty")
	}

	result, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}

	return result > 0, nil
}

// SetTTL updates the TTL for an existing key in Redis. Used to slide session
// expiry on access.
func (r *RedisKVRepo) SetTTL(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, errors.New("key cannot be empty")
	}

	result, err := r.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis expire: %w", err)
	}

	return result, nil
}

// CompareAndDelete atomically deletes the key when its value equals expected.
// Runs as a single Lua EVAL so no other command can interleave between the
// comparison and the delete.
func (r *RedisKVRepo) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	if key == "" {
		return false, errors.New("key cannot be empty")
	}

	result, err := compareAndDeleteScript.Run(ctx, r.client, []string{key}, string(expected)).Int64()
	if err != nil {
		return false, fmt.Errorf("redis compare-and-delete: %w", err)
	}

	return result > 0, nil
}

// Health checks the health of the Redis connection.
func (r *RedisKVRepo) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
