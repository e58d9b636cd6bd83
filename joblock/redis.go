package joblock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker backed by SET NX with expiry.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis creates a Redis locker. Keys are stored as prefix + name.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "rentledger:lock:"
	}
	return &Redis{client: client, prefix: prefix}
}

// Acquire implements Locker.
func (r *Redis) Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	key := r.prefix + name
	token := newToken()

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("joblock: acquire %s: %w", name, err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return &redisLease{client: r.client, key: key, token: token}, nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

type redisLease struct {
	client redis.UniversalClient
	key    string
	token  string
}

func (l *redisLease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("joblock: release %s: %w", l.key, err)
	}
	return nil
}
