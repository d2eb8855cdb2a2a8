package workqueue

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/graphtriple/pkg/cache"
	"github.com/matzehuels/graphtriple/pkg/errors"
	"github.com/matzehuels/graphtriple/pkg/observability"
)

// DefaultRedisKey is the list items are pushed onto.
const DefaultRedisKey = "graphtriple:workqueue"

type listPusher interface {
	LPush(ctx context.Context, key string, values ...any) *redis.IntCmd
	Close() error
}

// Redis pushes items onto a Redis list. Consumers BRPOP the other end.
type Redis struct {
	client listPusher
	key    string
}

// NewRedis connects lazily to the server at addr.
func NewRedis(addr, key string) *Redis {
	return newRedis(redis.NewClient(&redis.Options{Addr: addr}), key)
}

func newRedis(client listPusher, key string) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key}
}

// Push implements Queue. Connection failures are retried with backoff.
func (r *Redis) Push(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	start := time.Now()
	err := r.push(ctx, items)
	observability.Queue().OnPush(ctx, "redis", len(items), time.Since(start), err)
	return err
}

func (r *Redis) push(ctx context.Context, items []Item) error {
	payloads, err := encode(items)
	if err != nil {
		return err
	}
	values := make([]any, len(payloads))
	for i, p := range payloads {
		values[i] = p
	}
	return cache.RetryWithBackoff(ctx, func() error {
		if err := r.client.LPush(ctx, r.key, values...).Err(); err != nil {
			return cache.Retryable(errors.Wrap(errors.ErrCodeNetwork, err, "push %d items to redis list %s", len(items), r.key))
		}
		return nil
	})
}

// Close implements Queue.
func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Queue = (*Redis)(nil)
