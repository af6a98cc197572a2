// Package redis wraps go-redis with the key layout and the small command set
// checkout relies on: idempotency records, cross-instance locks and the
// list-backed order events queue.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const keyNamespace = "sf"

// ErrQueueEmpty is returned by PopQueue when the wait elapses without a message.
var ErrQueueEmpty = errors.New("redis queue empty")

// compareAndDelete removes KEYS[1] only while it still holds ARGV[1].
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// IdempotencyStore is the surface the HTTP idempotency middleware and the
// consumer deduper need.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Queue is the list-backed queue shared by the redis sink and source.
type Queue interface {
	PushQueue(ctx context.Context, queue string, payload []byte) error
	PopQueue(ctx context.Context, queue string, wait time.Duration) ([]byte, error)
}

type Client struct {
	rdb *redis.Client
}

// New dials Redis from cfg.URL and pings it before returning.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	applyPool(opts, cfg)

	c := Wrap(redis.NewClient(opts))
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"addr": opts.Addr, "db": opts.DB}), "redis connection established")
	}
	return c, nil
}

func applyPool(opts *redis.Options, cfg config.RedisConfig) {
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
}

// Wrap adopts an existing go-redis client; tests use it with miniredis.
func Wrap(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// DeleteIfValue deletes key atomically when its value equals want and
// reports whether it did.
func (c *Client) DeleteIfValue(ctx context.Context, key, want string) (bool, error) {
	n, err := compareAndDelete.Run(ctx, c.rdb, []string{key}, want).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// PushQueue prepends payload; PopQueue takes from the tail, so the list is FIFO.
func (c *Client) PushQueue(ctx context.Context, queue string, payload []byte) error {
	if strings.TrimSpace(queue) == "" {
		return errors.New("queue name is required")
	}
	return c.rdb.LPush(ctx, queue, payload).Err()
}

// PopQueue blocks up to wait for the oldest message.
func (c *Client) PopQueue(ctx context.Context, queue string, wait time.Duration) ([]byte, error) {
	res, err := c.rdb.BRPop(ctx, wait, queue).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrQueueEmpty
	case err != nil:
		return nil, err
	case len(res) != 2:
		return nil, fmt.Errorf("unexpected brpop reply length %d", len(res))
	}
	return []byte(res[1]), nil
}

func (c *Client) IdempotencyKey(scope, id string) string {
	return Key("idempotency", scope, id)
}

func (c *Client) LockKey(name string) string {
	return Key("lock", name)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key joins non-empty parts under the service namespace.
func Key(parts ...string) string {
	key := keyNamespace
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			key += ":" + part
		}
	}
	return key
}
