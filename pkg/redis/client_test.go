package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-checkout/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := Wrap(redis.NewClient(&redis.Options{Addr: srv.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestQueueIsFIFO(t *testing.T) {
	client, srv := newTestClient(t)
	ctx := context.Background()

	for _, msg := range []string{"first", "second"} {
		require.NoError(t, client.PushQueue(ctx, "order-events", []byte(msg)))
	}
	items, err := srv.List("order-events")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	got, err := client.PopQueue(ctx, "order-events", 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))

	got, err = client.PopQueue(ctx, "order-events", 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	_, err = client.PopQueue(ctx, "order-events", 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestPushQueueRequiresName(t *testing.T) {
	client, _ := newTestClient(t)
	assert.Error(t, client.PushQueue(context.Background(), " ", []byte("x")))
}

func TestDeleteIfValueChecksOwner(t *testing.T) {
	client, srv := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, srv.Set("sf:lock:x", "owner-a"))

	deleted, err := client.DeleteIfValue(ctx, "sf:lock:x", "owner-b")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.True(t, srv.Exists("sf:lock:x"))

	deleted, err = client.DeleteIfValue(ctx, "sf:lock:x", "owner-a")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, srv.Exists("sf:lock:x"))
}

func TestSetNXAndGet(t *testing.T) {
	client, srv := newTestClient(t)
	ctx := context.Background()

	ok, err := client.SetNX(ctx, "k", "v1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = client.SetNX(ctx, "k", "v2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", got)
	assert.Equal(t, time.Minute, srv.TTL("k"))

	require.NoError(t, client.Del(ctx, "k"))
	_, err = client.Get(ctx, "k")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestKeyLayout(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "sf:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "sf:lock:retention:prod", client.LockKey("retention:prod"))
	assert.Equal(t, "sf:idempotency:scope", client.IdempotencyKey("scope", " "))
	assert.Equal(t, "sf", Key())
}

func TestNewAppliesURLAndPool(t *testing.T) {
	srv := miniredis.RunT(t)
	client, err := New(context.Background(), config.RedisConfig{URL: "redis://" + srv.Addr() + "/3", PoolSize: 4}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	assert.Equal(t, 3, client.rdb.Options().DB)
	assert.Equal(t, 4, client.rdb.Options().PoolSize)

	_, err = New(context.Background(), config.RedisConfig{}, nil)
	assert.Error(t, err)
}
