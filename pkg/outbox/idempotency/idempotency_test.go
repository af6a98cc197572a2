package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

const consumer = "order-confirmation"

type recordingStore struct {
	claimed bool
	err     error
	key     string
	value   any
	ttl     time.Duration
}

func (s *recordingStore) Get(context.Context, string) (string, error) { return "", nil }

func (s *recordingStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.key, s.value, s.ttl = key, value, ttl
	return s.claimed, s.err
}

func (s *recordingStore) Del(context.Context, ...string) error { return nil }

func (s *recordingStore) IdempotencyKey(scope, id string) string {
	return "sf:idempotency:" + scope + ":" + id
}

func TestClaimWritesScopedKeyWithTTL(t *testing.T) {
	store := &recordingStore{claimed: true}
	dedup, err := NewDeduper(store, 24*time.Hour)
	require.NoError(t, err)
	dedup.now = func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) }

	eventID := uuid.New()
	first, err := dedup.Claim(context.Background(), consumer, eventID)
	require.NoError(t, err)
	assert.True(t, first)
	assert.Equal(t, "sf:idempotency:evt:"+consumer+":"+eventID.String(), store.key)
	assert.Equal(t, "2026-10-16T12:00:00Z", store.value)
	assert.Equal(t, 24*time.Hour, store.ttl)
}

func TestClaimPropagatesStoreError(t *testing.T) {
	dedup, err := NewDeduper(&recordingStore{err: errors.New("boom")}, time.Hour)
	require.NoError(t, err)
	_, err = dedup.Claim(context.Background(), consumer, uuid.New())
	assert.EqualError(t, err, "boom")
}

func TestClaimRequiresIdentity(t *testing.T) {
	dedup, err := NewDeduper(&recordingStore{claimed: true}, time.Hour)
	require.NoError(t, err)
	_, err = dedup.Claim(context.Background(), "", uuid.New())
	assert.Error(t, err)
	_, err = dedup.Claim(context.Background(), consumer, uuid.Nil)
	assert.Error(t, err)
}

func TestNewDeduperValidation(t *testing.T) {
	_, err := NewDeduper(nil, time.Hour)
	assert.Error(t, err)
	_, err = NewDeduper(&recordingStore{}, -time.Second)
	assert.Error(t, err)
}

func TestDeduperAgainstRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: srv.Addr()}))
	t.Cleanup(func() { _ = client.Close() })

	dedup, err := NewDeduper(client, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.New()

	first, err := dedup.Claim(ctx, consumer, eventID)
	require.NoError(t, err)
	require.True(t, first)

	first, err = dedup.Claim(ctx, consumer, eventID)
	require.NoError(t, err)
	require.False(t, first, "redelivery must be detected")
	assert.Equal(t, time.Hour, srv.TTL(client.IdempotencyKey("evt:"+consumer, eventID.String())))

	require.NoError(t, dedup.Release(ctx, consumer, eventID))
	first, err = dedup.Claim(ctx, consumer, eventID)
	require.NoError(t, err)
	assert.True(t, first, "released claim allows reprocessing")
}
