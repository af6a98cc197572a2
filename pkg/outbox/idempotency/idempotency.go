// Package idempotency lets event consumers handle each outbox event once.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

// Deduper claims event IDs per consumer with SETNX. Claims live under
// sf:idempotency:evt:<consumer>:<event_id> and expire after ttl; a zero ttl
// keeps them forever.
type Deduper struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	now   func() time.Time
}

func NewDeduper(store redis.IdempotencyStore, ttl time.Duration) (*Deduper, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Deduper{store: store, ttl: ttl, now: time.Now}, nil
}

// Claim reports true when this call is the first to see eventID for consumer.
// The claim value is the claim time, for debugging stuck deliveries.
func (d *Deduper) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := d.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	return d.store.SetNX(ctx, key, d.now().UTC().Format(time.RFC3339Nano), d.ttl)
}

// Release drops a claim so a redelivery of a failed event is handled again.
func (d *Deduper) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := d.key(consumer, eventID)
	if err != nil {
		return err
	}
	return d.store.Del(ctx, key)
}

func (d *Deduper) key(consumer string, eventID uuid.UUID) (string, error) {
	switch {
	case consumer == "":
		return "", errors.New("consumer name is required")
	case eventID == uuid.Nil:
		return "", errors.New("event id is required")
	}
	return d.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
