// Package registry describes every outbox event type checkout emits: which
// aggregate it belongs to and how each envelope version decodes.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox/payloads"
)

type decodeFunc func(json.RawMessage) (any, error)

// EventDescriptor ties an event type to its aggregate.
type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	versions      map[int]decodeFunc
}

// ResolvedEvent is an outbox row with its envelope and typed payload decoded.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// Registry is immutable once built, so it is safe to share between
// publisher goroutines and consumers.
type Registry struct {
	events map[enums.OutboxEventType]EventDescriptor
}

// New returns the registry of events this service emits.
func New() *Registry {
	r := &Registry{events: map[enums.OutboxEventType]EventDescriptor{}}
	r.add(enums.EventOrderCreated, enums.AggregateOrder, map[int]decodeFunc{
		1: decodeAs[payloads.OrderCreatedEvent],
	})
	return r
}

func (r *Registry) add(eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, versions map[int]decodeFunc) {
	r.events[eventType] = EventDescriptor{EventType: eventType, AggregateType: aggregate, versions: versions}
}

// Decode parses data written under the given envelope version.
func (r *Registry) Decode(eventType enums.OutboxEventType, version int, data json.RawMessage) (any, error) {
	desc, ok := r.events[eventType]
	if !ok {
		return nil, fmt.Errorf("unknown event type %s", eventType)
	}
	decode, ok := desc.versions[version]
	if !ok {
		return nil, fmt.Errorf("no decoder for %s v%d", eventType, version)
	}
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, fmt.Errorf("%s payload is empty", eventType)
	}
	return decode(data)
}

// Resolve checks an outbox row against its descriptor and decodes it. Every
// failure is permanent: retrying the same row cannot fix it.
func (r *Registry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.events[event.EventType]
	switch {
	case !ok:
		return nil, Permanent(fmt.Errorf("unknown event type %s", event.EventType))
	case desc.AggregateType != event.AggregateType:
		return nil, Permanent(fmt.Errorf("%s belongs to %s, row says %s", event.EventType, desc.AggregateType, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, Permanent(errors.New("aggregate_id missing"))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, Permanent(err)
	}
	payload, err := r.Decode(event.EventType, envelope.Version, envelope.Data)
	if err != nil {
		return nil, Permanent(err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}

func decodeAs[T any](data json.RawMessage) (any, error) {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as one the publisher must dead-letter instead of retry.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}
