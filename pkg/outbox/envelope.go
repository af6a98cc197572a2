package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CurrentVersion is the envelope version written by this service.
const CurrentVersion = 1

// PayloadEnvelope is the stable payload structure shipped to every sink and stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// NewEnvelope marshals data into a freshly identified envelope.
func NewEnvelope(data any, occurredAt time.Time) (PayloadEnvelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("marshal event data: %w", err)
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	return PayloadEnvelope{
		Version:    CurrentVersion,
		EventID:    uuid.NewString(),
		OccurredAt: occurredAt.UTC(),
		Data:       raw,
	}, nil
}

// DecodeEnvelope parses a stored or received envelope and validates its identity.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if _, err := uuid.Parse(env.EventID); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("invalid event id %q: %w", env.EventID, err)
	}
	if len(env.Data) == 0 {
		return PayloadEnvelope{}, errors.New("envelope data missing")
	}
	return env, nil
}

// EventUUID returns the parsed event id; DecodeEnvelope has already validated it.
func (e PayloadEnvelope) EventUUID() uuid.UUID {
	id, _ := uuid.Parse(e.EventID)
	return id
}
