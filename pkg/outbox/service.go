package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// Delivery describes one attempt to hand an envelope to the event sink.
type Delivery struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Envelope      PayloadEnvelope
	// Err is the sink failure; nil means the envelope was delivered.
	Err error
}

type Service struct {
	db   *gorm.DB
	repo *Repository
	logg *logger.Logger
}

func NewService(db *gorm.DB, repo *Repository, logg *logger.Logger) *Service {
	return &Service{db: db, repo: repo, logg: logg}
}

// Record stores a delivery attempt after the order transaction has committed.
// Undelivered rows stay unpublished so the outbox publisher can retry them.
func (s *Service) Record(ctx context.Context, d Delivery) error {
	if s == nil || s.db == nil {
		return errors.New("outbox service not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := json.Marshal(d.Envelope)
	if err != nil {
		return err
	}
	row := models.OutboxEvent{
		EventType:     d.EventType,
		AggregateType: d.AggregateType,
		AggregateID:   d.AggregateID,
		Payload:       json.RawMessage(payload),
	}
	if id, parseErr := uuid.Parse(d.Envelope.EventID); parseErr == nil {
		row.ID = id
	}
	if d.Err == nil {
		now := time.Now().UTC()
		row.PublishedAt = &now
	} else {
		msg := d.Err.Error()
		row.LastError = &msg
		row.AttemptCount = 1
	}
	if err := s.repo.Insert(s.db.WithContext(ctx), &row); err != nil {
		return err
	}
	if s.logg != nil {
		fields := map[string]any{
			"event_id":       d.Envelope.EventID,
			"event_type":     d.EventType,
			"aggregate_id":   d.AggregateID.String(),
			"aggregate_type": d.AggregateType,
			"delivered":      d.Err == nil,
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event recorded")
	}
	return nil
}
