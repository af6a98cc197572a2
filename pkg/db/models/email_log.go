package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// EmailLog records every notification attempt made by the email notifier.
type EmailLog struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	EventID      *uuid.UUID        `gorm:"column:event_id;type:uuid"`
	Type         enums.EmailType   `gorm:"column:type;not null"`
	OrderNumber  *string           `gorm:"column:order_number"`
	Recipient    *string           `gorm:"column:recipient"`
	Subject      *string           `gorm:"column:subject"`
	Payload      json.RawMessage   `gorm:"column:payload;type:jsonb"`
	Status       enums.EmailStatus `gorm:"column:status;not null"`
	ErrorMessage *string           `gorm:"column:error_message"`
	SentAt       *time.Time        `gorm:"column:sent_at"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (EmailLog) TableName() string { return "email_logs" }

func (e *EmailLog) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return errors.Join(
		enums.Validate("email type", e.Type),
		enums.Validate("email status", e.Status),
	)
}
