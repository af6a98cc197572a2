package notifier

import (
	"context"
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"gorm.io/gorm"
)

// Repository persists email log rows.
type Repository interface {
	Create(ctx context.Context, entry *models.EmailLog) error
	ListByOrderNumber(ctx context.Context, orderNumber string) ([]models.EmailLog, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns an email log repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Create(ctx context.Context, entry *models.EmailLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repositoryImpl) ListByOrderNumber(ctx context.Context, orderNumber string) ([]models.EmailLog, error) {
	var rows []models.EmailLog
	err := r.db.WithContext(ctx).
		Where("order_number = ?", orderNumber).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// DeleteEmailLogsBefore prunes log rows created before cutoff.
func DeleteEmailLogsBefore(tx *gorm.DB, cutoff time.Time) (int64, error) {
	res := tx.Where("created_at < ?", cutoff).Delete(&models.EmailLog{})
	return res.RowsAffected, res.Error
}
