package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// Job names, also used as metric labels.
const (
	JobOutboxRetention   = "outbox-retention"
	JobDLQRetention      = "outbox-dlq-retention"
	JobEmailLogRetention = "email-log-retention"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PruneFunc deletes rows older than cutoff and returns how many went.
type PruneFunc func(tx *gorm.DB, cutoff time.Time) (int64, error)

type RetentionJobParams struct {
	Name   string
	Logger *logger.Logger
	DB     txRunner
	// Keep is how long rows survive; zero or negative disables the job.
	Keep  time.Duration
	Prune PruneFunc
}

type retentionJob struct {
	name  string
	logg  *logger.Logger
	db    txRunner
	keep  time.Duration
	prune PruneFunc
	now   func() time.Time
}

// NewRetentionJob returns nil without error when Keep disables the job;
// NewService drops nil jobs.
func NewRetentionJob(params RetentionJobParams) (Job, error) {
	if params.Name == "" {
		return nil, errors.New("job name required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.DB == nil {
		return nil, errors.New("db runner required")
	}
	if params.Prune == nil {
		return nil, errors.New("prune func required")
	}
	if params.Keep <= 0 {
		return nil, nil
	}
	return &retentionJob{
		name:  params.Name,
		logg:  params.Logger,
		db:    params.DB,
		keep:  params.Keep,
		prune: params.Prune,
		now:   time.Now,
	}, nil
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.keep)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.prune(tx, cutoff)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", j.name, err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"keep":         j.keep.String(),
		"rows_deleted": deleted,
	}), "retention cleanup complete")
	return deleted, nil
}
