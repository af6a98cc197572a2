package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/internal/notifier"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-checkout/pkg/redis"
)

type fakeLock struct {
	held     bool
	released int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.released++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) (int64, error) {
	t.runs++
	return 1, t.err
}

func discardLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	lock := &fakeLock{}
	service, err := NewService(ServiceParams{
		Logger: discardLogger(),
		Jobs:   []Job{success, failure},
		Lock:   lock,
	})
	require.NoError(t, err)

	require.NoError(t, service.runCycle(context.Background()))
	require.Equal(t, 1, success.runs)
	require.Equal(t, 1, failure.runs)
	require.Equal(t, 1, lock.released)
}

func TestServiceRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "outbox"}
	service, err := NewService(ServiceParams{
		Logger: discardLogger(),
		Jobs:   []Job{job},
		Lock:   &fakeLock{held: true},
	})
	require.NoError(t, err)

	require.NoError(t, service.runCycle(context.Background()))
	require.Zero(t, job.runs)
}

func TestRedisLockIsExclusiveAndOwnerChecked(t *testing.T) {
	srv := miniredis.RunT(t)
	client := pkgredis.Wrap(redis.NewClient(&redis.Options{Addr: srv.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()
	key := client.LockKey("retention:test")

	first, err := NewRedisLock(client, key, time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(client, key, time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, second.Release(ctx))
	require.True(t, srv.Exists(key), "non-owner must not release the lock")

	require.NoError(t, first.Release(ctx))
	require.False(t, srv.Exists(key))

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRetentionJobPrunesEmailLogsPastCutoff(t *testing.T) {
	conn := dbtest.Open(t)
	now := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	for _, created := range []time.Time{now.AddDate(0, 0, -100), now.AddDate(0, 0, -1)} {
		require.NoError(t, conn.Create(&models.EmailLog{
			Type:      enums.EmailTypeOrderConfirmation,
			Status:    enums.EmailStatusSent,
			CreatedAt: created,
		}).Error)
	}

	var cutoff time.Time
	job, err := NewRetentionJob(RetentionJobParams{
		Name:   JobEmailLogRetention,
		Logger: discardLogger(),
		DB:     db.NewFromConn(conn),
		Keep:   90 * 24 * time.Hour,
		Prune: func(tx *gorm.DB, c time.Time) (int64, error) {
			cutoff = c
			return notifier.DeleteEmailLogsBefore(tx, c)
		},
	})
	require.NoError(t, err)
	job.(*retentionJob).now = func() time.Time { return now }

	rows, err := job.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), rows)
	require.Equal(t, now.Add(-90*24*time.Hour), cutoff)

	var remaining int64
	require.NoError(t, conn.Model(&models.EmailLog{}).Count(&remaining).Error)
	require.Equal(t, int64(1), remaining)
}

func TestRetentionJobDisabledByZeroKeep(t *testing.T) {
	job, err := NewRetentionJob(RetentionJobParams{
		Name:   JobDLQRetention,
		Logger: discardLogger(),
		DB:     db.NewFromConn(dbtest.Open(t)),
		Prune:  func(*gorm.DB, time.Time) (int64, error) { return 0, nil },
	})
	require.NoError(t, err)
	require.Nil(t, job)

	service, err := NewService(ServiceParams{Logger: discardLogger(), Lock: &fakeLock{}, Jobs: []Job{job}})
	require.NoError(t, err)
	require.Empty(t, service.JobNames())
}

func TestRetentionJobWrapsPruneError(t *testing.T) {
	job, err := NewRetentionJob(RetentionJobParams{
		Name:   JobOutboxRetention,
		Logger: discardLogger(),
		DB:     db.NewFromConn(dbtest.Open(t)),
		Keep:   time.Hour,
		Prune:  func(*gorm.DB, time.Time) (int64, error) { return 0, errors.New("locked") },
	})
	require.NoError(t, err)

	_, err = job.Run(context.Background())
	require.ErrorContains(t, err, JobOutboxRetention)
}

func TestNewServiceKeepsJobOrderAndDropsNil(t *testing.T) {
	service, err := NewService(ServiceParams{
		Logger: discardLogger(),
		Lock:   &fakeLock{},
		Jobs:   []Job{&testJob{name: "a"}, nil, &testJob{name: "b"}},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, service.JobNames())
	require.Equal(t, defaultInterval, service.interval)
}
