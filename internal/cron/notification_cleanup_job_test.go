package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/farmloop-backend/pkg/logger"
)

func TestNotificationCleanupJobDeletesExpiredNotifications(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	purger := &fakeNotificationPurger{deletedRows: 42}
	job := newNotificationCleanupJob(t, purger, 0)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	expectedCutoff := now.Add(-defaultNotificationRetention)
	if !purger.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, purger.lastCutoff)
	}
	if purger.called != 1 {
		t.Fatalf("expected purger called once, got %d", purger.called)
	}
}

func TestNotificationCleanupJobHonoursRetention(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	purger := &fakeNotificationPurger{}
	job := newNotificationCleanupJob(t, purger, 48*time.Hour)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := time.Date(2026, 1, 29, 0, 0, 0, 0, time.UTC); !purger.lastCutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, purger.lastCutoff)
	}
}

func TestNotificationCleanupJobPropagatesErrors(t *testing.T) {
	purger := &fakeNotificationPurger{err: errors.New("boom")}
	job := newNotificationCleanupJob(t, purger, 0)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewNotificationCleanupJobRequiresDeps(t *testing.T) {
	if _, err := NewNotificationCleanupJob(NotificationCleanupJobParams{Notifications: &fakeNotificationPurger{}}); err == nil {
		t.Fatal("expected logger error")
	}
	if _, err := NewNotificationCleanupJob(NotificationCleanupJobParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected notifications error")
	}
}

func newNotificationCleanupJob(t *testing.T, purger *fakeNotificationPurger, retention time.Duration) *notificationCleanupJob {
	t.Helper()
	jobIface, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "test"}),
		Notifications: purger,
		Retention:     retention,
	})
	if err != nil {
		t.Fatalf("NewNotificationCleanupJob: %v", err)
	}
	job, ok := jobIface.(*notificationCleanupJob)
	if !ok {
		t.Fatalf("expected notificationCleanupJob, got %T", jobIface)
	}
	return job
}

type fakeNotificationPurger struct {
	lastCutoff  time.Time
	deletedRows int64
	err         error
	called      int
}

func (f *fakeNotificationPurger) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.deletedRows, nil
}
