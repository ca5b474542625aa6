package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmloop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/farmloop-backend/pkg/errors"
	paginationpkg "github.com/angelmondragon/farmloop-backend/pkg/pagination"
)

type fakeRepository struct {
	pageFn        func(ctx context.Context, q pageQuery) ([]models.Notification, error)
	markReadFn    func(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (bool, error)
	markAllReadFn func(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
	deleteFn      func(ctx context.Context, cutoff time.Time) (int64, error)
	unread        int64
	prefs         *models.NotificationPreference
	saved         *models.NotificationPreference
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, notification *models.Notification) error {
	return nil
}

func (f *fakeRepository) Page(ctx context.Context, q pageQuery) ([]models.Notification, error) {
	if f.pageFn != nil {
		return f.pageFn(ctx, q)
	}
	return nil, nil
}

func (f *fakeRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (bool, error) {
	if f.markReadFn != nil {
		return f.markReadFn(ctx, userID, notificationID, now)
	}
	return false, nil
}

func (f *fakeRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	if f.markAllReadFn != nil {
		return f.markAllReadFn(ctx, userID, now)
	}
	return 0, nil
}

func (f *fakeRepository) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return f.unread, nil
}

func (f *fakeRepository) DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, cutoff)
	}
	return 0, nil
}

func (f *fakeRepository) FindPreferences(ctx context.Context, userID uuid.UUID) (*models.NotificationPreference, error) {
	if f.prefs == nil {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *f.prefs
	return &copied, nil
}

func (f *fakeRepository) UpsertPreferences(ctx context.Context, prefs *models.NotificationPreference) error {
	f.saved = prefs
	return nil
}

func newServiceWithRepo(repo Repository) Service {
	svc, _ := NewService(repo)
	return svc
}

func TestService_ListNotifications(t *testing.T) {
	first := models.Notification{ID: uuid.New(), CreatedAt: time.Now()}
	lookahead := models.Notification{ID: uuid.New(), CreatedAt: first.CreatedAt.Add(-time.Minute)}

	repo := &fakeRepository{
		unread: 4,
		pageFn: func(ctx context.Context, q pageQuery) ([]models.Notification, error) {
			if q.Limit != 1 {
				t.Fatalf("unexpected limit %d", q.Limit)
			}
			return []models.Notification{first, lookahead}, nil
		},
	}

	svc := newServiceWithRepo(repo)
	result, err := svc.List(context.Background(), ListParams{UserID: uuid.New(), Limit: 1})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(result.Items))
	}
	if result.UnreadCount != 4 {
		t.Fatalf("expected unread count 4, got %d", result.UnreadCount)
	}
	decoded, err := paginationpkg.ParseCursor(result.Cursor)
	if err != nil {
		t.Fatalf("invalid cursor %q: %v", result.Cursor, err)
	}
	if decoded.ID != first.ID {
		t.Fatalf("expected cursor id %s got %s", first.ID, decoded.ID)
	}
}

func TestService_ListNotificationsInvalidCursor(t *testing.T) {
	svc := newServiceWithRepo(&fakeRepository{})
	_, err := svc.List(context.Background(), ListParams{UserID: uuid.New(), Cursor: "bad"})
	if err == nil {
		t.Fatal("expected error for invalid cursor")
	}
	errCode := pkgerrors.As(err).Code()
	if errCode != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %s", errCode)
	}
}

func TestService_MarkRead(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (bool, error) {
			return true, nil
		},
	}
	svc := newServiceWithRepo(repo)
	if err := svc.MarkRead(context.Background(), uuid.New(), uuid.New()); err != nil {
		t.Fatalf("unexpected mark read error: %v", err)
	}
}

func TestService_MarkReadNotFound(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (bool, error) {
			return false, nil
		},
	}
	svc := newServiceWithRepo(repo)
	if err := svc.MarkRead(context.Background(), uuid.New(), uuid.New()); err == nil {
		t.Fatal("expected not found error")
	} else if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestService_MarkAllReadError(t *testing.T) {
	repo := &fakeRepository{
		markAllReadFn: func(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
			return 0, errors.New("boom")
		},
	}
	svc := newServiceWithRepo(repo)
	if _, err := svc.MarkAllRead(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error")
	}
}

func TestService_DeleteOlderThan(t *testing.T) {
	cutoff := time.Now().Add(-720 * time.Hour)
	repo := &fakeRepository{
		deleteFn: func(ctx context.Context, got time.Time) (int64, error) {
			if !got.Equal(cutoff) {
				t.Fatalf("expected cutoff %v, got %v", cutoff, got)
			}
			return 7, nil
		},
	}
	svc := newServiceWithRepo(repo)
	deleted, err := svc.DeleteOlderThan(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if deleted != 7 {
		t.Fatalf("expected 7 deleted rows, got %d", deleted)
	}
	if _, err := svc.DeleteOlderThan(context.Background(), time.Time{}); err == nil {
		t.Fatal("expected validation error for zero cutoff")
	}
}

func TestService_UpdatePreferencesMergesDefaults(t *testing.T) {
	repo := &fakeRepository{}
	svc := newServiceWithRepo(repo)
	off := false

	prefs, err := svc.UpdatePreferences(context.Background(), uuid.New(), UpdatePreferencesInput{RewardUpdates: &off})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if prefs.RewardUpdates {
		t.Fatal("expected reward updates disabled")
	}
	if !prefs.OrderUpdates || !prefs.PaymentUpdates || !prefs.DeliveryUpdates {
		t.Fatalf("expected other switches to stay enabled, got %+v", prefs)
	}
	if repo.saved == nil || repo.saved.RewardUpdates {
		t.Fatal("expected preferences to be persisted")
	}
}
