package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/farmloop-backend/pkg/db/models"
	"github.com/angelmondragon/farmloop-backend/pkg/pagination"
)

// Repository is the notification store. Every read and write except the
// retention sweep is scoped to a single recipient.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	// Page returns up to LimitWithBuffer(q.Limit) rows so the caller can trim.
	Page(ctx context.Context, q pageQuery) ([]models.Notification, error)
	// MarkRead reports whether the recipient owns the notification.
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	FindPreferences(ctx context.Context, userID uuid.UUID) (*models.NotificationPreference, error)
	UpsertPreferences(ctx context.Context, prefs *models.NotificationPreference) error
}

type pageQuery struct {
	UserID     uuid.UUID
	UnreadOnly bool
	Cursor     *pagination.Cursor
	Limit      int
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{db: tx}
}

// inbox scopes a query to one recipient, optionally unread only.
func inbox(userID uuid.UUID, unreadOnly bool) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Where("user_id = ?", userID)
		if unreadOnly {
			db = db.Where("read_at IS NULL")
		}
		return db
	}
}

func (r *gormRepository) notifications(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{})
}

func (r *gormRepository) Create(ctx context.Context, n *models.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *gormRepository) Page(ctx context.Context, q pageQuery) ([]models.Notification, error) {
	var rows []models.Notification
	err := r.notifications(ctx).
		Scopes(inbox(q.UserID, q.UnreadOnly), pagination.Newest(q.Cursor, q.Limit)).
		Find(&rows).Error
	return rows, err
}

func (r *gormRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, at time.Time) (bool, error) {
	res := r.notifications(ctx).
		Scopes(inbox(userID, true)).
		Where("id = ?", notificationID).
		UpdateColumn("read_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	// already read, or not this user's
	var owned int64
	err := r.notifications(ctx).Scopes(inbox(userID, false)).Where("id = ?", notificationID).Count(&owned).Error
	return owned > 0, err
}

func (r *gormRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	res := r.notifications(ctx).Scopes(inbox(userID, true)).UpdateColumn("read_at", at)
	return res.RowsAffected, res.Error
}

func (r *gormRepository) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.notifications(ctx).Scopes(inbox(userID, true)).Count(&n).Error
	return n, err
}

// DeleteReadOlderThan never touches unread rows, whatever their age.
func (r *gormRepository) DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("read_at IS NOT NULL").
		Where("created_at < ?", cutoff).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}

func (r *gormRepository) FindPreferences(ctx context.Context, userID uuid.UUID) (*models.NotificationPreference, error) {
	var prefs models.NotificationPreference
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&prefs).Error; err != nil {
		return nil, err
	}
	return &prefs, nil
}

var preferenceColumns = []string{"order_updates", "payment_updates", "delivery_updates", "reward_updates", "updated_at"}

func (r *gormRepository) UpsertPreferences(ctx context.Context, prefs *models.NotificationPreference) error {
	// Select("*") so false switches are written instead of falling back to column defaults.
	return r.db.WithContext(ctx).
		Select("*").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns(preferenceColumns),
		}).
		Create(prefs).Error
}
