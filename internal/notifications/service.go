package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmloop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/farmloop-backend/pkg/errors"
	"github.com/angelmondragon/farmloop-backend/pkg/pagination"
)

// Service defines notification list/read operations.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	GetPreferences(ctx context.Context, userID uuid.UUID) (*Preferences, error)
	UpdatePreferences(ctx context.Context, userID uuid.UUID, input UpdatePreferencesInput) (*Preferences, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// ListParams configures pagination for notifications.
type ListParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items       []models.Notification `json:"items"`
	Cursor      string                `json:"cursor"`
	UnreadCount int64                 `json:"unread_count"`
}

// Preferences are the per-type switches a user controls.
type Preferences struct {
	OrderUpdates    bool `json:"order_updates"`
	PaymentUpdates  bool `json:"payment_updates"`
	DeliveryUpdates bool `json:"delivery_updates"`
	RewardUpdates   bool `json:"reward_updates"`
}

// UpdatePreferencesInput changes only the switches that are set.
type UpdatePreferencesInput struct {
	OrderUpdates    *bool `json:"order_updates,omitempty"`
	PaymentUpdates  *bool `json:"payment_updates,omitempty"`
	DeliveryUpdates *bool `json:"delivery_updates,omitempty"`
	RewardUpdates   *bool `json:"reward_updates,omitempty"`
}

// NewService wires notifications dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.Page(ctx, pageQuery{
		UserID:     params.UserID,
		UnreadOnly: params.UnreadOnly,
		Cursor:     cursor,
		Limit:      params.Limit,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	unread, err := s.repo.UnreadCount(ctx, params.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}

	rows, next := pagination.Trim(rows, params.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	if rows == nil {
		rows = []models.Notification{}
	}

	return &ListResult{
		Items:       rows,
		Cursor:      next,
		UnreadCount: unread,
	}, nil
}

func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	owned, err := s.repo.MarkRead(ctx, userID, notificationID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !owned {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	count, err := s.repo.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}

func (s *service) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}
	return count, nil
}

// DeleteOlderThan purges read notifications created before cutoff.
func (s *service) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if cutoff.IsZero() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "cutoff required")
	}
	count, err := s.repo.DeleteReadOlderThan(ctx, cutoff.UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete old notifications")
	}
	return count, nil
}

func (s *service) GetPreferences(ctx context.Context, userID uuid.UUID) (*Preferences, error) {
	prefs, err := loadPreferences(ctx, s.repo, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load notification preferences")
	}
	return toPreferences(prefs), nil
}

func (s *service) UpdatePreferences(ctx context.Context, userID uuid.UUID, input UpdatePreferencesInput) (*Preferences, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	prefs, err := loadPreferences(ctx, s.repo, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load notification preferences")
	}
	if input.OrderUpdates != nil {
		prefs.OrderUpdates = *input.OrderUpdates
	}
	if input.PaymentUpdates != nil {
		prefs.PaymentUpdates = *input.PaymentUpdates
	}
	if input.DeliveryUpdates != nil {
		prefs.DeliveryUpdates = *input.DeliveryUpdates
	}
	if input.RewardUpdates != nil {
		prefs.RewardUpdates = *input.RewardUpdates
	}
	prefs.UpdatedAt = s.now()
	if err := s.repo.UpsertPreferences(ctx, prefs); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store notification preferences")
	}
	return toPreferences(prefs), nil
}

// loadPreferences returns the stored row or the all-enabled default.
func loadPreferences(ctx context.Context, repo Repository, userID uuid.UUID) (*models.NotificationPreference, error) {
	prefs, err := repo.FindPreferences(ctx, userID)
	if err == nil {
		return prefs, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.NotificationPreference{
			UserID:          userID,
			OrderUpdates:    true,
			PaymentUpdates:  true,
			DeliveryUpdates: true,
			RewardUpdates:   true,
		}, nil
	}
	return nil, err
}

func toPreferences(p *models.NotificationPreference) *Preferences {
	return &Preferences{
		OrderUpdates:    p.OrderUpdates,
		PaymentUpdates:  p.PaymentUpdates,
		DeliveryUpdates: p.DeliveryUpdates,
		RewardUpdates:   p.RewardUpdates,
	}
}
