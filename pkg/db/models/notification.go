package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmloop-backend/pkg/enums"
)

// Notification stores in-app notification payloads per user.
type Notification struct {
	ID        uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID              `gorm:"type:uuid;not null"`
	Type      enums.NotificationType `gorm:"type:notification_type;not null"`
	Title     string                 `gorm:"type:text;not null"`
	Message   string                 `gorm:"type:text;not null"`
	Link      *string                `gorm:"type:text"`
	ReadAt    *time.Time             `gorm:"type:timestamptz"`
	CreatedAt time.Time              `gorm:"type:timestamptz;autoCreateTime"`
}

// NotificationPreference lets a user mute notification types. A missing row
// means everything is enabled.
type NotificationPreference struct {
	UserID          uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	OrderUpdates    bool      `gorm:"column:order_updates;not null;default:true"`
	PaymentUpdates  bool      `gorm:"column:payment_updates;not null;default:true"`
	DeliveryUpdates bool      `gorm:"column:delivery_updates;not null;default:true"`
	RewardUpdates   bool      `gorm:"column:reward_updates;not null;default:true"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Allows reports whether notifications of type t should be delivered.
func (p NotificationPreference) Allows(t enums.NotificationType) bool {
	switch t {
	case enums.NotificationTypeOrder:
		return p.OrderUpdates
	case enums.NotificationTypePayment:
		return p.PaymentUpdates
	case enums.NotificationTypeDelivery:
		return p.DeliveryUpdates
	case enums.NotificationTypeReward:
		return p.RewardUpdates
	default:
		return true
	}
}
