package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmloop-backend/pkg/enums"
)

// Delivery tracks fulfilment of exactly one order.
type Delivery struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	DeliveryPersonID  *uuid.UUID           `gorm:"column:delivery_person_id;type:uuid"`
	Status            enums.DeliveryStatus `gorm:"column:status;type:delivery_status;not null;default:'assigned'"`
	TrackingNumber    string               `gorm:"column:tracking_number;not null;uniqueIndex"`
	EstimatedDelivery *time.Time           `gorm:"column:estimated_delivery"`
	ActualDelivery    *time.Time           `gorm:"column:actual_delivery"`
	Notes             string               `gorm:"column:notes;not null;default:''"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
