package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmloop-backend/pkg/enums"
)

// PointsLedgerEntry is an append-only record of one balance change.
type PointsLedgerEntry struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID          `gorm:"column:user_id;type:uuid;not null"`
	Delta         int                `gorm:"column:delta;not null"`
	BalanceAfter  int                `gorm:"column:balance_after;not null"`
	Reason        enums.PointsReason `gorm:"column:reason;type:points_reason;not null"`
	ReferenceType *string            `gorm:"column:reference_type"`
	ReferenceID   *uuid.UUID         `gorm:"column:reference_id;type:uuid"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
}
