package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmloop-backend/pkg/enums"
)

// WasteCategory sets the points a unit of reported waste earns.
type WasteCategory struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name          string    `gorm:"column:name;not null;uniqueIndex"`
	Description   string    `gorm:"column:description;not null;default:''"`
	PointsPerUnit int       `gorm:"column:points_per_unit;not null;default:10"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

// WasteReport is a user's waste submission. PointsAwarded is computed once at
// creation; PointsCreditedAt is set by the single approval that credits them.
type WasteReport struct {
	ID               uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID               `gorm:"column:user_id;type:uuid;not null"`
	CategoryID       *uuid.UUID              `gorm:"column:category_id;type:uuid"`
	WasteType        enums.WasteType         `gorm:"column:waste_type;type:waste_type;not null"`
	Quantity         decimal.Decimal         `gorm:"column:quantity;type:numeric(10,2);not null"`
	Description      string                  `gorm:"column:description;not null;default:''"`
	Location         string                  `gorm:"column:location;not null;default:''"`
	ImageURL         *string                 `gorm:"column:image_url"`
	PointsAwarded    int                     `gorm:"column:points_awarded;not null;default:0"`
	Status           enums.WasteReportStatus `gorm:"column:status;type:waste_report_status;not null;default:'pending'"`
	ReviewedBy       *uuid.UUID              `gorm:"column:reviewed_by;type:uuid"`
	ReviewedAt       *time.Time              `gorm:"column:reviewed_at"`
	RejectionReason  *string                 `gorm:"column:rejection_reason"`
	PointsCreditedAt *time.Time              `gorm:"column:points_credited_at"`
	CreatedAt        time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// WasteCollection schedules and records pickup of an approved report.
type WasteCollection struct {
	ID             uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WasteReportID  uuid.UUID  `gorm:"column:waste_report_id;type:uuid;not null;uniqueIndex"`
	CollectorID    *uuid.UUID `gorm:"column:collector_id;type:uuid"`
	CollectionDate time.Time  `gorm:"column:collection_date;not null"`
	CollectedAt    *time.Time `gorm:"column:collected_at"`
	Notes          string     `gorm:"column:notes;not null;default:''"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
}
