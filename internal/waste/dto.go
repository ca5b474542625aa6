package waste

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmloop-backend/internal/users"
	"github.com/angelmondragon/farmloop-backend/pkg/db/models"
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
)

// SubmitInput is a new waste report. CategoryID overrides the per-type rate.
type SubmitInput struct {
	CategoryID  *uuid.UUID      `json:"category_id,omitempty"`
	WasteType   enums.WasteType `json:"waste_type" validate:"required,enum"`
	Quantity    decimal.Decimal `json:"quantity"`
	Location    string          `json:"location" validate:"max=200"`
	Description string          `json:"description" validate:"max=2000"`
	ImageURL    *string         `json:"image_url,omitempty" validate:"omitempty,url"`
}

// RejectInput carries the reviewer's reason.
type RejectInput struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// ScheduleInput books a pickup for an approved report.
type ScheduleInput struct {
	CollectorID    *uuid.UUID `json:"collector_id,omitempty"`
	CollectionDate time.Time  `json:"collection_date" validate:"required"`
	Notes          string     `json:"notes" validate:"max=1000"`
}

// CollectedInput closes a collection. A nil CollectedAt means now.
type CollectedInput struct {
	CollectedAt *time.Time `json:"collected_at,omitempty"`
}

// ReportDTO is the public shape of a waste report.
type ReportDTO struct {
	ID              uuid.UUID               `json:"id"`
	UserID          uuid.UUID               `json:"user_id"`
	CategoryID      *uuid.UUID              `json:"category_id,omitempty"`
	WasteType       enums.WasteType         `json:"waste_type"`
	Quantity        decimal.Decimal         `json:"quantity"`
	Description     string                  `json:"description,omitempty"`
	Location        string                  `json:"location,omitempty"`
	ImageURL        *string                 `json:"image_url,omitempty"`
	PointsAwarded   int                     `json:"points_awarded"`
	Status          enums.WasteReportStatus `json:"status"`
	ReviewedAt      *time.Time              `json:"reviewed_at,omitempty"`
	RejectionReason *string                 `json:"rejection_reason,omitempty"`
	PointsCredited  bool                    `json:"points_credited"`
	CreatedAt       time.Time               `json:"created_at"`
}

// ReportList is one cursor page of reports.
type ReportList struct {
	Reports    []ReportDTO `json:"reports"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// CategoryDTO is a waste category and its rate.
type CategoryDTO struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	PointsPerUnit int       `json:"points_per_unit"`
}

// CollectionDTO is the public shape of a scheduled pickup.
type CollectionDTO struct {
	ID             uuid.UUID  `json:"id"`
	WasteReportID  uuid.UUID  `json:"waste_report_id"`
	CollectorID    *uuid.UUID `json:"collector_id,omitempty"`
	CollectionDate time.Time  `json:"collection_date"`
	CollectedAt    *time.Time `json:"collected_at,omitempty"`
	Notes          string     `json:"notes,omitempty"`
}

// Stats summarises a user's reporting activity.
type Stats struct {
	TotalReports     int                             `json:"total_reports"`
	ByStatus         map[enums.WasteReportStatus]int `json:"by_status"`
	ApprovedQuantity decimal.Decimal                 `json:"approved_quantity"`
	PointsEarned     int                             `json:"points_earned"`
	PendingPoints    int                             `json:"pending_points"`
	Impact           users.Impact                    `json:"impact"`
}

func toReportDTO(r *models.WasteReport) *ReportDTO {
	return &ReportDTO{
		ID:              r.ID,
		UserID:          r.UserID,
		CategoryID:      r.CategoryID,
		WasteType:       r.WasteType,
		Quantity:        r.Quantity,
		Description:     r.Description,
		Location:        r.Location,
		ImageURL:        r.ImageURL,
		PointsAwarded:   r.PointsAwarded,
		Status:          r.Status,
		ReviewedAt:      r.ReviewedAt,
		RejectionReason: r.RejectionReason,
		PointsCredited:  r.PointsCreditedAt != nil,
		CreatedAt:       r.CreatedAt,
	}
}

func toCollectionDTO(c *models.WasteCollection) *CollectionDTO {
	return &CollectionDTO{
		ID:             c.ID,
		WasteReportID:  c.WasteReportID,
		CollectorID:    c.CollectorID,
		CollectionDate: c.CollectionDate,
		CollectedAt:    c.CollectedAt,
		Notes:          c.Notes,
	}
}
