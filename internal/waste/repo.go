package waste

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmloop-backend/pkg/db/models"
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
	"github.com/angelmondragon/farmloop-backend/pkg/pagination"
)

// Repository exposes persistence helpers for waste reports and collections.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindCategory(ctx context.Context, id uuid.UUID) (*models.WasteCategory, error)
	ListCategories(ctx context.Context) ([]models.WasteCategory, error)
	CreateReport(ctx context.Context, report *models.WasteReport) error
	FindReport(ctx context.Context, id uuid.UUID) (*models.WasteReport, error)
	ListReports(ctx context.Context, filters ReportFilters, params pagination.Params) ([]models.WasteReport, string, error)
	MarkApproved(ctx context.Context, id, reviewerID uuid.UUID, now time.Time) (bool, error)
	MarkRejected(ctx context.Context, id, reviewerID uuid.UUID, reason string, now time.Time) (bool, error)
	TransitionReport(ctx context.Context, id uuid.UUID, from, to enums.WasteReportStatus, now time.Time) (bool, error)
	CreateCollection(ctx context.Context, collection *models.WasteCollection) error
	FindCollection(ctx context.Context, id uuid.UUID) (*models.WasteCollection, error)
	MarkCollectionDone(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	CreditedQuantitiesByType(ctx context.Context, userID uuid.UUID) (map[enums.WasteType]decimal.Decimal, error)
	StatusSummary(ctx context.Context, userID uuid.UUID) ([]StatusRow, error)
	UsersCreditedSince(ctx context.Context, since time.Time) ([]uuid.UUID, error)
}

// ReportFilters narrows a report listing. A nil UserID lists every user's reports.
type ReportFilters struct {
	UserID *uuid.UUID
	Status *enums.WasteReportStatus
}

// StatusRow aggregates one user's reports in one status.
type StatusRow struct {
	Status   enums.WasteReportStatus
	Reports  int
	Quantity decimal.Decimal
	Points   int
}

// creditedStatuses are the statuses whose reports count towards impact.
var creditedStatuses = []enums.WasteReportStatus{enums.WasteReportStatusApproved, enums.WasteReportStatusCollected}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a waste repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindCategory(ctx context.Context, id uuid.UUID) (*models.WasteCategory, error) {
	var category models.WasteCategory
	if err := r.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *repository) ListCategories(ctx context.Context) ([]models.WasteCategory, error) {
	var rows []models.WasteCategory
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

func (r *repository) CreateReport(ctx context.Context, report *models.WasteReport) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *repository) FindReport(ctx context.Context, id uuid.UUID) (*models.WasteReport, error) {
	var report models.WasteReport
	if err := r.db.WithContext(ctx).First(&report, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *repository) ListReports(ctx context.Context, filters ReportFilters, params pagination.Params) ([]models.WasteReport, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	query := r.db.WithContext(ctx).Model(&models.WasteReport{})
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	var rows []models.WasteReport
	if err := query.
		Scopes(pagination.Newest(cursor, params.Limit)).
		Find(&rows).Error; err != nil {
		return nil, "", err
	}
	page, next := pagination.Trim(rows, params.Limit, func(w models.WasteReport) pagination.Cursor {
		return pagination.Cursor{CreatedAt: w.CreatedAt, ID: w.ID}
	})
	return page, next, nil
}

// MarkApproved flips a pending, uncredited report to approved. Only the caller
// that gets true may credit the report's points.
func (r *repository) MarkApproved(ctx context.Context, id, reviewerID uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.WasteReport{}).
		Where("id = ? AND status = ? AND points_credited_at IS NULL", id, enums.WasteReportStatusPending).
		UpdateColumns(map[string]any{
			"status":             enums.WasteReportStatusApproved,
			"reviewed_by":        reviewerID,
			"reviewed_at":        now,
			"points_credited_at": now,
			"updated_at":         now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) MarkRejected(ctx context.Context, id, reviewerID uuid.UUID, reason string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.WasteReport{}).
		Where("id = ? AND status = ?", id, enums.WasteReportStatusPending).
		UpdateColumns(map[string]any{
			"status":           enums.WasteReportStatusRejected,
			"reviewed_by":      reviewerID,
			"reviewed_at":      now,
			"rejection_reason": reason,
			"updated_at":       now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) TransitionReport(ctx context.Context, id uuid.UUID, from, to enums.WasteReportStatus, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.WasteReport{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumns(map[string]any{"status": to, "updated_at": now})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CreateCollection(ctx context.Context, collection *models.WasteCollection) error {
	if collection.ID == uuid.Nil {
		collection.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(collection).Error
}

func (r *repository) FindCollection(ctx context.Context, id uuid.UUID) (*models.WasteCollection, error) {
	var collection models.WasteCollection
	if err := r.db.WithContext(ctx).First(&collection, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &collection, nil
}

func (r *repository) MarkCollectionDone(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.WasteCollection{}).
		Where("id = ? AND collected_at IS NULL", id).
		UpdateColumn("collected_at", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

type typeQuantity struct {
	WasteType enums.WasteType
	Total     decimal.Decimal
}

func (r *repository) CreditedQuantitiesByType(ctx context.Context, userID uuid.UUID) (map[enums.WasteType]decimal.Decimal, error) {
	var rows []typeQuantity
	err := r.db.WithContext(ctx).
		Model(&models.WasteReport{}).
		Select("waste_type, COALESCE(SUM(quantity), 0) AS total").
		Where("user_id = ? AND status IN ?", userID, creditedStatuses).
		Group("waste_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[enums.WasteType]decimal.Decimal, len(rows))
	for _, row := range rows {
		out[row.WasteType] = row.Total
	}
	return out, nil
}

func (r *repository) StatusSummary(ctx context.Context, userID uuid.UUID) ([]StatusRow, error) {
	var rows []StatusRow
	err := r.db.WithContext(ctx).
		Model(&models.WasteReport{}).
		Select("status, COUNT(*) AS reports, COALESCE(SUM(quantity), 0) AS quantity, COALESCE(SUM(points_awarded), 0) AS points").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	return rows, err
}

func (r *repository) UsersCreditedSince(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.WasteReport{}).
		Distinct("user_id").
		Where("points_credited_at >= ?", since).
		Pluck("user_id", &ids).Error
	return ids, err
}
