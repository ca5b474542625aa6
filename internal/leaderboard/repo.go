package leaderboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmloop-backend/pkg/db/models"
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
)

// Repository runs the ranking queries behind the leaderboards.
type Repository interface {
	TopByPoints(ctx context.Context, limit int) ([]UserRow, error)
	FindUser(ctx context.Context, userID uuid.UUID) (*UserRow, error)
	CountAbove(ctx context.Context, points int) (int64, error)
	CountParticipants(ctx context.Context) (int64, error)
	WeeklyPoints(ctx context.Context, since time.Time, limit int) ([]WeeklyRow, error)
	Totals(ctx context.Context) (*TotalsRow, error)
	QuantityByType(ctx context.Context) ([]TypeRow, error)
}

// UserRow is the slice of a user that rankings need.
type UserRow struct {
	ID                uuid.UUID
	FirstName         string
	LastName          string
	RewardPoints      int
	TotalWasteReports int
	CarbonSaved       decimal.Decimal
	TreesSaved        decimal.Decimal
	WaterSaved        decimal.Decimal
}

// WeeklyRow is one user's points from recently approved reports.
type WeeklyRow struct {
	UserID       uuid.UUID
	FirstName    string
	LastName     string
	WeeklyPoints int
}

// TotalsRow aggregates every participant.
type TotalsRow struct {
	Participants        int64
	TotalWasteReports   int64
	TotalWasteCollected decimal.Decimal
	CarbonSaved         decimal.Decimal
	TreesSaved          decimal.Decimal
	WaterSaved          decimal.Decimal
}

// TypeRow is the credited quantity of one waste type.
type TypeRow struct {
	WasteType enums.WasteType
	Total     decimal.Decimal
}

const userColumns = "id, first_name, last_name, reward_points, total_waste_reports, carbon_saved, trees_saved, water_saved"

type repository struct {
	db *gorm.DB
}

// NewRepository returns a leaderboard repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// participants are active non-admin accounts.
func (r *repository) participants(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("is_active = ? AND user_type <> ?", true, enums.UserTypeAdmin)
}

func (r *repository) TopByPoints(ctx context.Context, limit int) ([]UserRow, error) {
	var rows []UserRow
	err := r.participants(ctx).
		Select(userColumns).
		Order("reward_points DESC").
		Order("created_at ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *repository) FindUser(ctx context.Context, userID uuid.UUID) (*UserRow, error) {
	var rows []UserRow
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select(userColumns).
		Where("id = ?", userID).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

func (r *repository) CountAbove(ctx context.Context, points int) (int64, error) {
	var count int64
	err := r.participants(ctx).Where("reward_points > ?", points).Count(&count).Error
	return count, err
}

func (r *repository) CountParticipants(ctx context.Context) (int64, error) {
	var count int64
	err := r.participants(ctx).Count(&count).Error
	return count, err
}

func (r *repository) WeeklyPoints(ctx context.Context, since time.Time, limit int) ([]WeeklyRow, error) {
	var rows []WeeklyRow
	err := r.db.WithContext(ctx).
		Table("waste_reports AS w").
		Select("w.user_id AS user_id, u.first_name AS first_name, u.last_name AS last_name, SUM(w.points_awarded) AS weekly_points").
		Joins("JOIN users u ON u.id = w.user_id").
		Where("w.points_credited_at >= ?", since).
		Group("w.user_id, u.first_name, u.last_name").
		Order("weekly_points DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

func (r *repository) Totals(ctx context.Context) (*TotalsRow, error) {
	var row TotalsRow
	err := r.participants(ctx).
		Select(`COUNT(*) AS participants,
COALESCE(SUM(total_waste_reports), 0) AS total_waste_reports,
COALESCE(SUM(total_waste_collected), 0) AS total_waste_collected,
COALESCE(SUM(carbon_saved), 0) AS carbon_saved,
COALESCE(SUM(trees_saved), 0) AS trees_saved,
COALESCE(SUM(water_saved), 0) AS water_saved`).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) QuantityByType(ctx context.Context) ([]TypeRow, error) {
	var rows []TypeRow
	err := r.db.WithContext(ctx).
		Model(&models.WasteReport{}).
		Select("waste_type, COALESCE(SUM(quantity), 0) AS total").
		Where("status IN ?", []enums.WasteReportStatus{enums.WasteReportStatusApproved, enums.WasteReportStatusCollected}).
		Group("waste_type").
		Scan(&rows).Error
	return rows, err
}
