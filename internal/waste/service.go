package waste

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmloop-backend/internal/points"
	"github.com/angelmondragon/farmloop-backend/internal/users"
	"github.com/angelmondragon/farmloop-backend/pkg/db"
	"github.com/angelmondragon/farmloop-backend/pkg/db/models"
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmloop-backend/pkg/errors"
	"github.com/angelmondragon/farmloop-backend/pkg/logger"
	"github.com/angelmondragon/farmloop-backend/pkg/metrics"
	"github.com/angelmondragon/farmloop-backend/pkg/pagination"
)

const reportReferenceType = "waste_report"

// Service records waste reports and turns approved ones into points and impact.
type Service interface {
	Submit(ctx context.Context, userID uuid.UUID, input SubmitInput) (*ReportDTO, error)
	Get(ctx context.Context, userID uuid.UUID, userType enums.UserType, reportID uuid.UUID) (*ReportDTO, error)
	Approve(ctx context.Context, reportID, reviewerID uuid.UUID) (*ReportDTO, error)
	Reject(ctx context.Context, reportID, reviewerID uuid.UUID, input RejectInput) (*ReportDTO, error)
	ScheduleCollection(ctx context.Context, reportID uuid.UUID, input ScheduleInput) (*CollectionDTO, error)
	MarkCollected(ctx context.Context, collectionID uuid.UUID, input CollectedInput) (*CollectionDTO, error)
	RecalculateEnvironmentalImpact(ctx context.Context, userID uuid.UUID) (*users.Impact, error)
	RecentlyCreditedUsers(ctx context.Context, since time.Time) ([]uuid.UUID, error)
	ListCategories(ctx context.Context) ([]CategoryDTO, error)
	ListReports(ctx context.Context, filters ReportFilters, params pagination.Params) (*ReportList, error)
	Stats(ctx context.Context, userID uuid.UUID) (*Stats, error)
}

// Notifier delivers in-app notifications without failing the caller.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind enums.NotificationType, title, message string, link *string)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type userStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	WithTx(tx *gorm.DB) *users.Repository
}

type pointsLedger interface {
	WithTx(tx *gorm.DB) points.Service
}

// ServiceParams bundles the dependencies of the waste service.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Users    userStore
	Points   pointsLedger
	Notifier Notifier
	Logger   *logger.Logger
	Metrics  *metrics.DomainMetrics
}

type service struct {
	repo     Repository
	tx       txRunner
	users    userStore
	points   pointsLedger
	notifier Notifier
	logg     *logger.Logger
	metrics  *metrics.DomainMetrics
	now      func() time.Time
}

// NewService builds a waste service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("waste repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Points == nil {
		return nil, fmt.Errorf("points ledger required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		users:    params.Users,
		points:   params.Points,
		notifier: notifier,
		logg:     logg,
		metrics:  params.Metrics,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Submit records a pending report. Points are computed now and credited only on approval.
func (s *service) Submit(ctx context.Context, userID uuid.UUID, input SubmitInput) (*ReportDTO, error) {
	if !input.WasteType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid waste type %q", input.WasteType))
	}
	if input.Quantity.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	quantity := input.Quantity.Round(2)

	pointsPerUnit := defaultPointsPerUnit[input.WasteType]
	if input.CategoryID != nil {
		category, err := s.repo.FindCategory(ctx, *input.CategoryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown waste category")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load waste category")
		}
		pointsPerUnit = category.PointsPerUnit
	}

	report := &models.WasteReport{
		ID:            uuid.New(),
		UserID:        userID,
		CategoryID:    input.CategoryID,
		WasteType:     input.WasteType,
		Quantity:      quantity,
		Description:   strings.TrimSpace(input.Description),
		Location:      strings.TrimSpace(input.Location),
		ImageURL:      input.ImageURL,
		PointsAwarded: pointsFor(input.WasteType, quantity, pointsPerUnit),
		Status:        enums.WasteReportStatusPending,
	}
	if err := s.repo.CreateReport(ctx, report); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create waste report")
	}
	s.metrics.WasteEvent("submitted")
	return toReportDTO(report), nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID, userType enums.UserType, reportID uuid.UUID) (*ReportDTO, error) {
	report, err := s.repo.FindReport(ctx, reportID)
	if err != nil {
		return nil, mapReportLoadError(err)
	}
	if report.UserID != userID && userType != enums.UserTypeAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "waste report not found")
	}
	return toReportDTO(report), nil
}

// Approve credits a pending report exactly once. Repeat approvals return the
// report unchanged.
func (s *service) Approve(ctx context.Context, reportID, reviewerID uuid.UUID) (*ReportDTO, error) {
	var (
		report *models.WasteReport
		won    bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		won, err = repo.MarkApproved(ctx, reportID, reviewerID, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "approve waste report")
		}
		report, err = repo.FindReport(ctx, reportID)
		if err != nil {
			return mapReportLoadError(err)
		}
		if !won {
			if report.PointsCreditedAt != nil {
				return nil
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending reports can be approved").
				WithDetails(map[string]any{"status": report.Status})
		}

		if _, err := s.points.WithTx(tx).Credit(ctx, points.Adjustment{
			UserID:        report.UserID,
			Points:        report.PointsAwarded,
			Reason:        enums.PointsReasonWasteApproved,
			ReferenceType: reportReferenceType,
			ReferenceID:   &report.ID,
		}); err != nil {
			return err
		}
		if err := s.users.WithTx(tx).IncrementWasteTotals(ctx, report.UserID, report.Quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update waste totals")
		}
		_, err = s.recalculate(ctx, tx, report.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if won {
		s.metrics.WasteEvent("approved")
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"report_id": report.ID.String(),
			"user_id":   report.UserID.String(),
			"points":    report.PointsAwarded,
		}), "waste report approved")
		s.notifier.Notify(ctx, report.UserID, enums.NotificationTypeReward, "Waste Report Approved",
			fmt.Sprintf("Your %s report was approved and earned %d points.", report.WasteType, report.PointsAwarded), reportLink(report.ID))
	}
	return toReportDTO(report), nil
}

func (s *service) Reject(ctx context.Context, reportID, reviewerID uuid.UUID, input RejectInput) (*ReportDTO, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}

	var report *models.WasteReport
	var changed bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		changed, err = repo.MarkRejected(ctx, reportID, reviewerID, reason, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reject waste report")
		}
		report, err = repo.FindReport(ctx, reportID)
		if err != nil {
			return mapReportLoadError(err)
		}
		if !changed && report.Status != enums.WasteReportStatusRejected {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending reports can be rejected").
				WithDetails(map[string]any{"status": report.Status})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.metrics.WasteEvent("rejected")
		s.notifier.Notify(ctx, report.UserID, enums.NotificationTypeSystem, "Waste Report Rejected",
			fmt.Sprintf("Your %s report was rejected: %s", report.WasteType, reason), reportLink(report.ID))
	}
	return toReportDTO(report), nil
}

func (s *service) ScheduleCollection(ctx context.Context, reportID uuid.UUID, input ScheduleInput) (*CollectionDTO, error) {
	if input.CollectionDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "collection_date is required")
	}

	var (
		collection *models.WasteCollection
		report     *models.WasteReport
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		report, err = repo.FindReport(ctx, reportID)
		if err != nil {
			return mapReportLoadError(err)
		}
		if report.Status != enums.WasteReportStatusApproved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only approved reports can be collected").
				WithDetails(map[string]any{"status": report.Status})
		}
		collection = &models.WasteCollection{
			ID:             uuid.New(),
			WasteReportID:  report.ID,
			CollectorID:    input.CollectorID,
			CollectionDate: input.CollectionDate.UTC(),
			Notes:          strings.TrimSpace(input.Notes),
		}
		if err := repo.CreateCollection(ctx, collection); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "collection already scheduled for this report")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "schedule collection")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.WasteEvent("collection_scheduled")
	s.notifier.Notify(ctx, report.UserID, enums.NotificationTypeSystem, "Collection Scheduled",
		fmt.Sprintf("Pickup for your %s report is scheduled for %s.", report.WasteType, collection.CollectionDate.Format("2006-01-02")), reportLink(report.ID))
	return toCollectionDTO(collection), nil
}

// MarkCollected closes a pickup and moves the report to collected. Closing an
// already collected pickup is a no-op.
func (s *service) MarkCollected(ctx context.Context, collectionID uuid.UUID, input CollectedInput) (*CollectionDTO, error) {
	at := s.now()
	if input.CollectedAt != nil {
		at = input.CollectedAt.UTC()
	}

	var collection *models.WasteCollection
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		done, err := repo.MarkCollectionDone(ctx, collectionID, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark collection done")
		}
		collection, err = repo.FindCollection(ctx, collectionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "collection not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load collection")
		}
		if !done {
			return nil
		}
		moved, err := repo.TransitionReport(ctx, collection.WasteReportID, enums.WasteReportStatusApproved, enums.WasteReportStatusCollected, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark report collected")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "report is no longer approved")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.WasteEvent("collected")
	return toCollectionDTO(collection), nil
}

// RecalculateEnvironmentalImpact rebuilds the user's impact totals from every
// credited report and overwrites the stored values.
func (s *service) RecalculateEnvironmentalImpact(ctx context.Context, userID uuid.UUID) (*users.Impact, error) {
	var impact users.Impact
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		impact, err = s.recalculate(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &impact, nil
}

func (s *service) RecentlyCreditedUsers(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	ids, err := s.repo.UsersCreditedSince(ctx, since.UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list recently credited users")
	}
	return ids, nil
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list waste categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, CategoryDTO{
			ID:            row.ID,
			Name:          row.Name,
			Description:   row.Description,
			PointsPerUnit: row.PointsPerUnit,
		})
	}
	return out, nil
}

func (s *service) ListReports(ctx context.Context, filters ReportFilters, params pagination.Params) (*ReportList, error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", *filters.Status))
	}
	rows, next, err := s.repo.ListReports(ctx, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "list waste reports")
	}
	list := &ReportList{Reports: make([]ReportDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		list.Reports = append(list.Reports, *toReportDTO(&rows[i]))
	}
	return list, nil
}

func (s *service) Stats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	rows, err := s.repo.StatusSummary(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load waste statistics")
	}

	stats := &Stats{
		ByStatus:         make(map[enums.WasteReportStatus]int),
		ApprovedQuantity: decimal.Zero,
		Impact: users.Impact{
			CarbonSaved: user.CarbonSaved,
			TreesSaved:  user.TreesSaved,
			WaterSaved:  user.WaterSaved,
		},
	}
	for _, row := range rows {
		stats.TotalReports += row.Reports
		stats.ByStatus[row.Status] = row.Reports
		switch row.Status {
		case enums.WasteReportStatusApproved, enums.WasteReportStatusCollected:
			stats.ApprovedQuantity = stats.ApprovedQuantity.Add(row.Quantity)
			stats.PointsEarned += row.Points
		case enums.WasteReportStatusPending:
			stats.PendingPoints += row.Points
		}
	}
	return stats, nil
}

func (s *service) recalculate(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (users.Impact, error) {
	quantities, err := s.repo.WithTx(tx).CreditedQuantitiesByType(ctx, userID)
	if err != nil {
		return users.Impact{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum credited waste")
	}
	impact := impactOf(quantities)
	if err := s.users.WithTx(tx).SetImpact(ctx, userID, impact); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return users.Impact{}, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return users.Impact{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store impact")
	}
	return impact, nil
}

func mapReportLoadError(err error) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "waste report not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load waste report")
}

func reportLink(id uuid.UUID) *string {
	link := "/waste/reports/" + id.String()
	return &link
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, uuid.UUID, enums.NotificationType, string, string, *string) {}
