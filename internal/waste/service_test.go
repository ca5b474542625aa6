package waste

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmloop-backend/internal/points"
	"github.com/angelmondragon/farmloop-backend/internal/users"
	"github.com/angelmondragon/farmloop-backend/pkg/db"
	"github.com/angelmondragon/farmloop-backend/pkg/db/dbtest"
	"github.com/angelmondragon/farmloop-backend/pkg/db/models"
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmloop-backend/pkg/errors"
	"github.com/angelmondragon/farmloop-backend/pkg/pagination"
)

type countingNotifier struct {
	mu    sync.Mutex
	count map[enums.NotificationType]int
}

func (n *countingNotifier) Notify(ctx context.Context, userID uuid.UUID, kind enums.NotificationType, title, message string, link *string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.count == nil {
		n.count = map[enums.NotificationType]int{}
	}
	n.count[kind]++
}

type fixture struct {
	conn     *gorm.DB
	svc      Service
	users    *users.Repository
	ledger   points.Service
	notifier *countingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.Wrap(conn)
	ledger, err := points.NewService(points.NewRepository(conn), client, nil)
	require.NoError(t, err)
	f := &fixture{
		conn:     conn,
		users:    users.NewRepository(conn),
		ledger:   ledger,
		notifier: &countingNotifier{},
	}
	f.svc, err = NewService(ServiceParams{
		Repo:     NewRepository(conn),
		Tx:       client,
		Users:    f.users,
		Points:   ledger,
		Notifier: f.notifier,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) user(t *testing.T) uuid.UUID {
	t.Helper()
	active := true
	user, err := f.users.Create(context.Background(), users.CreateUserDTO{
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "hash",
		FirstName:    "Ada",
		LastName:     "Green",
		UserType:     enums.UserTypeConsumer,
		IsActive:     &active,
	})
	require.NoError(t, err)
	return user.ID
}

func (f *fixture) submit(t *testing.T, userID uuid.UUID, wasteType enums.WasteType, qty string) *ReportDTO {
	t.Helper()
	report, err := f.svc.Submit(context.Background(), userID, SubmitInput{
		WasteType: wasteType,
		Quantity:  decimal.RequireFromString(qty),
		Location:  "Ward 7",
	})
	require.NoError(t, err)
	return report
}

func (f *fixture) balance(t *testing.T, userID uuid.UUID) int {
	t.Helper()
	balance, err := f.ledger.Balance(context.Background(), userID)
	require.NoError(t, err)
	return balance
}

func TestPointsFor(t *testing.T) {
	cases := []struct {
		name      string
		wasteType enums.WasteType
		qty       string
		ppu       int
		want      int
	}{
		{"whole units", enums.WasteTypeMetal, "3", 20, 60},
		{"fraction floors", enums.WasteTypeGlass, "2.5", 15, 37},
		{"organic doubles", enums.WasteTypeOrganic, "1.25", 10, 24},
		{"zero quantity", enums.WasteTypePaper, "0", 10, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := pointsFor(tc.wasteType, decimal.RequireFromString(tc.qty), tc.ppu)
			if got != tc.want {
				t.Fatalf("expected %d points, got %d", tc.want, got)
			}
		})
	}
}

func TestSubmitDoesNotCredit(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)

	report := f.submit(t, user, enums.WasteTypeCardboard, "4.5")
	require.Equal(t, enums.WasteReportStatusPending, report.Status)
	require.Equal(t, 45, report.PointsAwarded)
	require.False(t, report.PointsCredited)
	require.Zero(t, f.balance(t, user))
}

func TestSubmitUsesCategoryRate(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	category := models.WasteCategory{ID: uuid.New(), Name: "E-waste", PointsPerUnit: 40}
	require.NoError(t, f.conn.Create(&category).Error)

	report, err := f.svc.Submit(context.Background(), user, SubmitInput{
		CategoryID: &category.ID,
		WasteType:  enums.WasteTypeOther,
		Quantity:   decimal.RequireFromString("1.5"),
	})
	require.NoError(t, err)
	require.Equal(t, 60, report.PointsAwarded)

	missing := uuid.New()
	_, err = f.svc.Submit(context.Background(), user, SubmitInput{
		CategoryID: &missing,
		WasteType:  enums.WasteTypeOther,
		Quantity:   decimal.NewFromInt(1),
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)

	_, err := f.svc.Submit(context.Background(), user, SubmitInput{WasteType: "glitter", Quantity: decimal.NewFromInt(1)})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.Submit(context.Background(), user, SubmitInput{WasteType: enums.WasteTypeGlass, Quantity: decimal.NewFromInt(-1)})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestApproveCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.user(t)
	admin := uuid.New()
	report := f.submit(t, user, enums.WasteTypeCardboard, "10")

	approved, err := f.svc.Approve(ctx, report.ID, admin)
	require.NoError(t, err)
	require.Equal(t, enums.WasteReportStatusApproved, approved.Status)
	require.True(t, approved.PointsCredited)
	require.Equal(t, 100, f.balance(t, user))

	again, err := f.svc.Approve(ctx, report.ID, admin)
	require.NoError(t, err)
	require.Equal(t, enums.WasteReportStatusApproved, again.Status)
	require.Equal(t, 100, f.balance(t, user))
	require.Equal(t, 1, f.notifier.count[enums.NotificationTypeReward])

	stored, err := f.users.FindByID(ctx, user)
	require.NoError(t, err)
	require.Equal(t, 1, stored.TotalWasteReports)
	require.True(t, stored.TotalWasteCollected.Equal(decimal.NewFromInt(10)))
	require.True(t, stored.CarbonSaved.Equal(decimal.RequireFromString("9.6")), stored.CarbonSaved.String())
	require.True(t, stored.TreesSaved.Equal(decimal.RequireFromString("0.17")), stored.TreesSaved.String())
	require.True(t, stored.WaterSaved.Equal(decimal.NewFromInt(38)), stored.WaterSaved.String())
}

func TestConcurrentApprovalsCreditOnce(t *testing.T) {
	f := newFixture(t)
	user := f.user(t)
	report := f.submit(t, user, enums.WasteTypeMetal, "2")

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Approve(context.Background(), report.ID, uuid.New())
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 40, f.balance(t, user))
}

func TestRejectBlocksApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.user(t)
	report := f.submit(t, user, enums.WasteTypePlastic, "1")

	_, err := f.svc.Reject(ctx, report.ID, uuid.New(), RejectInput{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	rejected, err := f.svc.Reject(ctx, report.ID, uuid.New(), RejectInput{Reason: "blurry photo"})
	require.NoError(t, err)
	require.Equal(t, enums.WasteReportStatusRejected, rejected.Status)
	require.Equal(t, "blurry photo", *rejected.RejectionReason)

	_, err = f.svc.Approve(ctx, report.ID, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	require.Zero(t, f.balance(t, user))

	_, err = f.svc.Approve(ctx, uuid.New(), uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCollectionFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.user(t)
	report := f.submit(t, user, enums.WasteTypePaper, "3")
	when := time.Now().Add(48 * time.Hour)

	_, err := f.svc.ScheduleCollection(ctx, report.ID, ScheduleInput{CollectionDate: when})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.Approve(ctx, report.ID, uuid.New())
	require.NoError(t, err)

	collection, err := f.svc.ScheduleCollection(ctx, report.ID, ScheduleInput{CollectionDate: when, Notes: "gate code 42"})
	require.NoError(t, err)
	require.Nil(t, collection.CollectedAt)

	_, err = f.svc.ScheduleCollection(ctx, report.ID, ScheduleInput{CollectionDate: when})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	done, err := f.svc.MarkCollected(ctx, collection.ID, CollectedInput{})
	require.NoError(t, err)
	require.NotNil(t, done.CollectedAt)

	_, err = f.svc.MarkCollected(ctx, collection.ID, CollectedInput{})
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, user, enums.UserTypeConsumer, report.ID)
	require.NoError(t, err)
	require.Equal(t, enums.WasteReportStatusCollected, got.Status)
	require.Equal(t, 30, f.balance(t, user))

	// collected reports still count towards impact
	impact, err := f.svc.RecalculateEnvironmentalImpact(ctx, user)
	require.NoError(t, err)
	require.True(t, impact.CarbonSaved.Equal(decimal.RequireFromString("2.73")), impact.CarbonSaved.String())
}

func TestRecalculateOverwritesDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.user(t)
	report := f.submit(t, user, enums.WasteTypeCardboard, "1")
	_, err := f.svc.Approve(ctx, report.ID, uuid.New())
	require.NoError(t, err)
	f.submit(t, user, enums.WasteTypeMetal, "100")

	require.NoError(t, f.users.SetImpact(ctx, user, users.Impact{
		CarbonSaved: decimal.NewFromInt(999),
		TreesSaved:  decimal.NewFromInt(999),
		WaterSaved:  decimal.NewFromInt(999),
	}))

	impact, err := f.svc.RecalculateEnvironmentalImpact(ctx, user)
	require.NoError(t, err)
	require.True(t, impact.CarbonSaved.Equal(decimal.RequireFromString("0.96")))
	require.True(t, impact.WaterSaved.Equal(decimal.RequireFromString("3.8")))

	_, err = f.svc.RecalculateEnvironmentalImpact(ctx, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestStatsAndListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.user(t)
	other := f.user(t)
	approved := f.submit(t, user, enums.WasteTypeGlass, "2")
	f.submit(t, user, enums.WasteTypeOrganic, "1")
	f.submit(t, other, enums.WasteTypeTrash, "1")
	_, err := f.svc.Approve(ctx, approved.ID, uuid.New())
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx, user)
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalReports)
	require.Equal(t, 1, stats.ByStatus[enums.WasteReportStatusPending])
	require.Equal(t, 30, stats.PointsEarned)
	require.Equal(t, 20, stats.PendingPoints)
	require.True(t, stats.ApprovedQuantity.Equal(decimal.NewFromInt(2)))

	page, err := f.svc.ListReports(ctx, ReportFilters{UserID: &user}, pagination.Params{Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Reports, 1)
	require.NotEmpty(t, page.NextCursor)

	rest, err := f.svc.ListReports(ctx, ReportFilters{UserID: &user}, pagination.Params{Limit: 1, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Reports, 1)
	require.NotEqual(t, page.Reports[0].ID, rest.Reports[0].ID)

	pending := enums.WasteReportStatusPending
	all, err := f.svc.ListReports(ctx, ReportFilters{Status: &pending}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, all.Reports, 2)

	recent, err := f.svc.RecentlyCreditedUsers(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{user}, recent)

	_, err = f.svc.Get(ctx, other, enums.UserTypeConsumer, approved.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
