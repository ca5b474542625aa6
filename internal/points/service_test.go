package points

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmloop-backend/pkg/db"
	"github.com/angelmondragon/farmloop-backend/pkg/db/dbtest"
	"github.com/angelmondragon/farmloop-backend/pkg/db/models"
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmloop-backend/pkg/errors"
	"github.com/angelmondragon/farmloop-backend/pkg/pagination"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), db.Wrap(conn), nil)
	require.NoError(t, err)
	return svc, conn
}

func seedUser(t *testing.T, conn *gorm.DB, points int) uuid.UUID {
	t.Helper()
	user := models.User{
		ID:           uuid.New(),
		Email:        uuid.NewString() + "@farmloop.test",
		PasswordHash: "hash",
		FirstName:    "Asha",
		LastName:     "Rao",
		UserType:     enums.UserTypeConsumer,
		IsActive:     true,
		RewardPoints: points,
	}
	require.NoError(t, conn.Create(&user).Error)
	return user.ID
}

func adjust(userID uuid.UUID, pts int) Adjustment {
	return Adjustment{UserID: userID, Points: pts, Reason: enums.PointsReasonAdjustment}
}

func TestNewServiceRequiresDeps(t *testing.T) {
	if _, err := NewService(nil, stubTx{}, nil); err == nil {
		t.Fatal("expected repository error")
	}
	if _, err := NewService(NewRepository(nil), nil, nil); err == nil {
		t.Fatal("expected tx runner error")
	}
}

func TestDebitThenCreditRestoresBalance(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, conn, 100)

	balance, err := svc.Debit(ctx, adjust(userID, 35))
	require.NoError(t, err)
	require.Equal(t, 65, balance)

	balance, err = svc.Credit(ctx, adjust(userID, 35))
	require.NoError(t, err)
	require.Equal(t, 100, balance)

	var entries []models.PointsLedgerEntry
	require.NoError(t, conn.Order("balance_after ASC").Find(&entries).Error)
	require.Len(t, entries, 2)
	require.Equal(t, -35, entries[0].Delta)
	require.Equal(t, 65, entries[0].BalanceAfter)
	require.Equal(t, 35, entries[1].Delta)
}

func TestDebitRefusesOverdraw(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, conn, 20)

	_, err := svc.Debit(ctx, adjust(userID, 21))
	require.Error(t, err)
	require.True(t, errors.Is(err, pkgerrors.ErrInsufficientBalance))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	balance, err := svc.Balance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 20, balance)

	var count int64
	require.NoError(t, conn.Model(&models.PointsLedgerEntry{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestAdjustmentValidation(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, conn, 10)

	_, err := svc.Credit(ctx, adjust(userID, -1))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Debit(ctx, Adjustment{UserID: userID, Points: 1, Reason: "gift"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Debit(ctx, adjust(uuid.Nil, 1))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	balance, err := svc.Credit(ctx, adjust(userID, 0))
	require.NoError(t, err)
	require.Equal(t, 10, balance)
}

func TestUnknownUserIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Credit(context.Background(), adjust(uuid.New(), 5))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Debit(context.Background(), adjust(uuid.New(), 5))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, conn, 100)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		refusals  int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Debit(ctx, adjust(userID, 60))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, pkgerrors.ErrInsufficientBalance):
				refusals++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, successes)
	require.Equal(t, 1, refusals)

	balance, err := svc.Balance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 40, balance)
}

func TestWithTxRollsBackWithCaller(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, conn, 50)

	boom := errors.New("downstream failure")
	err := db.Wrap(conn).WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := svc.WithTx(tx).Debit(ctx, adjust(userID, 30)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	balance, err := svc.Balance(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 50, balance)
}

func TestHistoryPaginates(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, conn, 0)

	for i := 1; i <= 3; i++ {
		_, err := svc.Credit(ctx, adjust(userID, i))
		require.NoError(t, err)
	}

	page, err := svc.History(ctx, userID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 6, page.Balance)
	require.Len(t, page.Entries, 2)
	require.NotEmpty(t, page.NextCursor)

	next, err := svc.History(ctx, userID, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, next.Entries, 1)
	require.Empty(t, next.NextCursor)

	_, err = svc.History(ctx, userID, pagination.Params{Cursor: "%%%"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
