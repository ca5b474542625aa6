package users

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/farmloop-backend/pkg/db/dbtest"
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmloop-backend/pkg/errors"
)

func TestRepositoryWasteTotalsAndImpact(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	user, err := repo.Create(ctx, CreateUserDTO{
		Email:        "grower@example.com",
		PasswordHash: "hash",
		FirstName:    "Grow",
		LastName:     "Er",
		UserType:     enums.UserTypeFarmer,
	})
	require.NoError(t, err)

	require.NoError(t, repo.IncrementWasteTotals(ctx, user.ID, decimal.RequireFromString("2.5")))
	require.NoError(t, repo.IncrementWasteTotals(ctx, user.ID, decimal.RequireFromString("1.5")))
	require.NoError(t, repo.SetImpact(ctx, user.ID, Impact{
		CarbonSaved: decimal.RequireFromString("3.84"),
		TreesSaved:  decimal.RequireFromString("0.068"),
		WaterSaved:  decimal.RequireFromString("15.2"),
	}))
	require.NoError(t, repo.UpdateLastLogin(ctx, user.ID, time.Now().UTC()))

	got, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.TotalWasteReports)
	require.True(t, got.TotalWasteCollected.Equal(decimal.NewFromInt(4)))
	require.True(t, got.CarbonSaved.Equal(decimal.RequireFromString("3.84")))
	require.NotNil(t, got.LastLoginAt)
}

func TestServiceUpdateProfile(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	user, err := repo.Create(ctx, CreateUserDTO{
		Email:        "c@example.com",
		PasswordHash: "hash",
		FirstName:    "Old",
		LastName:     "Name",
	})
	require.NoError(t, err)
	require.Equal(t, enums.UserTypeConsumer, user.UserType)

	svc, err := NewService(repo)
	require.NoError(t, err)

	first := "New"
	dto, err := svc.UpdateProfile(ctx, user.ID, UpdateProfileInput{FirstName: &first})
	require.NoError(t, err)
	require.Equal(t, "New", dto.FirstName)
	require.Equal(t, "Name", dto.LastName)

	_, err = svc.UpdateProfile(ctx, user.ID, UpdateProfileInput{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
