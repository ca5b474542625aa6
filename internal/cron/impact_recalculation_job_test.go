package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/farmloop-backend/internal/users"
	"github.com/angelmondragon/farmloop-backend/pkg/logger"
)

type fakeRecalculator struct {
	users    []uuid.UUID
	listErr  error
	failFor  map[uuid.UUID]error
	since    time.Time
	recalced []uuid.UUID
}

func (f *fakeRecalculator) RecentlyCreditedUsers(_ context.Context, since time.Time) ([]uuid.UUID, error) {
	f.since = since
	return f.users, f.listErr
}

func (f *fakeRecalculator) RecalculateEnvironmentalImpact(_ context.Context, userID uuid.UUID) (*users.Impact, error) {
	f.recalced = append(f.recalced, userID)
	if err := f.failFor[userID]; err != nil {
		return nil, err
	}
	return &users.Impact{}, nil
}

func newImpactJob(t *testing.T, waste *fakeRecalculator) *impactRecalculationJob {
	t.Helper()
	jobIface, err := NewImpactRecalculationJob(ImpactRecalculationJobParams{
		Logger: logger.Nop(),
		Waste:  waste,
	})
	if err != nil {
		t.Fatalf("NewImpactRecalculationJob: %v", err)
	}
	return jobIface.(*impactRecalculationJob)
}

func TestImpactRecalculationJobRecalculatesEveryUser(t *testing.T) {
	now := time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	waste := &fakeRecalculator{users: []uuid.UUID{uuid.New(), uuid.New()}}
	job := newImpactJob(t, waste)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := now.Add(-defaultImpactLookback); !waste.since.Equal(want) {
		t.Fatalf("expected since %s, got %s", want, waste.since)
	}
	if len(waste.recalced) != 2 {
		t.Fatalf("expected 2 recalculations, got %d", len(waste.recalced))
	}
}

func TestImpactRecalculationJobAggregatesFailures(t *testing.T) {
	bad1, good, bad2 := uuid.New(), uuid.New(), uuid.New()
	waste := &fakeRecalculator{
		users: []uuid.UUID{bad1, good, bad2},
		failFor: map[uuid.UUID]error{
			bad1: errors.New("db down"),
			bad2: errors.New("not found"),
		},
	}
	job := newImpactJob(t, waste)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("expected 2 aggregated errors, got %d", got)
	}
	if len(waste.recalced) != 3 {
		t.Fatalf("expected every user attempted, got %d", len(waste.recalced))
	}
}

func TestImpactRecalculationJobListFailure(t *testing.T) {
	waste := &fakeRecalculator{listErr: errors.New("boom")}
	job := newImpactJob(t, waste)
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(waste.recalced) != 0 {
		t.Fatal("expected no recalculations")
	}
}
