package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/farmloop-backend/internal/users"
	"github.com/angelmondragon/farmloop-backend/pkg/logger"
)

const defaultImpactLookback = 24 * time.Hour

type ImpactRecalculationJobParams struct {
	Logger   *logger.Logger
	Waste    impactRecalculator
	Lookback time.Duration
}

type impactRecalculator interface {
	RecentlyCreditedUsers(ctx context.Context, since time.Time) ([]uuid.UUID, error)
	RecalculateEnvironmentalImpact(ctx context.Context, userID uuid.UUID) (*users.Impact, error)
}

// NewImpactRecalculationJob rebuilds the stored impact figures of users whose
// reports were credited within the lookback window.
func NewImpactRecalculationJob(params ImpactRecalculationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Waste == nil {
		return nil, fmt.Errorf("waste service required")
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = defaultImpactLookback
	}
	return &impactRecalculationJob{
		logg:     params.Logger,
		waste:    params.Waste,
		lookback: lookback,
		now:      time.Now,
	}, nil
}

type impactRecalculationJob struct {
	logg     *logger.Logger
	waste    impactRecalculator
	lookback time.Duration
	now      func() time.Time
}

func (j *impactRecalculationJob) Name() string { return "impact-recalculation" }

// Run keeps going past individual failures and reports them together.
func (j *impactRecalculationJob) Run(ctx context.Context) error {
	since := j.now().UTC().Add(-j.lookback)
	userIDs, err := j.waste.RecentlyCreditedUsers(ctx, since)
	if err != nil {
		return fmt.Errorf("list credited users: %w", err)
	}

	var (
		errs    error
		updated int
	)
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		if _, err := j.waste.RecalculateEnvironmentalImpact(ctx, userID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("user %s: %w", userID, err))
			continue
		}
		updated++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"since":   since,
		"users":   len(userIDs),
		"updated": updated,
		"failed":  len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "impact recalculation complete")
	return errs
}
