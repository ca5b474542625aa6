package points

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmloop-backend/pkg/db/models"
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmloop-backend/pkg/errors"
	"github.com/angelmondragon/farmloop-backend/pkg/metrics"
	"github.com/angelmondragon/farmloop-backend/pkg/pagination"
)

// Service is the single source of truth for a user's spendable points.
type Service interface {
	// WithTx binds the ledger to a caller's transaction so the balance change
	// commits or rolls back with the caller's other writes.
	WithTx(tx *gorm.DB) Service
	Credit(ctx context.Context, input Adjustment) (int, error)
	Debit(ctx context.Context, input Adjustment) (int, error)
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
	History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*HistoryPage, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Adjustment describes one balance change and what caused it.
type Adjustment struct {
	UserID        uuid.UUID
	Points        int
	Reason        enums.PointsReason
	ReferenceType string
	ReferenceID   *uuid.UUID
}

// HistoryPage is one cursor page of ledger entries, newest first.
type HistoryPage struct {
	Balance    int                        `json:"balance"`
	Entries    []models.PointsLedgerEntry `json:"entries"`
	NextCursor string                     `json:"next_cursor,omitempty"`
}

type service struct {
	repo    Repository
	tx      txRunner
	bound   bool
	metrics *metrics.DomainMetrics
}

// NewService wires a points service with the provided repository and tx runner.
func NewService(repo Repository, tx txRunner, m *metrics.DomainMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("points repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, metrics: m}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	if tx == nil {
		return s
	}
	return &service{repo: s.repo.WithTx(tx), tx: s.tx, bound: true, metrics: s.metrics}
}

func (s *service) Credit(ctx context.Context, input Adjustment) (int, error) {
	if err := validateAdjustment(input); err != nil {
		return 0, err
	}
	if input.Points == 0 {
		return s.Balance(ctx, input.UserID)
	}

	var balance int
	err := s.run(ctx, func(repo Repository) error {
		var err error
		balance, err = repo.Increment(ctx, input.UserID, input.Points)
		if err != nil {
			return err
		}
		return repo.AppendEntry(ctx, entryFor(input, input.Points, balance))
	})
	if err != nil {
		s.metrics.PointsOperation("credit", "error")
		return 0, mapRepoError(err, "credit points")
	}
	s.metrics.PointsOperation("credit", "ok")
	return balance, nil
}

func (s *service) Debit(ctx context.Context, input Adjustment) (int, error) {
	if err := validateAdjustment(input); err != nil {
		return 0, err
	}
	if input.Points == 0 {
		return s.Balance(ctx, input.UserID)
	}

	var balance int
	err := s.run(ctx, func(repo Repository) error {
		var err error
		balance, err = repo.DecrementIfAvailable(ctx, input.UserID, input.Points)
		if err != nil {
			return err
		}
		return repo.AppendEntry(ctx, entryFor(input, -input.Points, balance))
	})
	if err != nil {
		if errors.Is(err, errInsufficient) {
			s.metrics.PointsOperation("debit", "insufficient_balance")
		} else {
			s.metrics.PointsOperation("debit", "error")
		}
		return 0, mapRepoError(err, "debit points")
	}
	s.metrics.PointsOperation("debit", "ok")
	return balance, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	balance, err := s.repo.Balance(ctx, userID)
	if err != nil {
		return 0, mapRepoError(err, "load balance")
	}
	return balance, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID, params pagination.Params) (*HistoryPage, error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries, next, err := s.repo.ListEntries(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list points history")
	}
	return &HistoryPage{Balance: balance, Entries: entries, NextCursor: next}, nil
}

func (s *service) run(ctx context.Context, fn func(repo Repository) error) error {
	if s.bound {
		return fn(s.repo)
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(s.repo.WithTx(tx))
	})
}

func validateAdjustment(input Adjustment) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.Points < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "points must be non-negative")
	}
	if !input.Reason.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid points reason %q", input.Reason))
	}
	return nil
}

func entryFor(input Adjustment, delta, balance int) *models.PointsLedgerEntry {
	entry := &models.PointsLedgerEntry{
		UserID:       input.UserID,
		Delta:        delta,
		BalanceAfter: balance,
		Reason:       input.Reason,
		ReferenceID:  input.ReferenceID,
	}
	if input.ReferenceType != "" {
		ref := input.ReferenceType
		entry.ReferenceType = &ref
	}
	return entry
}

func mapRepoError(err error, action string) error {
	switch {
	case errors.Is(err, errInsufficient):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, pkgerrors.ErrInsufficientBalance, "insufficient reward points")
	case errors.Is(err, errUserNotFound):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "user not found")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
	}
}
