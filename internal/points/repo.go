package points

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmloop-backend/pkg/db/models"
	"github.com/angelmondragon/farmloop-backend/pkg/pagination"
)

var (
	errUserNotFound = errors.New("user not found")
	errInsufficient = errors.New("balance below debit amount")
)

// Repository owns every write to users.reward_points.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Increment(ctx context.Context, userID uuid.UUID, points int) (int, error)
	DecrementIfAvailable(ctx context.Context, userID uuid.UUID, points int) (int, error)
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
	AppendEntry(ctx context.Context, entry *models.PointsLedgerEntry) error
	ListEntries(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.PointsLedgerEntry, string, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a points repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Increment(ctx context.Context, userID uuid.UUID, points int) (int, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumns(map[string]any{
			"reward_points": gorm.Expr("reward_points + ?", points),
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, errUserNotFound
	}
	return r.Balance(ctx, userID)
}

// DecrementIfAvailable is the only debit path: the balance guard lives in the
// WHERE clause so concurrent debits serialize on the row and never go negative.
func (r *repository) DecrementIfAvailable(ctx context.Context, userID uuid.UUID, points int) (int, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND reward_points >= ?", userID, points).
		UpdateColumns(map[string]any{
			"reward_points": gorm.Expr("reward_points - ?", points),
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.Balance(ctx, userID); err != nil {
			return 0, err
		}
		return 0, errInsufficient
	}
	return r.Balance(ctx, userID)
}

func (r *repository) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Select("id", "reward_points").
		Where("id = ?", userID).
		Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, errUserNotFound
	}
	if err != nil {
		return 0, err
	}
	return user.RewardPoints, nil
}

func (r *repository) AppendEntry(ctx context.Context, entry *models.PointsLedgerEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListEntries(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.PointsLedgerEntry, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Scopes(pagination.Newest(cursor, params.Limit))

	var entries []models.PointsLedgerEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, "", err
	}

	entries, next := pagination.Trim(entries, params.Limit, func(e models.PointsLedgerEntry) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	})
	return entries, next, nil
}
