package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmloop-backend/internal/users"
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmloop-backend/pkg/errors"
	"github.com/angelmondragon/farmloop-backend/pkg/logger"
)

const (
	defaultLimit    = 10
	maxLimit        = 100
	defaultCacheTTL = 5 * time.Minute
	weeklyWindow    = 7 * 24 * time.Hour
)

// Service ranks participants by points and reports global impact.
type Service interface {
	Top(ctx context.Context, limit int) (*TopBoard, error)
	UserRank(ctx context.Context, userID uuid.UUID) (*RankEntry, error)
	Weekly(ctx context.Context, limit int) (*WeeklyBoard, error)
	GlobalImpact(ctx context.Context) (*GlobalImpact, error)
}

// Cache is the read-through store for board responses.
type Cache interface {
	CacheKey(parts ...string) string
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// RankEntry is one participant's standing.
type RankEntry struct {
	UserID            uuid.UUID    `json:"user_id"`
	Name              string       `json:"name"`
	Rank              int64        `json:"rank"`
	Percentile        float64      `json:"percentile"`
	RewardPoints      int          `json:"reward_points"`
	TotalWasteReports int          `json:"total_waste_reports"`
	Impact            users.Impact `json:"environmental_impact"`
}

// TopBoard lists the highest point balances.
type TopBoard struct {
	Users       []RankEntry `json:"top_users"`
	GeneratedAt time.Time   `json:"generated_at"`
}

// WeeklyEntry is one participant's points from the last week.
type WeeklyEntry struct {
	UserID       uuid.UUID `json:"user_id"`
	Name         string    `json:"name"`
	Rank         int       `json:"rank"`
	WeeklyPoints int       `json:"weekly_points"`
}

// WeeklyBoard ranks points credited within the window.
type WeeklyBoard struct {
	Users []WeeklyEntry `json:"top_users"`
	Start time.Time     `json:"start"`
	End   time.Time     `json:"end"`
}

// GlobalImpact sums every participant's contribution.
type GlobalImpact struct {
	TotalParticipants   int64                               `json:"total_participants"`
	TotalWasteReports   int64                               `json:"total_waste_reports"`
	TotalWasteCollected decimal.Decimal                     `json:"total_waste_collected"`
	CarbonSaved         decimal.Decimal                     `json:"carbon_saved"`
	TreesSaved          decimal.Decimal                     `json:"trees_saved"`
	WaterSaved          decimal.Decimal                     `json:"water_saved"`
	WasteByType         map[enums.WasteType]decimal.Decimal `json:"waste_by_type"`
}

// ServiceParams bundles the leaderboard dependencies. Cache is optional.
type ServiceParams struct {
	Repo     Repository
	Cache    Cache
	CacheTTL time.Duration
	Logger   *logger.Logger
}

type service struct {
	repo  Repository
	cache Cache
	ttl   time.Duration
	logg  *logger.Logger
	now   func() time.Time
}

// NewService builds a leaderboard service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("leaderboard repository required")
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:  params.Repo,
		cache: params.Cache,
		ttl:   ttl,
		logg:  logg,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Top(ctx context.Context, limit int) (*TopBoard, error) {
	limit = clampLimit(limit)
	var board TopBoard
	err := s.cached(ctx, &board, func() error {
		rows, err := s.repo.TopByPoints(ctx, limit)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load leaderboard")
		}
		total, err := s.repo.CountParticipants(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count participants")
		}
		board = TopBoard{Users: make([]RankEntry, 0, len(rows)), GeneratedAt: s.now()}
		var (
			rank       int64
			lastPoints = -1
		)
		for i, row := range rows {
			// equal balances share a rank
			if row.RewardPoints != lastPoints {
				rank = int64(i + 1)
				lastPoints = row.RewardPoints
			}
			board.Users = append(board.Users, entryFor(row, rank, total))
		}
		return nil
	}, "leaderboard", "top", strconv.Itoa(limit))
	if err != nil {
		return nil, err
	}
	return &board, nil
}

// UserRank is 1 + the number of participants with strictly more points.
func (s *service) UserRank(ctx context.Context, userID uuid.UUID) (*RankEntry, error) {
	row, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	above, err := s.repo.CountAbove(ctx, row.RewardPoints)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rank user")
	}
	total, err := s.repo.CountParticipants(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count participants")
	}
	entry := entryFor(*row, above+1, total)
	return &entry, nil
}

func (s *service) Weekly(ctx context.Context, limit int) (*WeeklyBoard, error) {
	limit = clampLimit(limit)
	var board WeeklyBoard
	err := s.cached(ctx, &board, func() error {
		end := s.now()
		start := end.Add(-weeklyWindow)
		rows, err := s.repo.WeeklyPoints(ctx, start, limit)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load weekly leaderboard")
		}
		board = WeeklyBoard{Users: make([]WeeklyEntry, 0, len(rows)), Start: start, End: end}
		for i, row := range rows {
			board.Users = append(board.Users, WeeklyEntry{
				UserID:       row.UserID,
				Name:         displayName(row.FirstName, row.LastName),
				Rank:         i + 1,
				WeeklyPoints: row.WeeklyPoints,
			})
		}
		return nil
	}, "leaderboard", "weekly", strconv.Itoa(limit))
	if err != nil {
		return nil, err
	}
	return &board, nil
}

func (s *service) GlobalImpact(ctx context.Context) (*GlobalImpact, error) {
	var impact GlobalImpact
	err := s.cached(ctx, &impact, func() error {
		totals, err := s.repo.Totals(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load impact totals")
		}
		byType, err := s.repo.QuantityByType(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load waste distribution")
		}
		impact = GlobalImpact{
			TotalParticipants:   totals.Participants,
			TotalWasteReports:   totals.TotalWasteReports,
			TotalWasteCollected: totals.TotalWasteCollected,
			CarbonSaved:         totals.CarbonSaved,
			TreesSaved:          totals.TreesSaved,
			WaterSaved:          totals.WaterSaved,
			WasteByType:         make(map[enums.WasteType]decimal.Decimal, len(byType)),
		}
		for _, row := range byType {
			impact.WasteByType[row.WasteType] = row.Total
		}
		return nil
	}, "leaderboard", "impact")
	if err != nil {
		return nil, err
	}
	return &impact, nil
}

// cached serves dest from the cache when present, otherwise runs load and
// stores the result. Cache failures degrade to a direct load.
func (s *service) cached(ctx context.Context, dest any, load func() error, keyParts ...string) error {
	if s.cache == nil {
		return load()
	}
	key := s.cache.CacheKey(keyParts...)
	hit, err := s.cache.GetJSON(ctx, key, dest)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "cache_key", key), "leaderboard cache read failed: "+err.Error())
	}
	if hit {
		return nil
	}
	if err := load(); err != nil {
		return err
	}
	if err := s.cache.SetJSON(ctx, key, dest, s.ttl); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "cache_key", key), "leaderboard cache write failed: "+err.Error())
	}
	return nil
}

func entryFor(row UserRow, rank, total int64) RankEntry {
	return RankEntry{
		UserID:            row.ID,
		Name:              displayName(row.FirstName, row.LastName),
		Rank:              rank,
		Percentile:        percentile(rank, total),
		RewardPoints:      row.RewardPoints,
		TotalWasteReports: row.TotalWasteReports,
		Impact: users.Impact{
			CarbonSaved: row.CarbonSaved,
			TreesSaved:  row.TreesSaved,
			WaterSaved:  row.WaterSaved,
		},
	}
}

// percentile is the share of participants ranked below, to one decimal.
func percentile(rank, total int64) float64 {
	if total <= 0 {
		return 0
	}
	below := total - rank
	if below < 0 {
		below = 0
	}
	pct, _ := decimal.NewFromInt(below * 100).Div(decimal.NewFromInt(total)).Round(1).Float64()
	return pct
}

func displayName(first, last string) string {
	initial, _ := utf8.DecodeRuneInString(last)
	if initial == utf8.RuneError {
		return first
	}
	return first + " " + string(initial) + "."
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
