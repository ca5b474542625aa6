package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmloop-backend/pkg/enums"
)

// User is the account plus the reward and impact aggregates the ledger and
// waste services maintain. RewardPoints is never written directly outside the
// points repository.
type User struct {
	ID                  uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email               string          `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash        string          `gorm:"column:password_hash;not null"`
	FirstName           string          `gorm:"column:first_name;not null"`
	LastName            string          `gorm:"column:last_name;not null"`
	Phone               *string         `gorm:"column:phone"`
	Address             *string         `gorm:"column:address"`
	UserType            enums.UserType  `gorm:"column:user_type;type:user_type;not null;default:'consumer'"`
	IsActive            bool            `gorm:"column:is_active;not null;default:true"`
	RewardPoints        int             `gorm:"column:reward_points;not null;default:0"`
	CarbonSaved         decimal.Decimal `gorm:"column:carbon_saved;type:numeric(12,3);not null;default:0"`
	TreesSaved          decimal.Decimal `gorm:"column:trees_saved;type:numeric(12,3);not null;default:0"`
	WaterSaved          decimal.Decimal `gorm:"column:water_saved;type:numeric(12,3);not null;default:0"`
	TotalWasteReports   int             `gorm:"column:total_waste_reports;not null;default:0"`
	TotalWasteCollected decimal.Decimal `gorm:"column:total_waste_collected;type:numeric(12,2);not null;default:0"`
	LastLoginAt         *time.Time      `gorm:"column:last_login_at"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
