package users

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmloop-backend/pkg/db/models"
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID                  uuid.UUID      `json:"id"`
	Email               string         `json:"email"`
	FirstName           string         `json:"first_name"`
	LastName            string         `json:"last_name"`
	Phone               *string        `json:"phone,omitempty"`
	Address             *string        `json:"address,omitempty"`
	UserType            enums.UserType `json:"user_type"`
	IsActive            bool           `json:"is_active"`
	RewardPoints        int            `json:"reward_points"`
	TotalWasteReports   int            `json:"total_waste_reports"`
	TotalWasteCollected string         `json:"total_waste_collected"`
	Impact              Impact         `json:"impact"`
	LastLoginAt         *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// Impact is the environmental savings attributed to a user's waste reports.
type Impact struct {
	CarbonSaved decimal.Decimal `json:"carbon_saved"`
	TreesSaved  decimal.Decimal `json:"trees_saved"`
	WaterSaved  decimal.Decimal `json:"water_saved"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Phone        *string
	Address      *string
	UserType     enums.UserType
	IsActive     *bool
}

// UpdateProfileInput carries optional profile edits.
type UpdateProfileInput struct {
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,min=1"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,min=1"`
	Phone     *string `json:"phone,omitempty" validate:"omitempty,min=7,max=20"`
	Address   *string `json:"address,omitempty" validate:"omitempty,min=5"`
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:                  u.ID,
		Email:               u.Email,
		FirstName:           u.FirstName,
		LastName:            u.LastName,
		Phone:               u.Phone,
		Address:             u.Address,
		UserType:            u.UserType,
		IsActive:            u.IsActive,
		RewardPoints:        u.RewardPoints,
		TotalWasteReports:   u.TotalWasteReports,
		TotalWasteCollected: u.TotalWasteCollected.StringFixed(2),
		Impact: Impact{
			CarbonSaved: u.CarbonSaved,
			TreesSaved:  u.TreesSaved,
			WaterSaved:  u.WaterSaved,
		},
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	isActive := true
	if c.IsActive != nil {
		isActive = *c.IsActive
	}
	userType := c.UserType
	if userType == "" {
		userType = enums.UserTypeConsumer
	}

	return &models.User{
		ID:           uuid.New(),
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		Phone:        c.Phone,
		Address:      c.Address,
		UserType:     userType,
		IsActive:     isActive,
	}
}
