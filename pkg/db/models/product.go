package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmloop-backend/pkg/enums"
)

// Category groups product listings.
type Category struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string    `gorm:"column:name;not null;uniqueIndex"`
	Description string    `gorm:"column:description;not null;default:''"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Product is a farmer's listing. Stock only moves through conditional updates.
type Product struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FarmerID    uuid.UUID         `gorm:"column:farmer_id;type:uuid;not null"`
	CategoryID  *uuid.UUID        `gorm:"column:category_id;type:uuid"`
	Name        string            `gorm:"column:name;not null"`
	Description string            `gorm:"column:description;not null;default:''"`
	Price       decimal.Decimal   `gorm:"column:price;type:numeric(10,2);not null"`
	Unit        enums.ProductUnit `gorm:"column:unit;type:product_unit;not null"`
	Stock       int               `gorm:"column:stock;not null;default:0"`
	IsOrganic   bool              `gorm:"column:is_organic;not null;default:false"`
	IsActive    bool              `gorm:"column:is_active;not null;default:true"`
	ImageURL    *string           `gorm:"column:image_url"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
