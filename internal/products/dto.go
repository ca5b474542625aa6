package products

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmloop-backend/pkg/db/models"
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
)

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Name        string            `json:"name" validate:"required,min=2,max=200"`
	Description string            `json:"description"`
	CategoryID  *uuid.UUID        `json:"category_id,omitempty"`
	Price       decimal.Decimal   `json:"price"`
	Unit        enums.ProductUnit `json:"unit" validate:"required,enum"`
	Stock       int               `json:"stock" validate:"gte=0"`
	IsOrganic   bool              `json:"is_organic"`
	ImageURL    *string           `json:"image_url,omitempty" validate:"omitempty,url"`
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	Name        *string            `json:"name,omitempty" validate:"omitempty,min=2,max=200"`
	Description *string            `json:"description,omitempty"`
	CategoryID  *uuid.UUID         `json:"category_id,omitempty"`
	Price       *decimal.Decimal   `json:"price,omitempty"`
	Unit        *enums.ProductUnit `json:"unit,omitempty"`
	Stock       *int               `json:"stock,omitempty" validate:"omitempty,gte=0"`
	IsOrganic   *bool              `json:"is_organic,omitempty"`
	IsActive    *bool              `json:"is_active,omitempty"`
	ImageURL    *string            `json:"image_url,omitempty" validate:"omitempty,url"`
}

// ListFilters describe the supported filter knobs for the browse endpoint.
type ListFilters struct {
	CategoryID *uuid.UUID
	FarmerID   *uuid.UUID
	Organic    *bool
	InStock    bool
	Query      string
}

// ProductDTO is the public shape of a listing.
type ProductDTO struct {
	ID          uuid.UUID         `json:"id"`
	FarmerID    uuid.UUID         `json:"farmer_id"`
	CategoryID  *uuid.UUID        `json:"category_id,omitempty"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Price       decimal.Decimal   `json:"price"`
	Unit        enums.ProductUnit `json:"unit"`
	Stock       int               `json:"stock"`
	IsOrganic   bool              `json:"is_organic"`
	IsActive    bool              `json:"is_active"`
	ImageURL    *string           `json:"image_url,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ProductListResult is one cursor page of listings.
type ProductListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// CategoryDTO is the public shape of a product category.
type CategoryDTO struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
}

func toDTO(p *models.Product) *ProductDTO {
	if p == nil {
		return nil
	}
	return &ProductDTO{
		ID:          p.ID,
		FarmerID:    p.FarmerID,
		CategoryID:  p.CategoryID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Unit:        p.Unit,
		Stock:       p.Stock,
		IsOrganic:   p.IsOrganic,
		IsActive:    p.IsActive,
		ImageURL:    p.ImageURL,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
