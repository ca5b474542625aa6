package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmloop-backend/pkg/db/models"
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmloop-backend/pkg/errors"
	"github.com/angelmondragon/farmloop-backend/pkg/pagination"
)

// Service exposes catalog management for farmers and browsing for everyone.
type Service interface {
	Create(ctx context.Context, actorID uuid.UUID, actorType enums.UserType, input CreateProductInput) (*ProductDTO, error)
	Get(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) (*ProductListResult, error)
	Update(ctx context.Context, actorID uuid.UUID, actorType enums.UserType, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DecrementStock(ctx context.Context, productID uuid.UUID, qty int) error
	ListCategories(ctx context.Context) ([]CategoryDTO, error)
}

type service struct {
	repo *Repository
}

// NewService constructs a product service instance.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, actorID uuid.UUID, actorType enums.UserType, input CreateProductInput) (*ProductDTO, error) {
	if actorType != enums.UserTypeFarmer {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only farmers can list products")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !input.Price.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if !input.Unit.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid unit")
	}
	if input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}
	if err := s.ensureCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	product, err := s.repo.CreateProduct(ctx, &models.Product{
		ID:          uuid.New(),
		FarmerID:    actorID,
		CategoryID:  input.CategoryID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Price:       input.Price.Round(2),
		Unit:        input.Unit,
		Stock:       input.Stock,
		IsOrganic:   input.IsOrganic,
		IsActive:    true,
		ImageURL:    input.ImageURL,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create product")
	}
	return toDTO(product), nil
}

func (s *service) Get(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}
	return toDTO(product), nil
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) (*ProductListResult, error) {
	filters.Query = strings.ToLower(strings.TrimSpace(filters.Query))
	rows, next, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "list products")
	}
	result := &ProductListResult{Products: make([]ProductDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		result.Products = append(result.Products, *toDTO(&rows[i]))
	}
	return result, nil
}

func (s *service) Update(ctx context.Context, actorID uuid.UUID, actorType enums.UserType, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	product, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.FarmerID != actorID && actorType != enums.UserTypeAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "product belongs to another farmer")
	}
	if input.Price != nil && !input.Price.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
	}
	if input.Unit != nil && !input.Unit.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid unit")
	}
	if input.Stock != nil && *input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}
	if err := s.ensureCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	applyUpdate(product, input)
	updated, err := s.repo.UpdateProduct(ctx, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product")
	}
	return toDTO(updated), nil
}

func (s *service) DecrementStock(ctx context.Context, productID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return MapStockError(s.repo.DecrementStockIfAvailable(ctx, productID, qty))
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, CategoryDTO{ID: row.ID, Name: row.Name, Description: row.Description})
	}
	return out, nil
}

// MapStockError converts a DecrementStockIfAvailable failure into a typed error.
func MapStockError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pkgerrors.ErrInsufficientStock):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "insufficient stock")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrement stock")
	}
}

func (s *service) load(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return product, nil
}

func (s *service) ensureCategory(ctx context.Context, categoryID *uuid.UUID) error {
	if categoryID == nil {
		return nil
	}
	ok, err := s.repo.CategoryExists(ctx, *categoryID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load category")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown category")
	}
	return nil
}

func applyUpdate(product *models.Product, input UpdateProductInput) {
	if input.Name != nil {
		product.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		product.Description = strings.TrimSpace(*input.Description)
	}
	if input.CategoryID != nil {
		id := *input.CategoryID
		product.CategoryID = &id
	}
	if input.Price != nil {
		product.Price = input.Price.Round(2)
	}
	if input.Unit != nil {
		product.Unit = *input.Unit
	}
	if input.Stock != nil {
		product.Stock = *input.Stock
	}
	if input.IsOrganic != nil {
		product.IsOrganic = *input.IsOrganic
	}
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
	if input.ImageURL != nil {
		product.ImageURL = input.ImageURL
	}
}
