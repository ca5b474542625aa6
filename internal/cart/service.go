package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmloop-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/farmloop-backend/pkg/errors"
)

// Service exposes the shopping cart of a single user.
type Service interface {
	Add(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartDTO, error)
	UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*CartDTO, error)
	Remove(ctx context.Context, userID, itemID uuid.UUID) (*CartDTO, error)
	List(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo     CartRepository
	tx       txRunner
	products productLoader
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, products productLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	return &service{repo: repo, tx: tx, products: products}, nil
}

// Add merges the quantity into an existing line for the same product.
func (s *service) Add(ctx context.Context, userID uuid.UUID, input AddItemInput) (*CartDTO, error) {
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	product, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not available")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByUserAndProduct(ctx, userID, input.ProductID)
		switch {
		case err == nil:
			qty := existing.Quantity + input.Quantity
			if qty > product.Stock {
				return insufficientStock(product.Stock)
			}
			return repo.UpdateQuantity(ctx, existing.ID, qty)
		case errors.Is(err, gorm.ErrRecordNotFound):
			if input.Quantity > product.Stock {
				return insufficientStock(product.Stock)
			}
			return repo.Create(ctx, &models.CartItem{
				ID:        uuid.New(),
				UserID:    userID,
				ProductID: input.ProductID,
				Quantity:  input.Quantity,
			})
		default:
			return err
		}
	})
	if err != nil {
		return nil, mapError(err, "add cart item")
	}
	return s.List(ctx, userID)
}

func (s *service) UpdateQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*CartDTO, error) {
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	item, err := s.repo.FindByIDAndUser(ctx, itemID, userID)
	if err != nil {
		return nil, mapError(err, "load cart item")
	}
	if item.Product != nil && quantity > item.Product.Stock {
		return nil, insufficientStock(item.Product.Stock)
	}
	if err := s.repo.UpdateQuantity(ctx, item.ID, quantity); err != nil {
		return nil, mapError(err, "update cart item")
	}
	return s.List(ctx, userID)
}

func (s *service) Remove(ctx context.Context, userID, itemID uuid.UUID) (*CartDTO, error) {
	removed, err := s.repo.Delete(ctx, itemID, userID)
	if err != nil {
		return nil, mapError(err, "remove cart item")
	}
	if !removed {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return s.List(ctx, userID)
}

func (s *service) List(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, mapError(err, "list cart")
	}
	return buildCart(items), nil
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.Clear(ctx, userID); err != nil {
		return mapError(err, "clear cart")
	}
	return nil
}

func insufficientStock(available int) error {
	return pkgerrors.Wrap(pkgerrors.CodeConflict, pkgerrors.ErrInsufficientStock, "insufficient stock").
		WithDetails(map[string]any{"available": available})
}

func mapError(err error, msg string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
