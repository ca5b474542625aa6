package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmloop-backend/pkg/db/models"
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
)

// AddItemInput adds quantity units of a product to the caller's cart.
type AddItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gte=1"`
}

// UpdateQuantityInput replaces the quantity of one cart line.
type UpdateQuantityInput struct {
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

// ItemDTO is one cart line priced at the product's current price.
type ItemDTO struct {
	ID        uuid.UUID         `json:"id"`
	ProductID uuid.UUID         `json:"product_id"`
	Name      string            `json:"name"`
	Unit      enums.ProductUnit `json:"unit"`
	Price     decimal.Decimal   `json:"price"`
	Quantity  int               `json:"quantity"`
	Subtotal  decimal.Decimal   `json:"subtotal"`
	Available bool              `json:"available"`
}

// CartDTO is the caller's full cart.
type CartDTO struct {
	Items     []ItemDTO       `json:"items"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

func buildCart(items []models.CartItem) *CartDTO {
	out := &CartDTO{Items: make([]ItemDTO, 0, len(items)), Subtotal: decimal.Zero}
	for _, item := range items {
		line := ItemDTO{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Subtotal:  decimal.Zero,
		}
		if item.Product != nil {
			line.Name = item.Product.Name
			line.Unit = item.Product.Unit
			line.Price = item.Product.Price
			line.Available = item.Product.IsActive && item.Product.Stock >= item.Quantity
			line.Subtotal = item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		}
		out.Items = append(out.Items, line)
		out.ItemCount += item.Quantity
		out.Subtotal = out.Subtotal.Add(line.Subtotal)
	}
	return out
}
