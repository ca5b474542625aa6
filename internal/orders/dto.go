package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmloop-backend/pkg/db/models"
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
)

// ItemInput requests quantity units of one product.
type ItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gte=1"`
}

// ShippingInput carries where and to whom an order ships.
type ShippingInput struct {
	ShippingAddress string `json:"shipping_address" validate:"required,min=5"`
	Phone           string `json:"phone" validate:"required,min=7,max=20"`
}

// CreateOrderInput is an explicit order built from an item list.
type CreateOrderInput struct {
	Items []ItemInput `json:"items" validate:"dive"`
	ShippingInput
}

// ApplyPointsInput redeems points against an unpaid order.
type ApplyPointsInput struct {
	Points int `json:"points" validate:"required,gte=1"`
}

// VerifyPaymentInput is the checkout widget's success callback payload.
type VerifyPaymentInput struct {
	PaymentID string `json:"payment_id" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

// UpdateStatusInput moves an order along its lifecycle.
type UpdateStatusInput struct {
	Status enums.OrderStatus `json:"status" validate:"required,enum"`
}

// DeliveryInput assigns fulfilment details to a confirmed order.
type DeliveryInput struct {
	DeliveryPersonID  *uuid.UUID `json:"delivery_person_id,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	Notes             string     `json:"notes,omitempty"`
}

// UpdateDeliveryInput moves a delivery along its lifecycle.
type UpdateDeliveryInput struct {
	Status         enums.DeliveryStatus `json:"status" validate:"required,enum"`
	ActualDelivery *time.Time           `json:"actual_delivery,omitempty"`
	Notes          *string              `json:"notes,omitempty"`
}

// OrderItemDTO is an order line with its snapshotted price.
type OrderItemDTO struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// DeliveryDTO is the public shape of a delivery.
type DeliveryDTO struct {
	ID                uuid.UUID            `json:"id"`
	OrderID           uuid.UUID            `json:"order_id"`
	DeliveryPersonID  *uuid.UUID           `json:"delivery_person_id,omitempty"`
	Status            enums.DeliveryStatus `json:"status"`
	TrackingNumber    string               `json:"tracking_number"`
	EstimatedDelivery *time.Time           `json:"estimated_delivery,omitempty"`
	ActualDelivery    *time.Time           `json:"actual_delivery,omitempty"`
	Notes             string               `json:"notes,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// OrderDTO is the public shape of an order.
type OrderDTO struct {
	ID               uuid.UUID           `json:"id"`
	UserID           uuid.UUID           `json:"user_id"`
	Status           enums.OrderStatus   `json:"status"`
	PaymentStatus    enums.PaymentStatus `json:"payment_status"`
	TotalAmount      decimal.Decimal     `json:"total_amount"`
	PointsUsed       int                 `json:"points_used"`
	PointsEarned     int                 `json:"points_earned"`
	GatewayOrderID   *string             `json:"gateway_order_id,omitempty"`
	GatewayPaymentID *string             `json:"gateway_payment_id,omitempty"`
	ShippingAddress  string              `json:"shipping_address"`
	Phone            string              `json:"phone"`
	Items            []OrderItemDTO      `json:"items"`
	Delivery         *DeliveryDTO        `json:"delivery,omitempty"`
	PaidAt           *time.Time          `json:"paid_at,omitempty"`
	CancelledAt      *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// OrderList is one cursor page of a user's orders.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// Statistics summarises a user's order history.
type Statistics struct {
	TotalOrders  int                       `json:"total_orders"`
	ByStatus     map[enums.OrderStatus]int `json:"by_status"`
	TotalSpent   decimal.Decimal           `json:"total_spent"`
	PointsUsed   int                       `json:"points_used"`
	PointsEarned int                       `json:"points_earned"`
}

// ApplyPointsResult reports the discounted order and the remaining balance.
type ApplyPointsResult struct {
	Order         *OrderDTO       `json:"order"`
	NewTotal      decimal.Decimal `json:"new_total"`
	PointsBalance int             `json:"points_balance"`
}

func toOrderDTO(o *models.Order) *OrderDTO {
	if o == nil {
		return nil
	}
	dto := &OrderDTO{
		ID:               o.ID,
		UserID:           o.UserID,
		Status:           o.Status,
		PaymentStatus:    o.PaymentStatus,
		TotalAmount:      o.TotalAmount,
		PointsUsed:       o.PointsUsed,
		PointsEarned:     o.PointsEarned,
		GatewayOrderID:   o.GatewayOrderID,
		GatewayPaymentID: o.GatewayPaymentID,
		ShippingAddress:  o.ShippingAddress,
		Phone:            o.Phone,
		Items:            make([]OrderItemDTO, 0, len(o.Items)),
		Delivery:         toDeliveryDTO(o.Delivery),
		PaidAt:           o.PaidAt,
		CancelledAt:      o.CancelledAt,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	for _, item := range o.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Subtotal:  item.Subtotal(),
		})
	}
	return dto
}

func toDeliveryDTO(d *models.Delivery) *DeliveryDTO {
	if d == nil {
		return nil
	}
	return &DeliveryDTO{
		ID:                d.ID,
		OrderID:           d.OrderID,
		DeliveryPersonID:  d.DeliveryPersonID,
		Status:            d.Status,
		TrackingNumber:    d.TrackingNumber,
		EstimatedDelivery: d.EstimatedDelivery,
		ActualDelivery:    d.ActualDelivery,
		Notes:             d.Notes,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}
