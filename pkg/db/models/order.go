package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmloop-backend/pkg/enums"
)

// Order is a consumer purchase. TotalAmount is fixed at creation and only
// reduced once by a points redemption.
type Order struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	Status           enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	TotalAmount      decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	PointsUsed       int                 `gorm:"column:points_used;not null;default:0"`
	PointsEarned     int                 `gorm:"column:points_earned;not null;default:0"`
	PaymentStatus    enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'pending'"`
	GatewayOrderID   *string             `gorm:"column:gateway_order_id"`
	GatewayPaymentID *string             `gorm:"column:gateway_payment_id"`
	ShippingAddress  string              `gorm:"column:shipping_address;not null"`
	Phone            string              `gorm:"column:phone;not null"`
	PaidAt           *time.Time          `gorm:"column:paid_at"`
	CancelledAt      *time.Time          `gorm:"column:cancelled_at"`
	Items            []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Delivery         *Delivery           `gorm:"foreignKey:OrderID"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem snapshots the product price at order time; Price is never rewritten.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Name      string          `gorm:"column:name;not null"`
	Quantity  int             `gorm:"column:quantity;not null"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// Subtotal is price times quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
