package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmloop-backend/internal/cart"
	"github.com/angelmondragon/farmloop-backend/internal/points"
	"github.com/angelmondragon/farmloop-backend/internal/products"
	"github.com/angelmondragon/farmloop-backend/pkg/db/models"
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
	"github.com/angelmondragon/farmloop-backend/pkg/pagination"
)

// Repository defines persistence operations for orders, order items and deliveries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	ListUserOrderSummaries(ctx context.Context, userID uuid.UUID) ([]models.Order, error)

	CreateDelivery(ctx context.Context, delivery *models.Delivery) error
	FindDelivery(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	FindDeliveryByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
	FindDeliveryByTracking(ctx context.Context, tracking string) (*models.Delivery, error)
	UpdateDelivery(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

// PaymentGateway creates remote payment orders and verifies checkout signatures.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, receipt string) (string, error)
	VerifySignature(remoteOrderID, paymentID, signature string) bool
}

// Notifier delivers fire-and-forget user notifications.
type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, kind enums.NotificationType, title, message string, link *string)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productStore interface {
	WithTx(tx *gorm.DB) *products.Repository
}

type cartStore interface {
	WithTx(tx *gorm.DB) cart.CartRepository
}

type pointsLedger interface {
	WithTx(tx *gorm.DB) points.Service
}

type clock func() time.Time
