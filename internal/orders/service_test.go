package orders

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmloop-backend/internal/cart"
	"github.com/angelmondragon/farmloop-backend/internal/points"
	"github.com/angelmondragon/farmloop-backend/internal/products"
	"github.com/angelmondragon/farmloop-backend/pkg/db"
	"github.com/angelmondragon/farmloop-backend/pkg/db/dbtest"
	"github.com/angelmondragon/farmloop-backend/pkg/db/models"
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmloop-backend/pkg/errors"
	"github.com/angelmondragon/farmloop-backend/pkg/pagination"
	"github.com/angelmondragon/farmloop-backend/pkg/razorpay"
)

const gatewaySecret = "test-secret"

type stubGateway struct {
	mu      sync.Mutex
	fail    bool
	calls   int
	amounts []int64
}

func (g *stubGateway) CreateOrder(ctx context.Context, amountMinor int64, receipt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.fail {
		return "", errors.New("gateway down")
	}
	g.amounts = append(g.amounts, amountMinor)
	return "order_remote_" + uuid.NewString()[:8], nil
}

func (g *stubGateway) VerifySignature(remoteOrderID, paymentID, signature string) bool {
	return razorpay.VerifyPaymentSignature(gatewaySecret, remoteOrderID, paymentID, signature)
}

// checkoutSignature is what the checkout widget returns after a successful payment.
func checkoutSignature(remoteOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(gatewaySecret))
	mac.Write([]byte(remoteOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

type recordedNotification struct {
	userID uuid.UUID
	kind   enums.NotificationType
	title  string
}

type stubNotifier struct {
	mu   sync.Mutex
	sent []recordedNotification
}

func (n *stubNotifier) Notify(ctx context.Context, userID uuid.UUID, kind enums.NotificationType, title, message string, link *string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, recordedNotification{userID: userID, kind: kind, title: title})
}

func (n *stubNotifier) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.title)
	}
	return out
}

type fixture struct {
	conn     *gorm.DB
	svc      Service
	gateway  *stubGateway
	notifier *stubNotifier
	products *products.Repository
	cart     cart.CartRepository
	points   points.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.Wrap(conn)
	ledger, err := points.NewService(points.NewRepository(conn), client, nil)
	require.NoError(t, err)

	f := &fixture{
		conn:     conn,
		gateway:  &stubGateway{},
		notifier: &stubNotifier{},
		products: products.NewRepository(conn),
		cart:     cart.NewRepository(conn),
		points:   ledger,
	}
	f.svc, err = NewService(ServiceParams{
		Repo:     NewRepository(conn),
		Tx:       client,
		Products: f.products,
		Cart:     f.cart,
		Points:   ledger,
		Gateway:  f.gateway,
		Notifier: f.notifier,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) user(t *testing.T, balance int) uuid.UUID {
	t.Helper()
	user := models.User{
		ID:           uuid.New(),
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "hash",
		FirstName:    "Test",
		LastName:     "User",
		UserType:     enums.UserTypeConsumer,
		IsActive:     true,
		RewardPoints: balance,
	}
	require.NoError(t, f.conn.Create(&user).Error)
	return user.ID
}

func (f *fixture) product(t *testing.T, price string, stock int) *models.Product {
	t.Helper()
	p, err := f.products.CreateProduct(context.Background(), &models.Product{
		FarmerID: uuid.New(),
		Name:     "Carrots",
		Price:    decimal.RequireFromString(price),
		Unit:     enums.ProductUnitKilogram,
		Stock:    stock,
		IsActive: true,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	p, err := f.products.FindByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func (f *fixture) balance(t *testing.T, userID uuid.UUID) int {
	t.Helper()
	b, err := f.points.Balance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

var shipping = ShippingInput{ShippingAddress: "12 Orchard Lane", Phone: "+919800000000"}

func (f *fixture) order(t *testing.T, userID uuid.UUID, items ...ItemInput) *OrderDTO {
	t.Helper()
	order, err := f.svc.CreateOrder(context.Background(), userID, CreateOrderInput{Items: items, ShippingInput: shipping})
	require.NoError(t, err)
	return order
}

func TestCreateOrderSnapshotsPricesAndDecrementsStock(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, 0)
	carrots := f.product(t, "40.00", 10)
	beans := f.product(t, "25.50", 5)

	order := f.order(t, user,
		ItemInput{ProductID: carrots.ID, Quantity: 2},
		ItemInput{ProductID: beans.ID, Quantity: 1},
		ItemInput{ProductID: carrots.ID, Quantity: 1},
	)

	require.Equal(t, enums.OrderStatusPending, order.Status)
	require.Equal(t, enums.PaymentStatusPending, order.PaymentStatus)
	require.True(t, order.TotalAmount.Equal(decimal.RequireFromString("145.50")), order.TotalAmount.String())
	require.Len(t, order.Items, 2)
	require.NotNil(t, order.GatewayOrderID)
	require.Equal(t, []int64{14550}, f.gateway.amounts)
	require.Equal(t, 7, f.stock(t, carrots.ID))
	require.Equal(t, 4, f.stock(t, beans.ID))

	// later price changes never touch placed orders
	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", carrots.ID).Update("price", decimal.NewFromInt(99)).Error)
	got, err := f.svc.Get(context.Background(), user, enums.UserTypeConsumer, order.ID)
	require.NoError(t, err)
	require.True(t, got.TotalAmount.Equal(decimal.RequireFromString("145.50")))
}

func TestCreateOrderEmptyPersistsNothing(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, 0)

	_, err := f.svc.CreateOrder(context.Background(), user, CreateOrderInput{ShippingInput: shipping})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.True(t, errors.Is(err, pkgerrors.ErrEmptyCart))

	var count int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&count).Error)
	require.Zero(t, count)
	require.Zero(t, f.gateway.calls)
}

func TestCreateOrderInsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, 0)
	plenty := f.product(t, "10", 10)
	scarce := f.product(t, "10", 1)

	_, err := f.svc.CreateOrder(context.Background(), user, CreateOrderInput{
		Items: []ItemInput{
			{ProductID: plenty.ID, Quantity: 3},
			{ProductID: scarce.ID, Quantity: 2},
		},
		ShippingInput: shipping,
	})
	require.True(t, errors.Is(err, pkgerrors.ErrInsufficientStock), "got %v", err)
	require.Equal(t, 10, f.stock(t, plenty.ID))
	require.Equal(t, 1, f.stock(t, scarce.ID))
}

func TestCreateOrderGatewayFailureKeepsOrder(t *testing.T) {
	f := newFixture(t)
	user := f.user(t, 0)
	carrots := f.product(t, "10", 5)
	f.gateway.fail = true

	_, err := f.svc.CreateOrder(context.Background(), user, CreateOrderInput{
		Items:         []ItemInput{{ProductID: carrots.ID, Quantity: 1}},
		ShippingInput: shipping,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	require.True(t, errors.Is(err, pkgerrors.ErrPaymentGateway))

	list, err := f.svc.List(context.Background(), user, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	require.Equal(t, enums.PaymentStatusPending, list.Orders[0].PaymentStatus)
	require.Nil(t, list.Orders[0].GatewayOrderID)

	f.gateway.fail = false
	retried, err := f.svc.RetryPaymentOrder(context.Background(), user, list.Orders[0].ID)
	require.NoError(t, err)
	require.NotNil(t, retried.GatewayOrderID)
}

func TestCheckoutClearsCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.user(t, 0)
	carrots := f.product(t, "12", 10)
	require.NoError(t, f.cart.Create(ctx, &models.CartItem{UserID: user, ProductID: carrots.ID, Quantity: 3}))

	order, err := f.svc.Checkout(ctx, user, shipping)
	require.NoError(t, err)
	require.True(t, order.TotalAmount.Equal(decimal.NewFromInt(36)))

	items, err := f.cart.ListByUser(ctx, user)
	require.NoError(t, err)
	require.Empty(t, items)

	_, err = f.svc.Checkout(ctx, user, shipping)
	require.True(t, errors.Is(err, pkgerrors.ErrEmptyCart))
}

func TestApplyPointsDebitsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.user(t, 100)
	carrots := f.product(t, "150", 5)
	order := f.order(t, user, ItemInput{ProductID: carrots.ID, Quantity: 1})

	res, err := f.svc.ApplyPoints(ctx, user, order.ID, 30)
	require.NoError(t, err)
	require.True(t, res.NewTotal.Equal(decimal.NewFromInt(120)))
	require.Equal(t, 70, res.PointsBalance)
	require.Equal(t, 30, res.Order.PointsUsed)
	require.Equal(t, []int64{15000, 12000}, f.gateway.amounts)

	_, err = f.svc.ApplyPoints(ctx, user, order.ID, 10)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	require.Equal(t, 70, f.balance(t, user))
}

func TestApplyPointsGatewayFailureBlocksStalePayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.user(t, 100)
	carrots := f.product(t, "500", 5)
	order := f.order(t, user, ItemInput{ProductID: carrots.ID, Quantity: 1})
	staleRemote := *order.GatewayOrderID

	f.gateway.fail = true
	res, err := f.svc.ApplyPoints(ctx, user, order.ID, 50)
	require.NoError(t, err)
	require.True(t, res.NewTotal.Equal(decimal.NewFromInt(450)))
	require.Nil(t, res.Order.GatewayOrderID)
	require.Equal(t, 50, f.balance(t, user))

	// a payment made against the pre-discount remote order is refused
	_, err = f.svc.VerifyPayment(ctx, user, order.ID, VerifyPaymentInput{
		PaymentID: "pay_1",
		Signature: checkoutSignature(staleRemote, "pay_1"),
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)
	got, err := f.svc.Get(ctx, user, enums.UserTypeConsumer, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPending, got.PaymentStatus)

	f.gateway.fail = false
	retried, err := f.svc.RetryPaymentOrder(ctx, user, order.ID)
	require.NoError(t, err)
	require.NotNil(t, retried.GatewayOrderID)
	require.NotEqual(t, staleRemote, *retried.GatewayOrderID)
	require.Equal(t, []int64{50000, 45000}, f.gateway.amounts)

	_, err = f.svc.VerifyPayment(ctx, user, order.ID, VerifyPaymentInput{
		PaymentID: "pay_1",
		Signature: checkoutSignature(staleRemote, "pay_1"),
	})
	require.True(t, errors.Is(err, pkgerrors.ErrPaymentVerificationFailed), "got %v", err)

	paid, err := f.svc.VerifyPayment(ctx, user, order.ID, VerifyPaymentInput{
		PaymentID: "pay_2",
		Signature: checkoutSignature(*retried.GatewayOrderID, "pay_2"),
	})
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusCompleted, paid.PaymentStatus)
	require.Equal(t, 45, paid.PointsEarned)
}

func TestApplyPointsInsufficientBalanceLeavesOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.user(t, 20)
	carrots := f.product(t, "150", 5)
	order := f.order(t, user, ItemInput{ProductID: carrots.ID, Quantity: 1})

	_, err := f.svc.ApplyPoints(ctx, user, order.ID, 50)
	require.True(t, errors.Is(err, pkgerrors.ErrApplyPointsFailed))
	require.True(t, errors.Is(err, pkgerrors.ErrInsufficientBalance))

	got, err := f.svc.Get(ctx, user, enums.UserTypeConsumer, order.ID)
	require.NoError(t, err)
	require.True(t, got.TotalAmount.Equal(decimal.NewFromInt(150)))
	require.Zero(t, got.PointsUsed)
	require.Equal(t, 20, f.balance(t, user))
}

func TestApplyPointsBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.user(t, 500)
	carrots := f.product(t, "50", 5)
	order := f.order(t, user, ItemInput{ProductID: carrots.ID, Quantity: 1})

	_, err := f.svc.ApplyPoints(ctx, user, order.ID, 0)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = f.svc.ApplyPoints(ctx, user, order.ID, 51)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = f.svc.ApplyPoints(ctx, uuid.New(), order.ID, 10)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	require.Equal(t, 500, f.balance(t, user))

	res, err := f.svc.ApplyPoints(ctx, user, order.ID, 50)
	require.NoError(t, err)
	require.True(t, res.NewTotal.IsZero())
	require.Equal(t, enums.PaymentStatusCompleted, res.Order.PaymentStatus)
	require.Equal(t, enums.OrderStatusConfirmed, res.Order.Status)
}

func TestApplyPointsRejectedAfterPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.user(t, 100)
	carrots := f.product(t, "100", 5)
	order := f.order(t, user, ItemInput{ProductID: carrots.ID, Quantity: 1})
	_, err := f.svc.VerifyPayment(ctx, user, order.ID, VerifyPaymentInput{
		PaymentID: "pay_1",
		Signature: checkoutSignature(*order.GatewayOrderID, "pay_1"),
	})
	require.NoError(t, err)

	_, err = f.svc.ApplyPoints(ctx, user, order.ID, 10)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	require.Equal(t, 110, f.balance(t, user))
}

func TestVerifyPaymentCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.user(t, 0)
	carrots := f.product(t, "129.99", 5)
	order := f.order(t, user, ItemInput{ProductID: carrots.ID, Quantity: 1})
	input := VerifyPaymentInput{
		PaymentID: "pay_123",
		Signature: checkoutSignature(*order.GatewayOrderID, "pay_123"),
	}

	paid, err := f.svc.VerifyPayment(ctx, user, order.ID, input)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusCompleted, paid.PaymentStatus)
	require.Equal(t, enums.OrderStatusConfirmed, paid.Status)
	require.Equal(t, 12, paid.PointsEarned)
	require.Equal(t, "pay_123", *paid.GatewayPaymentID)
	require.Equal(t, 12, f.balance(t, user))

	again, err := f.svc.VerifyPayment(ctx, user, order.ID, input)
	require.NoError(t, err)
	require.Equal(t, paid.PointsEarned, again.PointsEarned)
	require.Equal(t, 12, f.balance(t, user))
	require.Contains(t, f.notifier.titles(), "Payment Successful")
}

func TestVerifyPaymentBadSignatureChangesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.user(t, 0)
	carrots := f.product(t, "100", 5)
	order := f.order(t, user, ItemInput{ProductID: carrots.ID, Quantity: 1})

	_, err := f.svc.VerifyPayment(ctx, user, order.ID, VerifyPaymentInput{PaymentID: "pay_1", Signature: "deadbeef"})
	require.True(t, errors.Is(err, pkgerrors.ErrPaymentVerificationFailed))

	got, err := f.svc.Get(ctx, user, enums.UserTypeConsumer, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPending, got.PaymentStatus)
	require.Zero(t, f.balance(t, user))
}

func TestUpdateStatusFollowsLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.user(t, 0)
	carrots := f.product(t, "10", 5)
	order := f.order(t, user, ItemInput{ProductID: carrots.ID, Quantity: 1})

	_, err := f.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusShipped)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	same, err := f.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusPending)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusPending, same.Status)

	for _, next := range []enums.OrderStatus{enums.OrderStatusConfirmed, enums.OrderStatusProcessing, enums.OrderStatusShipped, enums.OrderStatusDelivered} {
		updated, err := f.svc.UpdateStatus(ctx, order.ID, next)
		require.NoError(t, err)
		require.Equal(t, next, updated.Status)
	}

	_, err = f.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusCancelled)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.UpdateStatus(ctx, order.ID, "lost")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCancelKeepsRedeemedPoints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.user(t, 40)
	carrots := f.product(t, "100", 5)
	order := f.order(t, user, ItemInput{ProductID: carrots.ID, Quantity: 1})
	_, err := f.svc.ApplyPoints(ctx, user, order.ID, 40)
	require.NoError(t, err)

	cancelled, err := f.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusCancelled)
	require.NoError(t, err)
	require.NotNil(t, cancelled.CancelledAt)
	require.Zero(t, f.balance(t, user))

	_, err = f.svc.VerifyPayment(ctx, user, order.ID, VerifyPaymentInput{PaymentID: "p", Signature: "s"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestDeliveryLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.user(t, 0)
	carrots := f.product(t, "10", 5)
	order := f.order(t, user, ItemInput{ProductID: carrots.ID, Quantity: 1})

	_, err := f.svc.CreateDelivery(ctx, order.ID, DeliveryInput{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = f.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusConfirmed)
	require.NoError(t, err)

	delivery, err := f.svc.CreateDelivery(ctx, order.ID, DeliveryInput{Notes: "leave at gate"})
	require.NoError(t, err)
	require.Equal(t, enums.DeliveryStatusAssigned, delivery.Status)
	require.Regexp(t, `^FL\d{8}[0-9A-F]{8}$`, delivery.TrackingNumber)

	got, err := f.svc.Get(ctx, user, enums.UserTypeConsumer, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusProcessing, got.Status)

	_, err = f.svc.CreateDelivery(ctx, order.ID, DeliveryInput{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	_, err = f.svc.UpdateDeliveryStatus(ctx, delivery.ID, UpdateDeliveryInput{Status: enums.DeliveryStatusDelivered})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.UpdateDeliveryStatus(ctx, delivery.ID, UpdateDeliveryInput{Status: enums.DeliveryStatusInTransit})
	require.NoError(t, err)
	_, err = f.svc.UpdateDeliveryStatus(ctx, delivery.ID, UpdateDeliveryInput{Status: enums.DeliveryStatusPickedUp})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	at := time.Now().UTC()
	done, err := f.svc.UpdateDeliveryStatus(ctx, delivery.ID, UpdateDeliveryInput{Status: enums.DeliveryStatusDelivered, ActualDelivery: &at})
	require.NoError(t, err)
	require.NotNil(t, done.ActualDelivery)

	got, err = f.svc.Get(ctx, user, enums.UserTypeConsumer, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusDelivered, got.Status)

	tracked, err := f.svc.TrackDelivery(ctx, user, enums.UserTypeConsumer, delivery.TrackingNumber)
	require.NoError(t, err)
	require.Equal(t, delivery.ID, tracked.ID)
}

func TestTrackDeliveryOnlyForOwnerOrAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, 0)
	stranger := f.user(t, 0)
	carrots := f.product(t, "10", 5)
	order := f.order(t, owner, ItemInput{ProductID: carrots.ID, Quantity: 1})
	_, err := f.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusConfirmed)
	require.NoError(t, err)
	delivery, err := f.svc.CreateDelivery(ctx, order.ID, DeliveryInput{})
	require.NoError(t, err)

	_, err = f.svc.TrackDelivery(ctx, stranger, enums.UserTypeConsumer, delivery.TrackingNumber)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
	_, err = f.svc.TrackDelivery(ctx, stranger, enums.UserTypeFarmer, delivery.TrackingNumber)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	asAdmin, err := f.svc.TrackDelivery(ctx, stranger, enums.UserTypeAdmin, strings.ToLower(delivery.TrackingNumber))
	require.NoError(t, err)
	require.Equal(t, delivery.ID, asAdmin.ID)

	_, err = f.svc.TrackDelivery(ctx, owner, enums.UserTypeConsumer, "FL20260101DEADBEEF")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestActualDeliveryOnlyRecordedWhenDelivered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.user(t, 0)
	carrots := f.product(t, "10", 5)
	order := f.order(t, user, ItemInput{ProductID: carrots.ID, Quantity: 1})
	_, err := f.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusConfirmed)
	require.NoError(t, err)
	delivery, err := f.svc.CreateDelivery(ctx, order.ID, DeliveryInput{})
	require.NoError(t, err)

	early := time.Now().UTC()
	_, err = f.svc.UpdateDeliveryStatus(ctx, delivery.ID, UpdateDeliveryInput{Status: enums.DeliveryStatusInTransit, ActualDelivery: &early})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	var stored models.Delivery
	require.NoError(t, f.conn.First(&stored, "id = ?", delivery.ID).Error)
	require.Equal(t, enums.DeliveryStatusAssigned, stored.Status)
	require.Nil(t, stored.ActualDelivery)

	moving, err := f.svc.UpdateDeliveryStatus(ctx, delivery.ID, UpdateDeliveryInput{Status: enums.DeliveryStatusInTransit})
	require.NoError(t, err)
	require.Nil(t, moving.ActualDelivery)

	_, err = f.svc.UpdateDeliveryStatus(ctx, delivery.ID, UpdateDeliveryInput{Status: enums.DeliveryStatusFailed, ActualDelivery: &early})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
}

func TestFailedDeliveryCancelsOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.user(t, 0)
	carrots := f.product(t, "10", 5)
	order := f.order(t, user, ItemInput{ProductID: carrots.ID, Quantity: 1})
	_, err := f.svc.UpdateStatus(ctx, order.ID, enums.OrderStatusConfirmed)
	require.NoError(t, err)
	delivery, err := f.svc.CreateDelivery(ctx, order.ID, DeliveryInput{})
	require.NoError(t, err)

	_, err = f.svc.UpdateDeliveryStatus(ctx, delivery.ID, UpdateDeliveryInput{Status: enums.DeliveryStatusFailed})
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, user, enums.UserTypeConsumer, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusCancelled, got.Status)

	_, err = f.svc.UpdateDeliveryStatus(ctx, delivery.ID, UpdateDeliveryInput{Status: enums.DeliveryStatusInTransit})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.user(t, 0)
	carrots := f.product(t, "50", 10)
	paid := f.order(t, user, ItemInput{ProductID: carrots.ID, Quantity: 2})
	f.order(t, user, ItemInput{ProductID: carrots.ID, Quantity: 1})
	_, err := f.svc.VerifyPayment(ctx, user, paid.ID, VerifyPaymentInput{
		PaymentID: "pay_s",
		Signature: checkoutSignature(*paid.GatewayOrderID, "pay_s"),
	})
	require.NoError(t, err)

	stats, err := f.svc.Statistics(ctx, user)
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalOrders)
	require.Equal(t, 1, stats.ByStatus[enums.OrderStatusConfirmed])
	require.Equal(t, 1, stats.ByStatus[enums.OrderStatusPending])
	require.True(t, stats.TotalSpent.Equal(decimal.NewFromInt(100)))
	require.Equal(t, 10, stats.PointsEarned)
}

func TestTransitionTables(t *testing.T) {
	require.True(t, CanTransition(enums.OrderStatusProcessing, enums.OrderStatusDelivered))
	require.False(t, CanTransition(enums.OrderStatusDelivered, enums.OrderStatusCancelled))
	require.False(t, CanTransition(enums.OrderStatusCancelled, enums.OrderStatusPending))
	require.True(t, CanTransitionDelivery(enums.DeliveryStatusAssigned, enums.DeliveryStatusDelivered))
	require.False(t, CanTransitionDelivery(enums.DeliveryStatusFailed, enums.DeliveryStatusAssigned))
}
