package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmloop-backend/internal/points"
	"github.com/angelmondragon/farmloop-backend/internal/products"
	"github.com/angelmondragon/farmloop-backend/pkg/db/models"
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmloop-backend/pkg/errors"
	"github.com/angelmondragon/farmloop-backend/pkg/logger"
	"github.com/angelmondragon/farmloop-backend/pkg/metrics"
	"github.com/angelmondragon/farmloop-backend/pkg/pagination"
	"github.com/angelmondragon/farmloop-backend/pkg/razorpay"
)

const (
	defaultEarnDivisor = 10
	orderReferenceType = "order"
)

// Service defines the consumer order lifecycle: creation, redemption, payment and fulfilment.
type Service interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*OrderDTO, error)
	Checkout(ctx context.Context, userID uuid.UUID, input ShippingInput) (*OrderDTO, error)
	RetryPaymentOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	ApplyPoints(ctx context.Context, userID, orderID uuid.UUID, points int) (*ApplyPointsResult, error)
	VerifyPayment(ctx context.Context, userID, orderID uuid.UUID, input VerifyPaymentInput) (*OrderDTO, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*OrderDTO, error)
	Get(ctx context.Context, userID uuid.UUID, userType enums.UserType, orderID uuid.UUID) (*OrderDTO, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	Statistics(ctx context.Context, userID uuid.UUID) (*Statistics, error)

	CreateDelivery(ctx context.Context, orderID uuid.UUID, input DeliveryInput) (*DeliveryDTO, error)
	UpdateDeliveryStatus(ctx context.Context, deliveryID uuid.UUID, input UpdateDeliveryInput) (*DeliveryDTO, error)
	TrackDelivery(ctx context.Context, userID uuid.UUID, userType enums.UserType, trackingNumber string) (*DeliveryDTO, error)
}

// ServiceParams bundles the dependencies required to build an order service.
type ServiceParams struct {
	Repo        Repository
	Tx          txRunner
	Products    productStore
	Cart        cartStore
	Points      pointsLedger
	Gateway     PaymentGateway
	Notifier    Notifier
	Logger      *logger.Logger
	Metrics     *metrics.DomainMetrics
	EarnDivisor int
}

type service struct {
	repo        Repository
	tx          txRunner
	products    productStore
	cart        cartStore
	points      pointsLedger
	gateway     PaymentGateway
	notifier    Notifier
	logg        *logger.Logger
	metrics     *metrics.DomainMetrics
	earnDivisor decimal.Decimal
	now         clock
}

// NewService builds an order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product store required")
	}
	if params.Cart == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if params.Points == nil {
		return nil, fmt.Errorf("points ledger required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	divisor := params.EarnDivisor
	if divisor <= 0 {
		divisor = defaultEarnDivisor
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &service{
		repo:        params.Repo,
		tx:          params.Tx,
		products:    params.Products,
		cart:        params.Cart,
		points:      params.Points,
		gateway:     params.Gateway,
		notifier:    notifier,
		logg:        logg,
		metrics:     params.Metrics,
		earnDivisor: decimal.NewFromInt(int64(divisor)),
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*OrderDTO, error) {
	if err := validateShipping(input.ShippingInput); err != nil {
		return nil, err
	}
	items, err := mergeItems(input.Items)
	if err != nil {
		return nil, err
	}

	var order *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		order, err = s.createInTx(ctx, tx, userID, items, input.ShippingInput)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.afterCreate(ctx, order)
}

// Checkout turns the caller's cart into an order and empties the cart in the same transaction.
func (s *service) Checkout(ctx context.Context, userID uuid.UUID, input ShippingInput) (*OrderDTO, error) {
	if err := validateShipping(input); err != nil {
		return nil, err
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cart.WithTx(tx)
		lines, err := cartRepo.ListByUser(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
		}
		requested := make([]ItemInput, 0, len(lines))
		for _, line := range lines {
			requested = append(requested, ItemInput{ProductID: line.ProductID, Quantity: line.Quantity})
		}
		items, err := mergeItems(requested)
		if err != nil {
			return err
		}
		order, err = s.createInTx(ctx, tx, userID, items, input)
		if err != nil {
			return err
		}
		if err := cartRepo.Clear(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.afterCreate(ctx, order)
}

func (s *service) RetryPaymentOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadOwned(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == enums.OrderStatusCancelled {
		return nil, stateConflict("order is cancelled", order.Status, "")
	}
	if !order.PaymentStatus.AcceptsPayment() {
		return nil, stateConflict("order payment is already settled", order.Status, "")
	}
	if err := s.attachRemoteOrder(ctx, order); err != nil {
		return nil, err
	}
	return toOrderDTO(order), nil
}

// ApplyPoints redeems points once per unpaid order at one currency unit per point.
// The debit and the order update share one transaction, so a failed update
// rolls the debit back with it.
func (s *service) ApplyPoints(ctx context.Context, userID, orderID uuid.UUID, pts int) (*ApplyPointsResult, error) {
	if pts < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "points must be at least 1")
	}

	var (
		updated *models.Order
		balance int
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockOrder(ctx, orderID)
		if err != nil {
			return mapOrderLoadError(err)
		}
		if order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if order.Status == enums.OrderStatusCancelled {
			return stateConflict("order is cancelled", order.Status, "")
		}
		if order.PaymentStatus != enums.PaymentStatusPending {
			return stateConflict("points can only be applied before payment", order.Status, "")
		}
		if order.PointsUsed > 0 {
			return stateConflict("points already applied to this order", order.Status, "")
		}
		discount := decimal.NewFromInt(int64(pts))
		if discount.GreaterThan(order.TotalAmount) {
			return pkgerrors.New(pkgerrors.CodeValidation, "points exceed order total").
				WithDetails(map[string]any{"total_amount": order.TotalAmount.StringFixed(2)})
		}

		balance, err = s.points.WithTx(tx).Debit(ctx, points.Adjustment{
			UserID:        userID,
			Points:        pts,
			Reason:        enums.PointsReasonOrderRedeemed,
			ReferenceType: orderReferenceType,
			ReferenceID:   &order.ID,
		})
		if err != nil {
			if errors.Is(err, pkgerrors.ErrInsufficientBalance) {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, fmt.Errorf("%w: %w", pkgerrors.ErrApplyPointsFailed, err), "could not apply points")
			}
			return err
		}

		now := s.now()
		newTotal := order.TotalAmount.Sub(discount)
		// the remote order was created for the old total and must never be paid
		updates := map[string]any{
			"total_amount":     newTotal,
			"points_used":      pts,
			"gateway_order_id": nil,
			"updated_at":       now,
		}
		// nothing left to charge, so the order settles without the gateway
		if newTotal.IsZero() {
			updates["payment_status"] = enums.PaymentStatusCompleted
			updates["status"] = enums.OrderStatusConfirmed
			updates["paid_at"] = now
		}
		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order total")
		}
		updated, err = repo.FindOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload order")
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, pkgerrors.ErrApplyPointsFailed) {
			s.metrics.OrderEvent("points_apply_failed")
		}
		return nil, err
	}
	s.metrics.OrderEvent("points_applied")

	if updated.PaymentStatus == enums.PaymentStatusPending {
		// on failure the order stays without a remote id until RetryPaymentOrder succeeds
		if err := s.attachRemoteOrder(ctx, updated); err != nil {
			s.logg.Warn(s.logg.WithOrderID(ctx, updated.ID.String()), "refresh remote payment order after points redemption failed: "+err.Error())
		}
	}
	s.notifier.Notify(ctx, userID, enums.NotificationTypeReward, "Points Applied",
		fmt.Sprintf("%d points were applied to order #%s.", pts, shortID(updated.ID)), orderLink(updated.ID))

	return &ApplyPointsResult{
		Order:         toOrderDTO(updated),
		NewTotal:      updated.TotalAmount,
		PointsBalance: balance,
	}, nil
}

func (s *service) VerifyPayment(ctx context.Context, userID, orderID uuid.UUID, input VerifyPaymentInput) (*OrderDTO, error) {
	order, err := s.loadOwned(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus.IsSettled() {
		return toOrderDTO(order), nil
	}
	if order.Status == enums.OrderStatusCancelled {
		return nil, stateConflict("order is cancelled", order.Status, "")
	}
	if order.GatewayOrderID == nil || *order.GatewayOrderID == "" {
		return nil, stateConflict("order has no payment to verify", order.Status, "")
	}
	paymentID := strings.TrimSpace(input.PaymentID)
	if !s.gateway.VerifySignature(*order.GatewayOrderID, paymentID, input.Signature) {
		s.metrics.PaymentEvent("verify", "rejected")
		s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()), "payment signature rejected")
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, pkgerrors.ErrPaymentVerificationFailed, "payment verification failed")
	}

	var (
		updated  *models.Order
		credited bool
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.LockOrder(ctx, order.ID)
		if err != nil {
			return mapOrderLoadError(err)
		}
		if locked.PaymentStatus.IsSettled() {
			updated, err = repo.FindOrder(ctx, order.ID)
			return err
		}
		if locked.Status == enums.OrderStatusCancelled {
			return stateConflict("order is cancelled", locked.Status, "")
		}

		earned := int(locked.TotalAmount.Div(s.earnDivisor).Floor().IntPart())
		now := s.now()
		updates := map[string]any{
			"payment_status":     enums.PaymentStatusCompleted,
			"status":             enums.OrderStatusConfirmed,
			"gateway_payment_id": paymentID,
			"points_earned":      earned,
			"paid_at":            now,
			"updated_at":         now,
		}
		if err := repo.UpdateOrder(ctx, locked.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "confirm payment")
		}
		if earned > 0 {
			if _, err := s.points.WithTx(tx).Credit(ctx, points.Adjustment{
				UserID:        locked.UserID,
				Points:        earned,
				Reason:        enums.PointsReasonOrderEarned,
				ReferenceType: orderReferenceType,
				ReferenceID:   &locked.ID,
			}); err != nil {
				return err
			}
		}
		credited = true
		updated, err = repo.FindOrder(ctx, locked.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if credited {
		s.metrics.PaymentEvent("verify", "ok")
		s.notifier.Notify(ctx, userID, enums.NotificationTypePayment, "Payment Successful",
			fmt.Sprintf("Payment for order #%s has been received.", shortID(updated.ID)), orderLink(updated.ID))
		if updated.PointsEarned > 0 {
			s.notifier.Notify(ctx, userID, enums.NotificationTypeReward, "Points Earned",
				fmt.Sprintf("You earned %d points on order #%s.", updated.PointsEarned, shortID(updated.ID)), nil)
		}
	}
	return toOrderDTO(updated), nil
}

// UpdateStatus moves an order along the lifecycle. Cancelling does not refund
// redeemed points or the captured payment.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*OrderDTO, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", status))
	}

	var (
		updated *models.Order
		changed bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockOrder(ctx, orderID)
		if err != nil {
			return mapOrderLoadError(err)
		}
		if order.Status != status {
			if err := s.transitionOrder(ctx, repo, order, status); err != nil {
				return err
			}
			changed = true
		}
		updated, err = repo.FindOrder(ctx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.metrics.OrderEvent("status_" + string(status))
		s.notifier.Notify(ctx, updated.UserID, enums.NotificationTypeOrder, "Order Status Updated",
			fmt.Sprintf("Your order #%s is now %s.", shortID(updated.ID), status), orderLink(updated.ID))
	}
	return toOrderDTO(updated), nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID, userType enums.UserType, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, mapOrderLoadError(err)
	}
	if order.UserID != userID && userType != enums.UserTypeAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return toOrderDTO(order), nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	rows, next, err := s.repo.ListUserOrders(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "list orders")
	}
	list := &OrderList{Orders: make([]OrderDTO, 0, len(rows)), NextCursor: next}
	for i := range rows {
		list.Orders = append(list.Orders, *toOrderDTO(&rows[i]))
	}
	return list, nil
}

func (s *service) Statistics(ctx context.Context, userID uuid.UUID) (*Statistics, error) {
	rows, err := s.repo.ListUserOrderSummaries(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order statistics")
	}
	stats := &Statistics{
		TotalOrders: len(rows),
		ByStatus:    make(map[enums.OrderStatus]int),
		TotalSpent:  decimal.Zero,
	}
	for _, row := range rows {
		stats.ByStatus[row.Status]++
		stats.PointsUsed += row.PointsUsed
		stats.PointsEarned += row.PointsEarned
		if row.PaymentStatus.IsSettled() {
			stats.TotalSpent = stats.TotalSpent.Add(row.TotalAmount)
		}
	}
	return stats, nil
}

func (s *service) createInTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID, items []ItemInput, shipping ShippingInput) (*models.Order, error) {
	productRepo := s.products.WithTx(tx)
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}
	catalog, err := productRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}

	order := &models.Order{
		ID:              uuid.New(),
		UserID:          userID,
		Status:          enums.OrderStatusPending,
		PaymentStatus:   enums.PaymentStatusPending,
		TotalAmount:     decimal.Zero,
		ShippingAddress: strings.TrimSpace(shipping.ShippingAddress),
		Phone:           strings.TrimSpace(shipping.Phone),
		Items:           make([]models.OrderItem, 0, len(items)),
	}
	for _, item := range items {
		product, ok := catalog[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": item.ProductID})
		}
		if err := productRepo.DecrementStockIfAvailable(ctx, product.ID, item.Quantity); err != nil {
			mapped := products.MapStockError(err)
			if typed := pkgerrors.As(mapped); typed != nil && typed.Code() == pkgerrors.CodeConflict {
				typed.WithDetails(map[string]any{"product_id": product.ID, "available": product.Stock})
			}
			return nil, mapped
		}
		line := models.OrderItem{
			ID:        uuid.New(),
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  item.Quantity,
			Price:     product.Price,
		}
		order.Items = append(order.Items, line)
		order.TotalAmount = order.TotalAmount.Add(line.Subtotal())
	}

	if err := s.repo.WithTx(tx).CreateOrder(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}
	return order, nil
}

// afterCreate registers the remote payment order once the local order is durable.
func (s *service) afterCreate(ctx context.Context, order *models.Order) (*OrderDTO, error) {
	s.metrics.OrderEvent("created")
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(ctx, "order created")
	s.notifier.Notify(ctx, order.UserID, enums.NotificationTypeOrder, "Order Created",
		fmt.Sprintf("Your order #%s has been created successfully.", shortID(order.ID)), orderLink(order.ID))

	if err := s.attachRemoteOrder(ctx, order); err != nil {
		return nil, err
	}
	return toOrderDTO(order), nil
}

func (s *service) attachRemoteOrder(ctx context.Context, order *models.Order) error {
	remoteID, err := s.gateway.CreateOrder(ctx, razorpay.ToMinorUnits(order.TotalAmount), order.ID.String())
	if err != nil {
		s.metrics.PaymentEvent("create_order", "error")
		s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "create remote payment order", err)
		return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("%w: %w", pkgerrors.ErrPaymentGateway, err), "payment gateway unavailable").
			WithDetails(map[string]any{"order_id": order.ID})
	}
	if err := s.repo.UpdateOrder(ctx, order.ID, map[string]any{
		"gateway_order_id": remoteID,
		"updated_at":       s.now(),
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store remote payment order")
	}
	s.metrics.PaymentEvent("create_order", "ok")
	order.GatewayOrderID = &remoteID
	return nil
}

func (s *service) transitionOrder(ctx context.Context, repo Repository, order *models.Order, to enums.OrderStatus) error {
	if !CanTransition(order.Status, to) {
		return stateConflict("order status transition not allowed", order.Status, to)
	}
	now := s.now()
	updates := map[string]any{"status": to, "updated_at": now}
	if to == enums.OrderStatusCancelled {
		updates["cancelled_at"] = now
	}
	if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
	}
	order.Status = to
	return nil
}

func (s *service) loadOwned(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, mapOrderLoadError(err)
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func validateShipping(input ShippingInput) error {
	if strings.TrimSpace(input.ShippingAddress) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping_address is required")
	}
	if strings.TrimSpace(input.Phone) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "phone is required")
	}
	return nil
}

// mergeItems folds repeated products into one line and keeps first-seen order.
func mergeItems(items []ItemInput) ([]ItemInput, error) {
	if len(items) == 0 {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, pkgerrors.ErrEmptyCart, "order has no items")
	}
	index := make(map[uuid.UUID]int, len(items))
	out := make([]ItemInput, 0, len(items))
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
		}
		if item.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
		}
		if i, ok := index[item.ProductID]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(out)
		out = append(out, item)
	}
	return out, nil
}

func mapOrderLoadError(err error) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
}

func stateConflict(msg string, from enums.OrderStatus, to enums.OrderStatus) error {
	details := map[string]any{"status": from}
	if to != "" {
		details["requested"] = to
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, msg).WithDetails(details)
}

func shortID(id uuid.UUID) string {
	return strings.ToUpper(id.String()[:8])
}

func orderLink(id uuid.UUID) *string {
	link := "/orders/" + id.String()
	return &link
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, uuid.UUID, enums.NotificationType, string, string, *string) {}
