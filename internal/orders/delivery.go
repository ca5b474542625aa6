package orders

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmloop-backend/pkg/db"
	"github.com/angelmondragon/farmloop-backend/pkg/db/models"
	"github.com/angelmondragon/farmloop-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmloop-backend/pkg/errors"
)

const (
	trackingPrefix   = "FL"
	trackingAttempts = 5
)

// CreateDelivery opens fulfilment for a confirmed or processing order and moves it to processing.
func (s *service) CreateDelivery(ctx context.Context, orderID uuid.UUID, input DeliveryInput) (*DeliveryDTO, error) {
	var (
		delivery *models.Delivery
		order    *models.Order
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		order, err = repo.LockOrder(ctx, orderID)
		if err != nil {
			return mapOrderLoadError(err)
		}
		if order.Status != enums.OrderStatusConfirmed && order.Status != enums.OrderStatusProcessing {
			return stateConflict("delivery requires a confirmed or processing order", order.Status, "")
		}
		if _, err := repo.FindDeliveryByOrder(ctx, order.ID); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already has a delivery")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check delivery")
		}

		tracking, err := s.uniqueTrackingNumber(ctx, repo)
		if err != nil {
			return err
		}
		delivery = &models.Delivery{
			ID:                uuid.New(),
			OrderID:           order.ID,
			DeliveryPersonID:  input.DeliveryPersonID,
			Status:            enums.DeliveryStatusAssigned,
			TrackingNumber:    tracking,
			EstimatedDelivery: input.EstimatedDelivery,
			Notes:             strings.TrimSpace(input.Notes),
		}
		if err := repo.CreateDelivery(ctx, delivery); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "delivery already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create delivery")
		}
		if order.Status == enums.OrderStatusConfirmed {
			return s.transitionOrder(ctx, repo, order, enums.OrderStatusProcessing)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.OrderEvent("delivery_created")
	s.notifier.Notify(ctx, order.UserID, enums.NotificationTypeDelivery, "Delivery Scheduled",
		fmt.Sprintf("Order #%s is out for fulfilment. Tracking number %s.", shortID(order.ID), delivery.TrackingNumber), orderLink(order.ID))
	return toDeliveryDTO(delivery), nil
}

// UpdateDeliveryStatus advances a delivery; delivered and failed outcomes propagate to the order.
func (s *service) UpdateDeliveryStatus(ctx context.Context, deliveryID uuid.UUID, input UpdateDeliveryInput) (*DeliveryDTO, error) {
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid delivery status %q", input.Status))
	}
	if input.Status == enums.DeliveryStatusDelivered && input.ActualDelivery == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actual_delivery is required when marking delivered")
	}
	if input.Status != enums.DeliveryStatusDelivered && input.ActualDelivery != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actual_delivery is only accepted when marking delivered").
			WithDetails(map[string]any{"field": "actual_delivery"})
	}

	var (
		updated *models.Delivery
		userID  uuid.UUID
		changed bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		delivery, err := repo.FindDelivery(ctx, deliveryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load delivery")
		}
		order, err := repo.LockOrder(ctx, delivery.OrderID)
		if err != nil {
			return mapOrderLoadError(err)
		}
		userID = order.UserID

		if delivery.Status == input.Status {
			if input.Notes != nil {
				if err := repo.UpdateDelivery(ctx, delivery.ID, map[string]any{"notes": strings.TrimSpace(*input.Notes), "updated_at": s.now()}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update delivery notes")
				}
			}
			updated, err = repo.FindDelivery(ctx, delivery.ID)
			return err
		}
		if !CanTransitionDelivery(delivery.Status, input.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "delivery status transition not allowed").
				WithDetails(map[string]any{"status": delivery.Status, "requested": input.Status})
		}

		updates := map[string]any{"status": input.Status, "updated_at": s.now()}
		if input.Status == enums.DeliveryStatusDelivered {
			updates["actual_delivery"] = input.ActualDelivery.UTC()
		}
		if input.Notes != nil {
			updates["notes"] = strings.TrimSpace(*input.Notes)
		}
		if err := repo.UpdateDelivery(ctx, delivery.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update delivery")
		}

		switch input.Status {
		case enums.DeliveryStatusDelivered:
			if order.Status != enums.OrderStatusDelivered {
				if err := s.transitionOrder(ctx, repo, order, enums.OrderStatusDelivered); err != nil {
					return err
				}
			}
		case enums.DeliveryStatusFailed:
			if order.Status != enums.OrderStatusCancelled {
				if err := s.transitionOrder(ctx, repo, order, enums.OrderStatusCancelled); err != nil {
					return err
				}
			}
		}
		changed = true
		updated, err = repo.FindDelivery(ctx, delivery.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.metrics.OrderEvent("delivery_" + string(input.Status))
		s.notifier.Notify(ctx, userID, enums.NotificationTypeDelivery, "Delivery Update",
			fmt.Sprintf("Delivery %s is now %s.", updated.TrackingNumber, strings.ReplaceAll(string(input.Status), "_", " ")), orderLink(updated.OrderID))
	}
	return toDeliveryDTO(updated), nil
}

// TrackDelivery answers only the order owner and admins; everyone else gets
// NOT_FOUND so tracking numbers cannot be probed.
func (s *service) TrackDelivery(ctx context.Context, userID uuid.UUID, userType enums.UserType, trackingNumber string) (*DeliveryDTO, error) {
	tracking := strings.ToUpper(strings.TrimSpace(trackingNumber))
	if tracking == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tracking number is required")
	}
	notFound := pkgerrors.New(pkgerrors.CodeNotFound, "delivery not found")
	delivery, err := s.repo.FindDeliveryByTracking(ctx, tracking)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load delivery")
	}
	if userType != enums.UserTypeAdmin {
		order, err := s.repo.FindOrder(ctx, delivery.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, notFound
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		if order.UserID != userID {
			return nil, notFound
		}
	}
	return toDeliveryDTO(delivery), nil
}

func (s *service) uniqueTrackingNumber(ctx context.Context, repo Repository) (string, error) {
	for attempt := 0; attempt < trackingAttempts; attempt++ {
		candidate, err := newTrackingNumber(s.now().Format("20060102"))
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate tracking number")
		}
		_, err = repo.FindDeliveryByTracking(ctx, candidate)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check tracking number")
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeInternal, "could not allocate a tracking number")
}

func newTrackingNumber(day string) (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return trackingPrefix + day + strings.ToUpper(hex.EncodeToString(buf)), nil
}
