package orders

import "github.com/angelmondragon/farmloop-backend/pkg/enums"

var orderTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:  {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusDelivered, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered, enums.OrderStatusCancelled},
}

// Forward skips are allowed; delivered and failed are terminal.
var deliveryTransitions = map[enums.DeliveryStatus][]enums.DeliveryStatus{
	enums.DeliveryStatusAssigned: {
		enums.DeliveryStatusPickedUp,
		enums.DeliveryStatusInTransit,
		enums.DeliveryStatusDelivered,
		enums.DeliveryStatusFailed,
	},
	enums.DeliveryStatusPickedUp: {
		enums.DeliveryStatusInTransit,
		enums.DeliveryStatusDelivered,
		enums.DeliveryStatusFailed,
	},
	enums.DeliveryStatusInTransit: {
		enums.DeliveryStatusDelivered,
		enums.DeliveryStatusFailed,
	},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionDelivery reports whether a delivery may move from one status to another.
func CanTransitionDelivery(from, to enums.DeliveryStatus) bool {
	for _, next := range deliveryTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
