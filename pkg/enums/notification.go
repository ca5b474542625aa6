package enums

import "fmt"

// NotificationType groups in-app notifications by source.
type NotificationType string

const (
	NotificationTypeOrder    NotificationType = "order"
	NotificationTypePayment  NotificationType = "payment"
	NotificationTypeDelivery NotificationType = "delivery"
	NotificationTypeReward   NotificationType = "reward"
	NotificationTypeSystem   NotificationType = "system"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeOrder,
	NotificationTypePayment,
	NotificationTypeDelivery,
	NotificationTypeReward,
	NotificationTypeSystem,
}

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
