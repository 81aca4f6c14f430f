package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypePaymentSubmitted NotificationType = "payment_submitted"
	NotificationTypePaymentVerified  NotificationType = "payment_verified"
	NotificationTypePaymentRejected  NotificationType = "payment_rejected"
	NotificationTypePaymentRefunded  NotificationType = "payment_refunded"
	NotificationTypePaymentExpired   NotificationType = "payment_expired"
	NotificationTypeQuotaWarning     NotificationType = "quota_warning"
	NotificationTypePlanChanged      NotificationType = "plan_changed"
)

var validNotificationTypes = []NotificationType{
	NotificationTypePaymentSubmitted,
	NotificationTypePaymentVerified,
	NotificationTypePaymentRejected,
	NotificationTypePaymentRefunded,
	NotificationTypePaymentExpired,
	NotificationTypeQuotaWarning,
	NotificationTypePlanChanged,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
