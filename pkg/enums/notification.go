package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationTypeAppointmentReminder NotificationType = "appointment_reminder"
	NotificationTypeAppointmentUpdate   NotificationType = "appointment_update"
	NotificationTypePaymentUpdate       NotificationType = "payment_update"
	NotificationTypeWalletUpdate        NotificationType = "wallet_update"
	NotificationTypeChatMessage         NotificationType = "chat_message"
	NotificationTypeSystemAnnouncement  NotificationType = "system_announcement"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeAppointmentReminder,
	NotificationTypeAppointmentUpdate,
	NotificationTypePaymentUpdate,
	NotificationTypeWalletUpdate,
	NotificationTypeChatMessage,
	NotificationTypeSystemAnnouncement,
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
