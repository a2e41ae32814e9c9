package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregatePayment      OutboxAggregateType = "payment"
	AggregateWallet       OutboxAggregateType = "wallet"
	AggregateAppointment  OutboxAggregateType = "appointment"
	AggregateNotification OutboxAggregateType = "notification"
	AggregateChatMessage  OutboxAggregateType = "chat_message"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePayment,
	AggregateWallet,
	AggregateAppointment,
	AggregateNotification,
	AggregateChatMessage,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventPaymentCreated          OutboxEventType = "payment_created"
	EventPaymentProcessing       OutboxEventType = "payment_processing"
	EventPaymentCompleted        OutboxEventType = "payment_completed"
	EventPaymentFailed           OutboxEventType = "payment_failed"
	EventPaymentCancelled        OutboxEventType = "payment_cancelled"
	EventPaymentRefunded         OutboxEventType = "payment_refunded"
	EventWalletCredited          OutboxEventType = "wallet_credited"
	EventWalletDebited           OutboxEventType = "wallet_debited"
	EventWithdrawalRequested     OutboxEventType = "withdrawal_requested"
	EventAppointmentBooked       OutboxEventType = "appointment_booked"
	EventAppointmentConfirmed    OutboxEventType = "appointment_confirmed"
	EventAppointmentCompleted    OutboxEventType = "appointment_completed"
	EventAppointmentCancelled    OutboxEventType = "appointment_cancelled"
	EventChatMessageSent         OutboxEventType = "chat_message_sent"
	EventNotificationRequested   OutboxEventType = "notification_requested"
	EventCaregiverSettlementPaid OutboxEventType = "caregiver_settlement_paid"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPaymentCreated,
	EventPaymentProcessing,
	EventPaymentCompleted,
	EventPaymentFailed,
	EventPaymentCancelled,
	EventPaymentRefunded,
	EventWalletCredited,
	EventWalletDebited,
	EventWithdrawalRequested,
	EventAppointmentBooked,
	EventAppointmentConfirmed,
	EventAppointmentCompleted,
	EventAppointmentCancelled,
	EventChatMessageSent,
	EventNotificationRequested,
	EventCaregiverSettlementPaid,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
