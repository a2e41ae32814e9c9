package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/vidacare-health/vidacare-backend/pkg/db/models"
	"github.com/vidacare-health/vidacare-backend/pkg/enums"
	"github.com/vidacare-health/vidacare-backend/pkg/logger"
	"github.com/vidacare-health/vidacare-backend/pkg/outbox"
	"github.com/vidacare-health/vidacare-backend/pkg/outbox/idempotency"
)

const domainNotificationConsumer = "domain-notifications"

type consumerRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches domain events and turns payment and appointment milestones
// into in-app notification rows.
type Consumer struct {
	repo         consumerRepository
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a domain notification consumer.
func NewConsumer(repo consumerRepository, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	if !c.handles(eventType) {
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, domainNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handleEvent(ctx, eventType, envelope.Data, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, domainNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) handles(eventType enums.OutboxEventType) bool {
	switch eventType {
	case enums.EventPaymentCompleted,
		enums.EventPaymentRefunded,
		enums.EventPaymentFailed,
		enums.EventAppointmentConfirmed,
		enums.EventAppointmentCancelled:
		return true
	}
	return false
}

func (c *Consumer) handleEvent(ctx context.Context, eventType enums.OutboxEventType, data json.RawMessage, logCtx context.Context) error {
	switch eventType {
	case enums.EventPaymentCompleted, enums.EventPaymentRefunded, enums.EventPaymentFailed:
		var payload paymentEventPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse payment payload: %w", err)
		}
		return c.notifyPayment(ctx, eventType, payload, logCtx)
	case enums.EventAppointmentConfirmed, enums.EventAppointmentCancelled:
		var payload appointmentEventPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parse appointment payload: %w", err)
		}
		return c.notifyAppointment(ctx, eventType, payload, logCtx)
	}
	return nil
}

func (c *Consumer) notifyPayment(ctx context.Context, eventType enums.OutboxEventType, payload paymentEventPayload, logCtx context.Context) error {
	if payload.PayerID == uuid.Nil || payload.PayeeID == uuid.Nil {
		return fmt.Errorf("payment payload missing participants")
	}
	link := fmt.Sprintf("/payments/%s", payload.PaymentID)

	var payerMsg, payeeMsg, title string
	switch eventType {
	case enums.EventPaymentCompleted:
		title = "Payment completed"
		payerMsg = fmt.Sprintf("Your payment of %s %s was completed.", payload.Amount, payload.Currency)
		payeeMsg = fmt.Sprintf("You received %s %s.", payload.NetAmount, payload.Currency)
	case enums.EventPaymentRefunded:
		title = "Payment refunded"
		payerMsg = fmt.Sprintf("A refund was issued on your payment of %s %s.", payload.Amount, payload.Currency)
		payeeMsg = fmt.Sprintf("A refund was issued against a payment you received (%s %s).", payload.Amount, payload.Currency)
	case enums.EventPaymentFailed:
		title = "Payment failed"
		payerMsg = fmt.Sprintf("Your payment of %s %s failed.", payload.Amount, payload.Currency)
		payeeMsg = fmt.Sprintf("An incoming payment of %s %s failed.", payload.Amount, payload.Currency)
	}

	for _, target := range []struct {
		userID  uuid.UUID
		message string
	}{
		{payload.PayerID, payerMsg},
		{payload.PayeeID, payeeMsg},
	} {
		notification := &models.Notification{
			UserID:  target.userID,
			Type:    enums.NotificationTypePaymentUpdate,
			Title:   title,
			Message: target.message,
			Link:    stringPtr(link),
		}
		if err := c.repo.Create(ctx, notification); err != nil {
			return err
		}
	}
	c.logg.Info(logCtx, "payment participants notified")
	return nil
}

func (c *Consumer) notifyAppointment(ctx context.Context, eventType enums.OutboxEventType, payload appointmentEventPayload, logCtx context.Context) error {
	if payload.ClientID == uuid.Nil || payload.CaregiverID == uuid.Nil {
		return fmt.Errorf("appointment payload missing participants")
	}
	link := fmt.Sprintf("/appointments/%s", payload.AppointmentID)

	title := "Appointment confirmed"
	message := "Your appointment was confirmed."
	if eventType == enums.EventAppointmentCancelled {
		title = "Appointment cancelled"
		message = "Your appointment was cancelled."
	}

	for _, userID := range []uuid.UUID{payload.ClientID, payload.CaregiverID} {
		notification := &models.Notification{
			UserID:  userID,
			Type:    enums.NotificationTypeAppointmentUpdate,
			Title:   title,
			Message: message,
			Link:    stringPtr(link),
		}
		if err := c.repo.Create(ctx, notification); err != nil {
			return err
		}
	}
	c.logg.Info(logCtx, "appointment participants notified")
	return nil
}

func stringPtr(value string) *string {
	return &value
}

type paymentEventPayload struct {
	PaymentID uuid.UUID `json:"paymentId"`
	PayerID   uuid.UUID `json:"payerId"`
	PayeeID   uuid.UUID `json:"payeeId"`
	Status    string    `json:"status"`
	Amount    string    `json:"amount"`
	NetAmount string    `json:"netAmount"`
	Currency  string    `json:"currency"`
}

type appointmentEventPayload struct {
	AppointmentID uuid.UUID `json:"appointmentId"`
	ClientID      uuid.UUID `json:"clientId"`
	CaregiverID   uuid.UUID `json:"caregiverId"`
	Status        string    `json:"status"`
	TotalAmount   string    `json:"totalAmount"`
	Currency      string    `json:"currency"`
}
