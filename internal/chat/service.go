package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vidacare-health/vidacare-backend/internal/payments"
	"github.com/vidacare-health/vidacare-backend/pkg/db/models"
	"github.com/vidacare-health/vidacare-backend/pkg/enums"
	pkgerrors "github.com/vidacare-health/vidacare-backend/pkg/errors"
	"github.com/vidacare-health/vidacare-backend/pkg/logger"
	"github.com/vidacare-health/vidacare-backend/pkg/outbox"
	"github.com/vidacare-health/vidacare-backend/pkg/pagination"
)

const maxMessageLength = 4000

// Service manages messages inside an appointment conversation. Delivery is
// handled by the outbox relay; this service only persists and scopes rows.
type Service interface {
	Send(ctx context.Context, actor payments.Actor, params SendParams) (*models.ChatMessage, error)
	List(ctx context.Context, actor payments.Actor, params ListParams) (*MessageList, error)
	MarkRead(ctx context.Context, actor payments.Actor, messageID uuid.UUID) (*models.ChatMessage, error)
	MarkAllRead(ctx context.Context, actor payments.Actor, appointmentID uuid.UUID) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type appointmentFinder interface {
	Get(ctx context.Context, actor payments.Actor, id uuid.UUID) (*models.Appointment, error)
}

type service struct {
	repo         Repository
	appointments appointmentFinder
	tx           txRunner
	events       eventEmitter
	logg         *logger.Logger
}

// SendParams captures the inputs for a new chat message.
type SendParams struct {
	AppointmentID uuid.UUID
	Body          string
}

// ListParams configures pagination over an appointment conversation.
type ListParams struct {
	AppointmentID uuid.UUID
	Limit         int
	Cursor        string
}

// MessageList wraps returned messages and the cursor for the next page.
type MessageList struct {
	Items  []models.ChatMessage `json:"items"`
	Cursor string               `json:"cursor"`
}

// NewService wires chat dependencies.
func NewService(repo Repository, appointments appointmentFinder, tx txRunner, events eventEmitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "chat repository required")
	}
	if appointments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "appointments service required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	return &service{repo: repo, appointments: appointments, tx: tx, events: events, logg: logg}, nil
}

// Send stores a message addressed to the other appointment participant.
func (s *service) Send(ctx context.Context, actor payments.Actor, params SendParams) (*models.ChatMessage, error) {
	body := strings.TrimSpace(params.Body)
	if body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message body required")
	}
	if len(body) > maxMessageLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message body too long")
	}

	appointment, err := s.appointments.Get(ctx, actor, params.AppointmentID)
	if err != nil {
		return nil, err
	}
	recipient := appointment.CaregiverID
	if actor.UserID == appointment.CaregiverID {
		recipient = appointment.ClientID
	} else if actor.UserID != appointment.ClientID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only participants can send messages")
	}

	message := &models.ChatMessage{
		AppointmentID: appointment.ID,
		SenderID:      actor.UserID,
		RecipientID:   recipient,
		Body:          body,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, message); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create message")
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventChatMessageSent,
			AggregateType: enums.AggregateChatMessage,
			AggregateID:   message.ID,
			Data: map[string]any{
				"messageId":     message.ID.String(),
				"appointmentId": appointment.ID.String(),
				"senderId":      message.SenderID.String(),
				"recipientId":   message.RecipientID.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return message, nil
}

func (s *service) List(ctx context.Context, actor payments.Actor, params ListParams) (*MessageList, error) {
	appointment, err := s.appointments.Get(ctx, actor, params.AppointmentID)
	if err != nil {
		return nil, err
	}

	query := listMessagesParams{
		AppointmentID: appointment.ID,
		Limit:         params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListByAppointment(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list messages")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &MessageList{Items: rows, Cursor: cursor}, nil
}

// MarkRead flags one message as read. Only the recipient may do so.
func (s *service) MarkRead(ctx context.Context, actor payments.Actor, messageID uuid.UUID) (*models.ChatMessage, error) {
	if messageID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "message id required")
	}
	message, err := s.repo.GetByID(ctx, messageID)
	if err != nil {
		if err == ErrMessageNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "message not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load message")
	}
	if actor.UserID != message.RecipientID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the recipient can mark a message read")
	}

	now := time.Now().UTC()
	if _, err := s.repo.MarkRead(ctx, message.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark message read")
	}
	if message.ReadAt == nil {
		message.ReadAt = &now
	}
	return message, nil
}

// MarkAllRead flags every unread message addressed to the actor in the
// appointment. Returns how many rows changed.
func (s *service) MarkAllRead(ctx context.Context, actor payments.Actor, appointmentID uuid.UUID) (int64, error) {
	appointment, err := s.appointments.Get(ctx, actor, appointmentID)
	if err != nil {
		return 0, err
	}
	count, err := s.repo.MarkAllRead(ctx, appointment.ID, actor.UserID, time.Now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark messages read")
	}
	return count, nil
}
