package appointments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vidacare-health/vidacare-backend/internal/payments"
	"github.com/vidacare-health/vidacare-backend/pkg/db/models"
	"github.com/vidacare-health/vidacare-backend/pkg/enums"
	pkgerrors "github.com/vidacare-health/vidacare-backend/pkg/errors"
	"github.com/vidacare-health/vidacare-backend/pkg/logger"
	"github.com/vidacare-health/vidacare-backend/pkg/outbox"
	"github.com/vidacare-health/vidacare-backend/pkg/pagination"
)

// Service manages the appointment lifecycle. Completing an appointment raises
// and settles the care payment from the client to the caregiver.
type Service interface {
	Book(ctx context.Context, actor payments.Actor, params BookParams) (*models.Appointment, error)
	Get(ctx context.Context, actor payments.Actor, id uuid.UUID) (*models.Appointment, error)
	List(ctx context.Context, actor payments.Actor, params ListParams) (*AppointmentList, error)
	Confirm(ctx context.Context, actor payments.Actor, id uuid.UUID) (*models.Appointment, error)
	Start(ctx context.Context, actor payments.Actor, id uuid.UUID) (*models.Appointment, error)
	Complete(ctx context.Context, actor payments.Actor, id uuid.UUID, params CompleteParams) (*models.Appointment, error)
	Cancel(ctx context.Context, actor payments.Actor, id uuid.UUID) (*models.Appointment, error)
	MarkNoShow(ctx context.Context, actor payments.Actor, id uuid.UUID) (*models.Appointment, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type profileFinder interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.CaregiverProfile, error)
}

type paymentRaiser interface {
	Create(ctx context.Context, params payments.CreateParams) (*models.Payment, error)
	Process(ctx context.Context, id uuid.UUID, gatewayTransactionID string) (*models.Payment, error)
}

type settler interface {
	CompletePayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
}

type service struct {
	repo     Repository
	profiles profileFinder
	payments paymentRaiser
	ledger   settler
	tx       txRunner
	events   eventEmitter
	logg     *logger.Logger
}

// BookParams captures the inputs for a new appointment request.
type BookParams struct {
	CaregiverID uuid.UUID
	StartsAt    time.Time
	EndsAt      time.Time
	Notes       *string
	Currency    enums.Currency
}

// CompleteParams carries the fee split applied to the settlement payment.
type CompleteParams struct {
	PlatformFee decimal.Decimal
	GatewayFee  decimal.Decimal
}

// ListParams configures pagination over a user's appointments.
type ListParams struct {
	Status enums.AppointmentStatus
	Limit  int
	Cursor string
}

// AppointmentList wraps returned appointments and the cursor for the next page.
type AppointmentList struct {
	Items  []models.Appointment `json:"items"`
	Cursor string               `json:"cursor"`
}

// NewService wires appointment dependencies.
func NewService(repo Repository, profiles profileFinder, paymentSvc paymentRaiser, ledger settler, tx txRunner, events eventEmitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "appointments repository required")
	}
	if profiles == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "caregiver profiles required")
	}
	if paymentSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments service required")
	}
	if ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger service required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	return &service{
		repo:     repo,
		profiles: profiles,
		payments: paymentSvc,
		ledger:   ledger,
		tx:       tx,
		events:   events,
		logg:     logg,
	}, nil
}

// Book creates a requested appointment priced at the caregiver's current rate.
func (s *service) Book(ctx context.Context, actor payments.Actor, params BookParams) (*models.Appointment, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client id required")
	}
	if params.CaregiverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "caregiver id required")
	}
	if actor.UserID == params.CaregiverID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot book an appointment with yourself")
	}
	if params.StartsAt.IsZero() || params.EndsAt.IsZero() || !params.EndsAt.After(params.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "appointment window must have a positive duration")
	}
	currency := params.Currency
	if currency == "" {
		currency = enums.CurrencyBRL
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}

	profile, err := s.profiles.GetProfile(ctx, params.CaregiverID)
	if err != nil {
		return nil, err
	}

	appointment := &models.Appointment{
		ClientID:    actor.UserID,
		CaregiverID: params.CaregiverID,
		Status:      enums.AppointmentStatusRequested,
		StartsAt:    params.StartsAt.UTC(),
		EndsAt:      params.EndsAt.UTC(),
		HourlyRate:  profile.HourlyRate,
		Currency:    currency,
		Notes:       params.Notes,
	}
	appointment.TotalAmount = profile.HourlyRate.Mul(appointment.DurationHours()).Round(2)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, appointment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create appointment")
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAppointmentBooked,
			AggregateType: enums.AggregateAppointment,
			AggregateID:   appointment.ID,
			Data:          appointmentEventData(appointment),
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"appointment_id": appointment.ID.String(),
			"total_amount":   appointment.TotalAmount.String(),
		})
		s.logg.Info(logCtx, "appointment booked")
	}
	return appointment, nil
}

func (s *service) Get(ctx context.Context, actor payments.Actor, id uuid.UUID) (*models.Appointment, error) {
	appointment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isParticipant(actor, appointment) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "appointment belongs to other users")
	}
	return appointment, nil
}

func (s *service) List(ctx context.Context, actor payments.Actor, params ListParams) (*AppointmentList, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if params.Status != "" && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}

	query := listAppointmentsParams{
		UserID: actor.UserID,
		Status: params.Status,
		Limit:  params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list appointments")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &AppointmentList{Items: rows, Cursor: cursor}, nil
}

func (s *service) Confirm(ctx context.Context, actor payments.Actor, id uuid.UUID) (*models.Appointment, error) {
	appointment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != enums.UserRoleAdmin && actor.UserID != appointment.CaregiverID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the caregiver can confirm")
	}
	return s.transition(ctx, appointment, enums.AppointmentStatusRequested, enums.AppointmentStatusConfirmed, nil, enums.EventAppointmentConfirmed)
}

func (s *service) Start(ctx context.Context, actor payments.Actor, id uuid.UUID) (*models.Appointment, error) {
	appointment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != enums.UserRoleAdmin && actor.UserID != appointment.CaregiverID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the caregiver can start the session")
	}
	return s.transition(ctx, appointment, enums.AppointmentStatusConfirmed, enums.AppointmentStatusInProgress, nil, enums.EventAppointmentConfirmed)
}

// Complete closes the session and settles the care payment. The payment link
// is written exactly once, so repeated calls cannot double charge.
func (s *service) Complete(ctx context.Context, actor payments.Actor, id uuid.UUID, params CompleteParams) (*models.Appointment, error) {
	appointment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != enums.UserRoleAdmin && actor.UserID != appointment.CaregiverID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the caregiver can complete the session")
	}
	if params.PlatformFee.IsNegative() || params.GatewayFee.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fees must not be negative")
	}

	now := time.Now().UTC()
	appointment, err = s.transition(ctx, appointment, enums.AppointmentStatusInProgress, enums.AppointmentStatusCompleted,
		map[string]any{"completed_at": now}, enums.EventAppointmentCompleted)
	if err != nil {
		return nil, err
	}

	if appointment.PaymentID != nil {
		return appointment, nil
	}

	payment, err := s.payments.Create(ctx, payments.CreateParams{
		PayerID:       appointment.ClientID,
		PayeeID:       appointment.CaregiverID,
		AppointmentID: &appointment.ID,
		Type:          enums.PaymentTypeAppointment,
		Method:        enums.PaymentMethodCreditCard,
		Currency:      appointment.Currency,
		Amount:        appointment.TotalAmount,
		PlatformFee:   params.PlatformFee,
		GatewayFee:    params.GatewayFee,
	})
	if err != nil {
		return nil, err
	}

	linked, err := s.repo.SetPaymentID(ctx, appointment.ID, payment.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link settlement payment")
	}
	if !linked {
		// A concurrent completion already raised the settlement.
		return s.load(ctx, appointment.ID)
	}

	if _, err := s.payments.Process(ctx, payment.ID, ""); err != nil {
		return nil, err
	}
	if _, err := s.ledger.CompletePayment(ctx, payment.ID); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCaregiverSettlementPaid,
			AggregateType: enums.AggregateAppointment,
			AggregateID:   appointment.ID,
			Data: map[string]any{
				"appointmentId": appointment.ID.String(),
				"paymentId":     payment.ID.String(),
				"caregiverId":   appointment.CaregiverID.String(),
				"netAmount":     payment.NetAmount.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"appointment_id": appointment.ID.String(),
			"payment_id":     payment.ID.String(),
		})
		s.logg.Info(logCtx, "appointment settled")
	}
	return s.load(ctx, appointment.ID)
}

func (s *service) Cancel(ctx context.Context, actor payments.Actor, id uuid.UUID) (*models.Appointment, error) {
	appointment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != enums.UserRoleAdmin && !isParticipant(actor, appointment) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "appointment belongs to other users")
	}
	return s.transition(ctx, appointment, appointment.Status, enums.AppointmentStatusCancelled,
		map[string]any{"cancelled_at": time.Now().UTC()}, enums.EventAppointmentCancelled)
}

func (s *service) MarkNoShow(ctx context.Context, actor payments.Actor, id uuid.UUID) (*models.Appointment, error) {
	appointment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != enums.UserRoleAdmin && actor.UserID != appointment.CaregiverID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the caregiver can record a no-show")
	}
	return s.transition(ctx, appointment, enums.AppointmentStatusConfirmed, enums.AppointmentStatusNoShow,
		map[string]any{"cancelled_at": time.Now().UTC()}, enums.EventAppointmentCancelled)
}

func (s *service) transition(ctx context.Context, appointment *models.Appointment, from, to enums.AppointmentStatus, updates map[string]any, eventType enums.OutboxEventType) (*models.Appointment, error) {
	if !from.CanTransitionTo(to) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transition not allowed")
	}
	if appointment.Status != from {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "appointment is not in the expected status")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).UpdateStatus(ctx, appointment.ID, from, to, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update appointment status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "appointment was modified concurrently")
		}
		appointment.Status = to
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateAppointment,
			AggregateID:   appointment.ID,
			Data:          appointmentEventData(appointment),
		})
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, appointment.ID)
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "appointment id required")
	}
	appointment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == ErrAppointmentNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "appointment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load appointment")
	}
	return appointment, nil
}

func isParticipant(actor payments.Actor, appointment *models.Appointment) bool {
	if actor.Role == enums.UserRoleAdmin {
		return true
	}
	return actor.UserID == appointment.ClientID || actor.UserID == appointment.CaregiverID
}

func appointmentEventData(appointment *models.Appointment) map[string]any {
	return map[string]any{
		"appointmentId": appointment.ID.String(),
		"clientId":      appointment.ClientID.String(),
		"caregiverId":   appointment.CaregiverID.String(),
		"status":        appointment.Status,
		"totalAmount":   appointment.TotalAmount.String(),
		"currency":      appointment.Currency,
	}
}
