package payments

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vidacare-health/vidacare-backend/internal/users"
	"github.com/vidacare-health/vidacare-backend/pkg/db/models"
	"github.com/vidacare-health/vidacare-backend/pkg/enums"
	pkgerrors "github.com/vidacare-health/vidacare-backend/pkg/errors"
	"github.com/vidacare-health/vidacare-backend/pkg/logger"
	"github.com/vidacare-health/vidacare-backend/pkg/outbox"
	"github.com/vidacare-health/vidacare-backend/pkg/pagination"
)

// Service defines the payment lifecycle operations short of settlement.
// Settlement and refunds move money and therefore live with the ledger.
type Service interface {
	Create(ctx context.Context, params CreateParams) (*models.Payment, error)
	Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Payment, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Process(ctx context.Context, id uuid.UUID, gatewayTransactionID string) (*models.Payment, error)
	Cancel(ctx context.Context, actor Actor, id uuid.UUID) (*models.Payment, error)
	Fail(ctx context.Context, id uuid.UUID, reason string) (*models.Payment, error)
	ExpirePending(ctx context.Context, now time.Time, limit int) (int, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type userFinder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type service struct {
	repo     Repository
	userRepo userFinder
	tx       txRunner
	events   eventEmitter
	logg     *logger.Logger
}

// Actor identifies the authenticated caller for authorization checks.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// CreateParams captures the inputs for a new payment.
type CreateParams struct {
	PayerID       uuid.UUID
	PayeeID       uuid.UUID
	AppointmentID *uuid.UUID
	Type          enums.PaymentType
	Method        enums.PaymentMethod
	Currency      enums.Currency
	Amount        decimal.Decimal
	PlatformFee   decimal.Decimal
	GatewayFee    decimal.Decimal
	Description   *string
	Metadata      json.RawMessage
	ExpiresAt     *time.Time
}

// ListParams configures pagination over a user's payments.
type ListParams struct {
	UserID uuid.UUID
	Status enums.PaymentStatus
	Limit  int
	Cursor string
}

// ListResult wraps returned payments and the cursor for the next page.
type ListResult struct {
	Items  []models.Payment `json:"items"`
	Cursor string           `json:"cursor"`
}

// NewService wires payment dependencies.
func NewService(repo Repository, userRepo userFinder, tx txRunner, events eventEmitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments repository required")
	}
	if userRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	return &service{repo: repo, userRepo: userRepo, tx: tx, events: events, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, params CreateParams) (*models.Payment, error) {
	if params.PayerID == uuid.Nil || params.PayeeID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer and payee ids required")
	}
	if params.PayerID == params.PayeeID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payer and payee must differ")
	}
	if !params.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment type")
	}
	if !params.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	currency := params.Currency
	if currency == "" {
		currency = enums.CurrencyBRL
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}
	if !params.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if params.PlatformFee.IsNegative() || params.GatewayFee.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fees must not be negative")
	}

	net := NetAmount(params.Amount, params.PlatformFee, params.GatewayFee)
	if !net.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fees exceed payment amount")
	}

	if _, err := s.userRepo.GetByID(ctx, params.PayerID); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payer")
	}
	if _, err := s.userRepo.GetByID(ctx, params.PayeeID); err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "recipient not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load recipient")
	}

	payment := &models.Payment{
		PayerID:        params.PayerID,
		PayeeID:        params.PayeeID,
		AppointmentID:  params.AppointmentID,
		Type:           params.Type,
		Method:         params.Method,
		Status:         enums.PaymentStatusPending,
		Currency:       currency,
		Amount:         params.Amount,
		PlatformFee:    params.PlatformFee,
		GatewayFee:     params.GatewayFee,
		NetAmount:      net,
		RefundedAmount: decimal.Zero,
		Description:    params.Description,
		Metadata:       params.Metadata,
		ExpiresAt:      params.ExpiresAt,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentCreated,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Data:          paymentEventData(payment),
		})
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"payment_id": payment.ID.String(),
			"amount":     payment.Amount.String(),
			"net_amount": payment.NetAmount.String(),
		})
		s.logg.Info(logCtx, "payment created")
	}
	return payment, nil
}

func (s *service) Get(ctx context.Context, actor Actor, id uuid.UUID) (*models.Payment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := s.loadPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, payment) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment belongs to another user")
	}
	return payment, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if params.Status != "" && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status filter")
	}

	query := listPaymentsParams{
		UserID: params.UserID,
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
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

// Process moves a pending payment into processing once the gateway accepted it.
func (s *service) Process(ctx context.Context, id uuid.UUID, gatewayTransactionID string) (*models.Payment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := s.loadPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment.IsExpired(time.Now().UTC()) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment expired")
	}

	updates := map[string]any{}
	if gatewayTransactionID != "" {
		updates["gateway_transaction_id"] = gatewayTransactionID
	}

	return s.transition(ctx, payment, enums.PaymentStatusPending, enums.PaymentStatusProcessing, updates, enums.EventPaymentProcessing)
}

// Cancel aborts a pending payment. Only the payer or an admin may cancel.
func (s *service) Cancel(ctx context.Context, actor Actor, id uuid.UUID) (*models.Payment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := s.loadPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != enums.UserRoleAdmin && actor.UserID != payment.PayerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the payer can cancel a payment")
	}

	return s.transition(ctx, payment, enums.PaymentStatusPending, enums.PaymentStatusCancelled, nil, enums.EventPaymentCancelled)
}

// Fail records a gateway failure for an in-flight payment.
func (s *service) Fail(ctx context.Context, id uuid.UUID, reason string) (*models.Payment, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := s.loadPayment(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if reason != "" {
		updates["failure_reason"] = reason
	}
	return s.transition(ctx, payment, enums.PaymentStatusProcessing, enums.PaymentStatusFailed, updates, enums.EventPaymentFailed)
}

// ExpirePending cancels pending payments whose expiry passed. Returns how many
// payments were expired.
func (s *service) ExpirePending(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.repo.ListExpired(ctx, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired payments")
	}

	expired := 0
	for i := range rows {
		payment := rows[i]
		if _, err := s.transition(ctx, &payment, enums.PaymentStatusPending, enums.PaymentStatusCancelled,
			map[string]any{"failure_reason": "payment expired"}, enums.EventPaymentCancelled); err != nil {
			if pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
				continue
			}
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func (s *service) transition(ctx context.Context, payment *models.Payment, from, to enums.PaymentStatus, updates map[string]any, eventType enums.OutboxEventType) (*models.Payment, error) {
	if !from.CanTransitionTo(to) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transition not allowed")
	}
	if payment.Status != from {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not in the expected status")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).UpdateStatus(ctx, payment.ID, from, to, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment was modified concurrently")
		}
		payment.Status = to
		return s.events.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Data:          paymentEventData(payment),
		})
	})
	if err != nil {
		return nil, err
	}
	return s.loadPayment(ctx, payment.ID)
}

func (s *service) loadPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == ErrPaymentNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

func canView(actor Actor, payment *models.Payment) bool {
	if actor.Role == enums.UserRoleAdmin {
		return true
	}
	return actor.UserID == payment.PayerID || actor.UserID == payment.PayeeID
}

func paymentEventData(payment *models.Payment) map[string]any {
	return map[string]any{
		"paymentId": payment.ID.String(),
		"payerId":   payment.PayerID.String(),
		"payeeId":   payment.PayeeID.String(),
		"status":    payment.Status,
		"amount":    payment.Amount.String(),
		"netAmount": payment.NetAmount.String(),
		"currency":  payment.Currency,
	}
}
