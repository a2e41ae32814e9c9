package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vidacare-health/vidacare-backend/internal/payments"
	dbpkg "github.com/vidacare-health/vidacare-backend/pkg/db"
	"github.com/vidacare-health/vidacare-backend/pkg/db/models"
	"github.com/vidacare-health/vidacare-backend/pkg/enums"
	pkgerrors "github.com/vidacare-health/vidacare-backend/pkg/errors"
	"github.com/vidacare-health/vidacare-backend/pkg/logger"
	"github.com/vidacare-health/vidacare-backend/pkg/metrics"
	"github.com/vidacare-health/vidacare-backend/pkg/outbox"
	"github.com/vidacare-health/vidacare-backend/pkg/pagination"
)

const defaultApplyMaxAttempts = 5

// Service owns every wallet balance mutation. Payments settle and refund
// through here so the ledger entry, the balance update, and the payment status
// move in one transaction.
type Service interface {
	GetOrCreateWallet(ctx context.Context, userID uuid.UUID, currency enums.Currency) (*models.Wallet, error)
	GetWallet(ctx context.Context, actor payments.Actor, userID uuid.UUID, currency enums.Currency) (*models.Wallet, error)
	ListTransactions(ctx context.Context, actor payments.Actor, params ListTransactionsParams) (*TransactionList, error)
	Apply(ctx context.Context, params ApplyParams) (*models.WalletTransaction, error)
	Deposit(ctx context.Context, params DepositParams) (*models.WalletTransaction, error)
	Withdraw(ctx context.Context, actor payments.Actor, params WithdrawParams) (*models.WalletTransaction, error)
	CompletePayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error)
	RefundPayment(ctx context.Context, actor payments.Actor, params RefundParams) (*models.Payment, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo        Repository
	paymentRepo payments.Repository
	tx          txRunner
	events      eventEmitter
	metrics     *metrics.LedgerMetrics
	logg        *logger.Logger
	maxAttempts int
}

// ApplyParams describes one ledger mutation against a user wallet.
type ApplyParams struct {
	UserID      uuid.UUID
	Currency    enums.Currency
	Type        enums.TransactionType
	Amount      decimal.Decimal
	ReferenceID string
	PaymentID   *uuid.UUID
	Description *string
	Metadata    json.RawMessage
}

// DepositParams funds a wallet from an external source.
type DepositParams struct {
	UserID      uuid.UUID
	Currency    enums.Currency
	Amount      decimal.Decimal
	ReferenceID string
	Description *string
}

// WithdrawParams moves available balance out of the platform.
type WithdrawParams struct {
	UserID      uuid.UUID
	Currency    enums.Currency
	Amount      decimal.Decimal
	ReferenceID string
	Description *string
}

// RefundParams reverses part or all of a completed payment.
type RefundParams struct {
	PaymentID uuid.UUID
	Amount    decimal.Decimal
	Reason    string
}

// ListTransactionsParams configures pagination over a wallet's history.
type ListTransactionsParams struct {
	UserID   uuid.UUID
	Currency enums.Currency
	Type     enums.TransactionType
	Limit    int
	Cursor   string
}

// TransactionList wraps returned entries and the cursor for the next page.
type TransactionList struct {
	Items  []models.WalletTransaction `json:"items"`
	Cursor string                     `json:"cursor"`
}

// errVersionConflict is internal to the retry loop and never escapes Apply.
var errVersionConflict = pkgerrors.New(pkgerrors.CodeConflict, "wallet version conflict")

// NewService wires ledger dependencies.
func NewService(repo Repository, paymentRepo payments.Repository, tx txRunner, events eventEmitter, m *metrics.LedgerMetrics, logg *logger.Logger, maxAttempts int) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ledger repository required")
	}
	if paymentRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments repository required")
	}
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultApplyMaxAttempts
	}
	return &service{
		repo:        repo,
		paymentRepo: paymentRepo,
		tx:          tx,
		events:      events,
		metrics:     m,
		logg:        logg,
		maxAttempts: maxAttempts,
	}, nil
}

// GetOrCreateWallet returns the user's wallet for the currency, creating it
// lazily. A concurrent create loses the unique index race and re-reads.
func (s *service) GetOrCreateWallet(ctx context.Context, userID uuid.UUID, currency enums.Currency) (*models.Wallet, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if currency == "" {
		currency = enums.CurrencyBRL
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}

	wallet, err := s.repo.GetWalletForUser(ctx, userID, currency)
	if err == nil {
		return wallet, nil
	}
	if err != ErrWalletNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}

	fresh := &models.Wallet{
		UserID:   userID,
		Currency: currency,
		Status:   enums.WalletStatusActive,
	}
	if createErr := s.repo.CreateWallet(ctx, fresh); createErr != nil {
		if dbpkg.IsUniqueViolation(createErr, "idx_wallets_user_currency") {
			wallet, err = s.repo.GetWalletForUser(ctx, userID, currency)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload wallet after create race")
			}
			return wallet, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "create wallet")
	}
	return fresh, nil
}

func (s *service) GetWallet(ctx context.Context, actor payments.Actor, userID uuid.UUID, currency enums.Currency) (*models.Wallet, error) {
	if actor.Role != enums.UserRoleAdmin && actor.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "wallet belongs to another user")
	}
	return s.GetOrCreateWallet(ctx, userID, currency)
}

func (s *service) ListTransactions(ctx context.Context, actor payments.Actor, params ListTransactionsParams) (*TransactionList, error) {
	if actor.Role != enums.UserRoleAdmin && actor.UserID != params.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "wallet belongs to another user")
	}
	if params.Type != "" && !params.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction type filter")
	}

	wallet, err := s.GetOrCreateWallet(ctx, params.UserID, params.Currency)
	if err != nil {
		return nil, err
	}

	query := listTransactionsParams{
		WalletID: wallet.ID,
		Type:     params.Type,
		Limit:    params.Limit,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListTransactions(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet transactions")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return &TransactionList{Items: rows, Cursor: cursor}, nil
}

// Apply runs one ledger mutation with optimistic retries. Replays of an
// already-applied reference return the stored entry without touching balances.
func (s *service) Apply(ctx context.Context, params ApplyParams) (*models.WalletTransaction, error) {
	start := time.Now()
	txn, err := s.apply(ctx, params)
	if err == nil {
		s.metrics.ObserveDuration(params.Type.String(), time.Since(start))
	}
	return txn, err
}

func (s *service) apply(ctx context.Context, params ApplyParams) (*models.WalletTransaction, error) {
	if err := validateApply(params); err != nil {
		s.metrics.IncRejected(params.Type.String(), "validation")
		return nil, err
	}

	wallet, err := s.GetOrCreateWallet(ctx, params.UserID, params.Currency)
	if err != nil {
		return nil, err
	}

	var txn *models.WalletTransaction
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			applied, applyErr := s.applyOnce(ctx, tx, wallet.ID, params)
			if applyErr != nil {
				return applyErr
			}
			txn = applied
			return nil
		})
		if err == nil {
			s.metrics.IncApplied(params.Type.String())
			return txn, nil
		}
		if pkgErr := pkgerrors.As(err); pkgErr == errVersionConflict {
			s.metrics.IncConflict(params.Type.String())
			continue
		}
		if pkgErr := pkgerrors.As(err); pkgErr != nil && pkgErr.Code() != pkgerrors.CodeDependency {
			s.metrics.IncRejected(params.Type.String(), string(pkgErr.Code()))
		}
		return nil, err
	}

	s.metrics.IncRejected(params.Type.String(), "retries_exhausted")
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "wallet is too contended, retry later")
}

// applyOnce executes the full mutation inside the caller's transaction:
// load wallet, dedupe on reference, write the entry, CAS the balances.
func (s *service) applyOnce(ctx context.Context, tx *gorm.DB, walletID uuid.UUID, params ApplyParams) (*models.WalletTransaction, error) {
	repo := s.repo.WithTx(tx)

	wallet, err := repo.GetWalletByID(ctx, walletID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	if !wallet.IsActive() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "wallet is not active")
	}

	existing, err := repo.FindTransactionByReference(ctx, wallet.ID, params.ReferenceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check reference")
	}
	if existing != nil {
		return existing, nil
	}

	delta := signedDelta(params.Type, params.Amount)
	newBalance := wallet.Balance.Add(delta)
	if newBalance.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "insufficient funds")
	}

	txn := &models.WalletTransaction{
		WalletID:      wallet.ID,
		PaymentID:     params.PaymentID,
		Type:          params.Type,
		Status:        enums.TransactionStatusCompleted,
		Amount:        params.Amount,
		BalanceBefore: wallet.Balance,
		BalanceAfter:  newBalance,
		Description:   params.Description,
		ReferenceID:   params.ReferenceID,
		Metadata:      params.Metadata,
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		if dbpkg.IsUniqueViolation(err, "idx_wallet_txns_reference") {
			// Lost the reference race; the retry will find the winner's entry.
			return nil, errVersionConflict
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create wallet transaction")
	}

	expectedVersion := wallet.Version
	wallet.Balance = newBalance
	wallet.AvailableBalance = newBalance
	applyCounters(wallet, params.Type, delta)

	moved, err := repo.UpdateWalletBalances(ctx, wallet, expectedVersion)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update wallet balances")
	}
	if !moved {
		return nil, errVersionConflict
	}

	if err := s.emitWalletEvent(ctx, tx, wallet, txn, delta); err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithWalletID(ctx, wallet.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"transaction_id": txn.ID.String(),
			"type":           txn.Type,
			"reference_id":   txn.ReferenceID,
			"balance_after":  txn.BalanceAfter.String(),
		})
		s.logg.Info(logCtx, "ledger entry applied")
	}
	return txn, nil
}

func (s *service) Deposit(ctx context.Context, params DepositParams) (*models.WalletTransaction, error) {
	return s.Apply(ctx, ApplyParams{
		UserID:      params.UserID,
		Currency:    params.Currency,
		Type:        enums.TransactionTypeDeposit,
		Amount:      params.Amount,
		ReferenceID: params.ReferenceID,
		Description: params.Description,
	})
}

func (s *service) Withdraw(ctx context.Context, actor payments.Actor, params WithdrawParams) (*models.WalletTransaction, error) {
	if actor.Role != enums.UserRoleAdmin && actor.UserID != params.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "wallet belongs to another user")
	}
	txn, err := s.Apply(ctx, ApplyParams{
		UserID:      params.UserID,
		Currency:    params.Currency,
		Type:        enums.TransactionTypeWithdrawal,
		Amount:      params.Amount,
		ReferenceID: params.ReferenceID,
		Description: params.Description,
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// CompletePayment settles a processing payment: the status flips to completed
// and the payee wallet receives the net amount, atomically. Wallet-funded
// payments additionally debit the payer wallet for the gross amount in the
// same transaction, so an underfunded payer aborts the whole settlement.
func (s *service) CompletePayment(ctx context.Context, paymentID uuid.UUID) (*models.Payment, error) {
	if paymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	payment, err := s.loadPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.IsCompleted() {
		return payment, nil
	}
	if payment.Status != enums.PaymentStatusProcessing {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not processing")
	}

	wallet, err := s.GetOrCreateWallet(ctx, payment.PayeeID, payment.Currency)
	if err != nil {
		return nil, err
	}
	var payerWallet *models.Wallet
	if payment.Method == enums.PaymentMethodWallet {
		payerWallet, err = s.GetOrCreateWallet(ctx, payment.PayerID, payment.Currency)
		if err != nil {
			return nil, err
		}
	}

	reference := settlementReference(payment.ID)
	now := time.Now().UTC()

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			moved, err := s.paymentRepo.WithTx(tx).UpdateStatus(ctx, payment.ID,
				enums.PaymentStatusProcessing, enums.PaymentStatusCompleted,
				map[string]any{"paid_at": now})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete payment")
			}
			if !moved {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "payment was modified concurrently")
			}

			if payerWallet != nil {
				if _, err := s.applyOnce(ctx, tx, payerWallet.ID, ApplyParams{
					UserID:      payment.PayerID,
					Currency:    payment.Currency,
					Type:        enums.TransactionTypePayment,
					Amount:      payment.Amount,
					ReferenceID: chargeReference(payment.ID),
					PaymentID:   &payment.ID,
				}); err != nil {
					return err
				}
			}

			if _, err := s.applyOnce(ctx, tx, wallet.ID, ApplyParams{
				UserID:      payment.PayeeID,
				Currency:    payment.Currency,
				Type:        enums.TransactionTypeTransferIn,
				Amount:      payment.NetAmount,
				ReferenceID: reference,
				PaymentID:   &payment.ID,
			}); err != nil {
				return err
			}

			return s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentCompleted,
				AggregateType: enums.AggregatePayment,
				AggregateID:   payment.ID,
				Data: map[string]any{
					"paymentId": payment.ID.String(),
					"payerId":   payment.PayerID.String(),
					"payeeId":   payment.PayeeID.String(),
					"amount":    payment.Amount.String(),
					"netAmount": payment.NetAmount.String(),
					"currency":  payment.Currency,
				},
			})
		})
		if err == nil {
			return s.loadPayment(ctx, payment.ID)
		}
		if pkgErr := pkgerrors.As(err); pkgErr == errVersionConflict {
			s.metrics.IncConflict(enums.TransactionTypeTransferIn.String())
			continue
		}
		return nil, err
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "wallet is too contended, retry later")
}

// RefundPayment reverses amount from the payee wallet back to the payer.
// Partial refunds accumulate until the full amount is returned.
func (s *service) RefundPayment(ctx context.Context, actor payments.Actor, params RefundParams) (*models.Payment, error) {
	if params.PaymentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	if !params.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	payment, err := s.loadPayment(ctx, params.PaymentID)
	if err != nil {
		return nil, err
	}
	if actor.Role != enums.UserRoleAdmin && actor.UserID != payment.PayerID && actor.UserID != payment.PayeeID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only a payment participant or an admin can request a refund")
	}
	if !payment.IsCompleted() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not refundable")
	}
	if !payment.CanRefund(params.Amount) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount exceeds the refundable balance")
	}

	payeeWallet, err := s.GetOrCreateWallet(ctx, payment.PayeeID, payment.Currency)
	if err != nil {
		return nil, err
	}
	payerWallet, err := s.GetOrCreateWallet(ctx, payment.PayerID, payment.Currency)
	if err != nil {
		return nil, err
	}

	var description *string
	if params.Reason != "" {
		reason := params.Reason
		description = &reason
	}

	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		// Derived from the freshest payment read. The reference carries the
		// cumulative total, so a replayed delivery recomputes the same key and
		// a stale read loses the ApplyRefund compare-and-swap below.
		priorRefunded := payment.RefundedAmount
		newRefunded := priorRefunded.Add(params.Amount)
		status := enums.PaymentStatusPartiallyRefunded
		if newRefunded.Equal(payment.Amount) {
			status = enums.PaymentStatusRefunded
		}
		reference := refundReference(payment.ID, newRefunded)
		now := time.Now().UTC()

		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			existing, err := s.repo.WithTx(tx).FindTransactionByReference(ctx, payerWallet.ID, reference)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check refund reference")
			}
			if existing != nil {
				// The payer credit for this cumulative total already exists:
				// the whole refund landed on an earlier delivery. Touch
				// nothing, including the payment counters.
				return nil
			}

			moved, err := s.paymentRepo.WithTx(tx).ApplyRefund(ctx, payment.ID, priorRefunded, params.Amount, status, now)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply refund")
			}
			if !moved {
				// Another refund landed since the payment was read.
				return errVersionConflict
			}

			if _, err := s.applyOnce(ctx, tx, payeeWallet.ID, ApplyParams{
				UserID:      payment.PayeeID,
				Currency:    payment.Currency,
				Type:        enums.TransactionTypeAdjustment,
				Amount:      params.Amount.Neg(),
				ReferenceID: reference,
				PaymentID:   &payment.ID,
				Description: description,
			}); err != nil {
				return err
			}

			if _, err := s.applyOnce(ctx, tx, payerWallet.ID, ApplyParams{
				UserID:      payment.PayerID,
				Currency:    payment.Currency,
				Type:        enums.TransactionTypeRefund,
				Amount:      params.Amount,
				ReferenceID: reference,
				PaymentID:   &payment.ID,
				Description: description,
			}); err != nil {
				return err
			}

			return s.events.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentRefunded,
				AggregateType: enums.AggregatePayment,
				AggregateID:   payment.ID,
				Data: map[string]any{
					"paymentId":      payment.ID.String(),
					"payerId":        payment.PayerID.String(),
					"payeeId":        payment.PayeeID.String(),
					"amount":         params.Amount.String(),
					"refundedAmount": newRefunded.String(),
					"currency":       payment.Currency,
					"status":         status,
				},
			})
		})
		if err == nil {
			return s.loadPayment(ctx, payment.ID)
		}
		if pkgErr := pkgerrors.As(err); pkgErr == errVersionConflict {
			s.metrics.IncConflict(enums.TransactionTypeRefund.String())
			payment, err = s.loadPayment(ctx, payment.ID)
			if err != nil {
				return nil, err
			}
			if !payment.CanRefund(params.Amount) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount exceeds the refundable balance")
			}
			continue
		}
		return nil, err
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "wallet is too contended, retry later")
}

func (s *service) emitWalletEvent(ctx context.Context, tx *gorm.DB, wallet *models.Wallet, txn *models.WalletTransaction, delta decimal.Decimal) error {
	eventType := enums.EventWalletCredited
	if delta.IsNegative() {
		eventType = enums.EventWalletDebited
	}
	if txn.Type == enums.TransactionTypeWithdrawal {
		eventType = enums.EventWithdrawalRequested
	}
	return s.events.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateWallet,
		AggregateID:   wallet.ID,
		Data: map[string]any{
			"walletId":      wallet.ID.String(),
			"userId":        wallet.UserID.String(),
			"transactionId": txn.ID.String(),
			"type":          txn.Type,
			"amount":        txn.Amount.String(),
			"balanceAfter":  txn.BalanceAfter.String(),
		},
	})
}

func (s *service) loadPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, id)
	if err != nil {
		if err == payments.ErrPaymentNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

func validateApply(params ApplyParams) error {
	if params.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if params.ReferenceID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "reference id required")
	}
	if !params.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction type")
	}
	switch {
	case params.Type.IsSigned():
		if params.Amount.IsZero() {
			return pkgerrors.New(pkgerrors.CodeValidation, "amount must be non-zero")
		}
	default:
		if !params.Amount.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
		}
	}
	return nil
}

// signedDelta converts the declared amount into the balance movement.
func signedDelta(t enums.TransactionType, amount decimal.Decimal) decimal.Decimal {
	if t.IsDebit() {
		return amount.Neg()
	}
	return amount
}

// applyCounters keeps the monotonic totals in step with the movement.
func applyCounters(wallet *models.Wallet, t enums.TransactionType, delta decimal.Decimal) {
	if delta.IsPositive() {
		wallet.TotalReceived = wallet.TotalReceived.Add(delta)
		return
	}
	moved := delta.Neg()
	if t == enums.TransactionTypeWithdrawal {
		wallet.TotalWithdrawn = wallet.TotalWithdrawn.Add(moved)
	}
	wallet.TotalSent = wallet.TotalSent.Add(moved)
}

func settlementReference(paymentID uuid.UUID) string {
	return fmt.Sprintf("payment:%s:settlement", paymentID)
}

func chargeReference(paymentID uuid.UUID) string {
	return fmt.Sprintf("payment:%s:charge", paymentID)
}

func refundReference(paymentID uuid.UUID, cumulative decimal.Decimal) string {
	return fmt.Sprintf("payment:%s:refund:%s", paymentID, cumulative.StringFixed(2))
}
