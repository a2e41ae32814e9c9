package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vidacare-health/vidacare-backend/internal/payments"
	"github.com/vidacare-health/vidacare-backend/pkg/db/models"
	"github.com/vidacare-health/vidacare-backend/pkg/enums"
	pkgerrors "github.com/vidacare-health/vidacare-backend/pkg/errors"
	"github.com/vidacare-health/vidacare-backend/pkg/outbox"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// hookTxRunner runs a callback once before the first transaction starts,
// letting a test commit competing work between a service's payment read and
// its write transaction.
type hookTxRunner struct {
	db     *gorm.DB
	before func()
}

func (r *hookTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if r.before != nil {
		hook := r.before
		r.before = nil
		hook()
	}
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:ledger_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Payment{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.OutboxEvent{},
	))
	return db
}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	return newServiceWithRunner(t, db, gormTxRunner{db: db}), db
}

func newServiceWithRunner(t *testing.T, db *gorm.DB, runner txRunner) Service {
	t.Helper()
	events := outbox.NewService(outbox.NewRepository(db), nil)
	svc, err := NewService(
		NewRepository(db),
		payments.NewRepository(db),
		runner,
		events,
		nil,
		nil,
		5,
	)
	require.NoError(t, err)
	return svc
}

func seedPayment(t *testing.T, db *gorm.DB, status enums.PaymentStatus, amount, platformFee, gatewayFee string) *models.Payment {
	t.Helper()
	return seedPaymentWithMethod(t, db, enums.PaymentMethodPix, status, amount, platformFee, gatewayFee)
}

func seedPaymentWithMethod(t *testing.T, db *gorm.DB, method enums.PaymentMethod, status enums.PaymentStatus, amount, platformFee, gatewayFee string) *models.Payment {
	t.Helper()

	payment := &models.Payment{
		PayerID:     uuid.New(),
		PayeeID:     uuid.New(),
		Type:        enums.PaymentTypeAppointment,
		Method:      method,
		Status:      status,
		Currency:    enums.CurrencyBRL,
		Amount:      decimal.RequireFromString(amount),
		PlatformFee: decimal.RequireFromString(platformFee),
		GatewayFee:  decimal.RequireFromString(gatewayFee),
	}
	payment.NetAmount = payments.NetAmount(payment.Amount, payment.PlatformFee, payment.GatewayFee)
	require.NoError(t, db.Create(payment).Error)
	return payment
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	pkgErr := pkgerrors.As(err)
	require.NotNil(t, pkgErr, "expected a typed error, got %v", err)
	assert.Equal(t, code, pkgErr.Code())
}

func TestGetOrCreateWallet_CreatesOncePerCurrency(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	first, err := svc.GetOrCreateWallet(ctx, userID, enums.CurrencyBRL)
	require.NoError(t, err)
	assert.Equal(t, enums.WalletStatusActive, first.Status)
	assert.True(t, first.Balance.IsZero())

	again, err := svc.GetOrCreateWallet(ctx, userID, enums.CurrencyBRL)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	other, err := svc.GetOrCreateWallet(ctx, userID, enums.CurrencyUSD)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestGetOrCreateWallet_RejectsInvalidInput(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetOrCreateWallet(ctx, uuid.Nil, enums.CurrencyBRL)
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.GetOrCreateWallet(ctx, uuid.New(), enums.Currency("XYZ"))
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestGetWallet_ForbidsOtherUsers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()

	_, err := svc.GetWallet(ctx, payments.Actor{UserID: uuid.New(), Role: enums.UserRoleClient}, owner, enums.CurrencyBRL)
	assertCode(t, err, pkgerrors.CodeForbidden)

	wallet, err := svc.GetWallet(ctx, payments.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}, owner, enums.CurrencyBRL)
	require.NoError(t, err)
	assert.Equal(t, owner, wallet.UserID)
}

func TestDeposit_CreditsBalanceAndCounters(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	txn, err := svc.Deposit(ctx, DepositParams{
		UserID:      userID,
		Currency:    enums.CurrencyBRL,
		Amount:      decimal.RequireFromString("150.00"),
		ReferenceID: "deposit:test:1",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.TransactionStatusCompleted, txn.Status)
	assert.Equal(t, "0.00", txn.BalanceBefore.StringFixed(2))
	assert.Equal(t, "150.00", txn.BalanceAfter.StringFixed(2))

	wallet, err := svc.GetOrCreateWallet(ctx, userID, enums.CurrencyBRL)
	require.NoError(t, err)
	assert.Equal(t, "150.00", wallet.Balance.StringFixed(2))
	assert.Equal(t, "150.00", wallet.AvailableBalance.StringFixed(2))
	assert.Equal(t, "150.00", wallet.TotalReceived.StringFixed(2))
	assert.Equal(t, int64(1), wallet.Version)

	var events int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventWalletCredited).
		Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestWithdraw_DebitsAndTracksWithdrawn(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	actor := payments.Actor{UserID: userID, Role: enums.UserRoleCaregiver}

	_, err := svc.Deposit(ctx, DepositParams{
		UserID:      userID,
		Currency:    enums.CurrencyBRL,
		Amount:      decimal.RequireFromString("200.00"),
		ReferenceID: "deposit:test:1",
	})
	require.NoError(t, err)

	txn, err := svc.Withdraw(ctx, actor, WithdrawParams{
		UserID:      userID,
		Currency:    enums.CurrencyBRL,
		Amount:      decimal.RequireFromString("80.00"),
		ReferenceID: "withdrawal:test:1",
	})
	require.NoError(t, err)
	assert.Equal(t, "120.00", txn.BalanceAfter.StringFixed(2))

	wallet, err := svc.GetOrCreateWallet(ctx, userID, enums.CurrencyBRL)
	require.NoError(t, err)
	assert.Equal(t, "120.00", wallet.Balance.StringFixed(2))
	assert.Equal(t, "80.00", wallet.TotalSent.StringFixed(2))
	assert.Equal(t, "80.00", wallet.TotalWithdrawn.StringFixed(2))

	var events int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventWithdrawalRequested).
		Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestWithdraw_ForbidsOtherUsers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Withdraw(ctx, payments.Actor{UserID: uuid.New(), Role: enums.UserRoleClient}, WithdrawParams{
		UserID:      uuid.New(),
		Currency:    enums.CurrencyBRL,
		Amount:      decimal.RequireFromString("10.00"),
		ReferenceID: "withdrawal:test:1",
	})
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestApply_RejectsInsufficientFunds(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.Deposit(ctx, DepositParams{
		UserID:      userID,
		Currency:    enums.CurrencyBRL,
		Amount:      decimal.RequireFromString("50.00"),
		ReferenceID: "deposit:test:1",
	})
	require.NoError(t, err)

	_, err = svc.Apply(ctx, ApplyParams{
		UserID:      userID,
		Currency:    enums.CurrencyBRL,
		Type:        enums.TransactionTypeWithdrawal,
		Amount:      decimal.RequireFromString("50.01"),
		ReferenceID: "withdrawal:test:1",
	})
	assertCode(t, err, pkgerrors.CodeValidation)

	// The rejected attempt must leave no trace.
	wallet, err := svc.GetOrCreateWallet(ctx, userID, enums.CurrencyBRL)
	require.NoError(t, err)
	assert.Equal(t, "50.00", wallet.Balance.StringFixed(2))

	var entries int64
	require.NoError(t, db.Model(&models.WalletTransaction{}).
		Where("wallet_id = ?", wallet.ID).
		Count(&entries).Error)
	assert.Equal(t, int64(1), entries)
}

func TestApply_ValidatesParams(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		params ApplyParams
	}{
		{
			name: "missing user",
			params: ApplyParams{
				Type:        enums.TransactionTypeDeposit,
				Amount:      decimal.RequireFromString("10.00"),
				ReferenceID: "ref",
			},
		},
		{
			name: "missing reference",
			params: ApplyParams{
				UserID: uuid.New(),
				Type:   enums.TransactionTypeDeposit,
				Amount: decimal.RequireFromString("10.00"),
			},
		},
		{
			name: "unknown type",
			params: ApplyParams{
				UserID:      uuid.New(),
				Type:        enums.TransactionType("bogus"),
				Amount:      decimal.RequireFromString("10.00"),
				ReferenceID: "ref",
			},
		},
		{
			name: "negative deposit",
			params: ApplyParams{
				UserID:      uuid.New(),
				Type:        enums.TransactionTypeDeposit,
				Amount:      decimal.RequireFromString("-10.00"),
				ReferenceID: "ref",
			},
		},
		{
			name: "zero adjustment",
			params: ApplyParams{
				UserID:      uuid.New(),
				Type:        enums.TransactionTypeAdjustment,
				Amount:      decimal.Zero,
				ReferenceID: "ref",
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Apply(ctx, tc.params)
			assertCode(t, err, pkgerrors.CodeValidation)
		})
	}
}

func TestApply_ReplaysExistingReference(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	params := DepositParams{
		UserID:      userID,
		Currency:    enums.CurrencyBRL,
		Amount:      decimal.RequireFromString("100.00"),
		ReferenceID: "deposit:test:1",
	}
	first, err := svc.Deposit(ctx, params)
	require.NoError(t, err)

	replay, err := svc.Deposit(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, first.ID, replay.ID)

	wallet, err := svc.GetOrCreateWallet(ctx, userID, enums.CurrencyBRL)
	require.NoError(t, err)
	assert.Equal(t, "100.00", wallet.Balance.StringFixed(2))
	assert.Equal(t, int64(1), wallet.Version)
}

func TestApply_RejectsInactiveWallet(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	wallet, err := svc.GetOrCreateWallet(ctx, userID, enums.CurrencyBRL)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Wallet{}).
		Where("id = ?", wallet.ID).
		Update("status", enums.WalletStatusSuspended).Error)

	_, err = svc.Deposit(ctx, DepositParams{
		UserID:      userID,
		Currency:    enums.CurrencyBRL,
		Amount:      decimal.RequireFromString("10.00"),
		ReferenceID: "deposit:test:1",
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestApply_SignedAdjustmentFollowsItsSign(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.Deposit(ctx, DepositParams{
		UserID:      userID,
		Currency:    enums.CurrencyBRL,
		Amount:      decimal.RequireFromString("100.00"),
		ReferenceID: "deposit:test:1",
	})
	require.NoError(t, err)

	_, err = svc.Apply(ctx, ApplyParams{
		UserID:      userID,
		Currency:    enums.CurrencyBRL,
		Type:        enums.TransactionTypeAdjustment,
		Amount:      decimal.RequireFromString("-30.00"),
		ReferenceID: "adjustment:test:1",
	})
	require.NoError(t, err)

	_, err = svc.Apply(ctx, ApplyParams{
		UserID:      userID,
		Currency:    enums.CurrencyBRL,
		Type:        enums.TransactionTypeAdjustment,
		Amount:      decimal.RequireFromString("5.00"),
		ReferenceID: "adjustment:test:2",
	})
	require.NoError(t, err)

	wallet, err := svc.GetOrCreateWallet(ctx, userID, enums.CurrencyBRL)
	require.NoError(t, err)
	assert.Equal(t, "75.00", wallet.Balance.StringFixed(2))
}

func TestApply_HistoryReplaysToBalance(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	ops := []ApplyParams{
		{Type: enums.TransactionTypeDeposit, Amount: decimal.RequireFromString("300.00"), ReferenceID: "deposit:1"},
		{Type: enums.TransactionTypeWithdrawal, Amount: decimal.RequireFromString("45.50"), ReferenceID: "withdrawal:1"},
		{Type: enums.TransactionTypeFee, Amount: decimal.RequireFromString("4.50"), ReferenceID: "fee:1"},
		{Type: enums.TransactionTypeAdjustment, Amount: decimal.RequireFromString("-20.00"), ReferenceID: "adjustment:1"},
		{Type: enums.TransactionTypeDeposit, Amount: decimal.RequireFromString("10.00"), ReferenceID: "deposit:2"},
	}
	for _, op := range ops {
		op.UserID = userID
		op.Currency = enums.CurrencyBRL
		_, err := svc.Apply(ctx, op)
		require.NoError(t, err)
	}

	wallet, err := svc.GetOrCreateWallet(ctx, userID, enums.CurrencyBRL)
	require.NoError(t, err)
	assert.Equal(t, "240.00", wallet.Balance.StringFixed(2))
	assert.Equal(t, int64(len(ops)), wallet.Version)

	var entries []models.WalletTransaction
	require.NoError(t, db.Where("wallet_id = ?", wallet.ID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error)
	require.Len(t, entries, len(ops))

	replayed := decimal.Zero
	for _, entry := range entries {
		assert.Equal(t, replayed.StringFixed(2), entry.BalanceBefore.StringFixed(2))
		replayed = replayed.Add(entry.SignedAmount())
		assert.Equal(t, replayed.StringFixed(2), entry.BalanceAfter.StringFixed(2))
	}
	assert.Equal(t, wallet.Balance.StringFixed(2), replayed.StringFixed(2))
}

func TestApply_ConcurrentDepositsAllLand(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Deposit(ctx, DepositParams{
				UserID:      userID,
				Currency:    enums.CurrencyBRL,
				Amount:      decimal.RequireFromString("10.00"),
				ReferenceID: fmt.Sprintf("deposit:concurrent:%d", i),
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "deposit %d", i)
	}

	wallet, err := svc.GetOrCreateWallet(ctx, userID, enums.CurrencyBRL)
	require.NoError(t, err)
	assert.Equal(t, "100.00", wallet.Balance.StringFixed(2))
	assert.Equal(t, int64(workers), wallet.Version)
}

func TestListTransactions_PaginatesNewestFirst(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	actor := payments.Actor{UserID: userID, Role: enums.UserRoleClient}

	for i := 0; i < 5; i++ {
		_, err := svc.Deposit(ctx, DepositParams{
			UserID:      userID,
			Currency:    enums.CurrencyBRL,
			Amount:      decimal.RequireFromString("10.00"),
			ReferenceID: fmt.Sprintf("deposit:list:%d", i),
		})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	page, err := svc.ListTransactions(ctx, actor, ListTransactionsParams{
		UserID:   userID,
		Currency: enums.CurrencyBRL,
		Limit:    3,
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	require.NotEmpty(t, page.Cursor)
	assert.Equal(t, "deposit:list:4", page.Items[0].ReferenceID)

	rest, err := svc.ListTransactions(ctx, actor, ListTransactionsParams{
		UserID:   userID,
		Currency: enums.CurrencyBRL,
		Limit:    3,
		Cursor:   page.Cursor,
	})
	require.NoError(t, err)
	require.Len(t, rest.Items, 2)
	assert.Empty(t, rest.Cursor)
	assert.Equal(t, "deposit:list:0", rest.Items[1].ReferenceID)
}

func TestListTransactions_ForbidsOtherUsers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ListTransactions(ctx, payments.Actor{UserID: uuid.New(), Role: enums.UserRoleClient}, ListTransactionsParams{
		UserID:   uuid.New(),
		Currency: enums.CurrencyBRL,
	})
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestCompletePayment_SettlesNetAmountToPayee(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	payment := seedPayment(t, db, enums.PaymentStatusProcessing, "100.00", "10.00", "2.50")

	settled, err := svc.CompletePayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, settled.Status)
	require.NotNil(t, settled.PaidAt)

	wallet, err := svc.GetOrCreateWallet(ctx, payment.PayeeID, payment.Currency)
	require.NoError(t, err)
	assert.Equal(t, "87.50", wallet.Balance.StringFixed(2))

	var entry models.WalletTransaction
	require.NoError(t, db.First(&entry, "wallet_id = ?", wallet.ID).Error)
	assert.Equal(t, enums.TransactionTypeTransferIn, entry.Type)
	assert.Equal(t, fmt.Sprintf("payment:%s:settlement", payment.ID), entry.ReferenceID)
	require.NotNil(t, entry.PaymentID)
	assert.Equal(t, payment.ID, *entry.PaymentID)

	var events int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventPaymentCompleted).
		Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestCompletePayment_IsIdempotent(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	payment := seedPayment(t, db, enums.PaymentStatusProcessing, "100.00", "0.00", "0.00")

	_, err := svc.CompletePayment(ctx, payment.ID)
	require.NoError(t, err)

	again, err := svc.CompletePayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, again.Status)

	wallet, err := svc.GetOrCreateWallet(ctx, payment.PayeeID, payment.Currency)
	require.NoError(t, err)
	assert.Equal(t, "100.00", wallet.Balance.StringFixed(2))
	assert.Equal(t, int64(1), wallet.Version)
}

func TestCompletePayment_RejectsWrongState(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	payment := seedPayment(t, db, enums.PaymentStatusPending, "100.00", "0.00", "0.00")

	_, err := svc.CompletePayment(ctx, payment.ID)
	assertCode(t, err, pkgerrors.CodeStateConflict)

	_, err = svc.CompletePayment(ctx, uuid.New())
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestCompletePayment_WalletMethodDebitsPayer(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	payment := seedPaymentWithMethod(t, db, enums.PaymentMethodWallet, enums.PaymentStatusProcessing, "100.00", "10.00", "2.50")

	_, err := svc.Deposit(ctx, DepositParams{
		UserID:      payment.PayerID,
		Currency:    payment.Currency,
		Amount:      decimal.RequireFromString("150.00"),
		ReferenceID: "deposit:test:1",
	})
	require.NoError(t, err)

	settled, err := svc.CompletePayment(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, settled.Status)

	payerWallet, err := svc.GetOrCreateWallet(ctx, payment.PayerID, payment.Currency)
	require.NoError(t, err)
	assert.Equal(t, "50.00", payerWallet.Balance.StringFixed(2))
	assert.Equal(t, "100.00", payerWallet.TotalSent.StringFixed(2))

	var charge models.WalletTransaction
	require.NoError(t, db.First(&charge,
		"wallet_id = ? AND type = ?", payerWallet.ID, enums.TransactionTypePayment).Error)
	assert.Equal(t, fmt.Sprintf("payment:%s:charge", payment.ID), charge.ReferenceID)
	assert.True(t, charge.SignedAmount().IsNegative())

	payeeWallet, err := svc.GetOrCreateWallet(ctx, payment.PayeeID, payment.Currency)
	require.NoError(t, err)
	assert.Equal(t, "87.50", payeeWallet.Balance.StringFixed(2))
}

func TestCompletePayment_WalletMethodRequiresPayerFunds(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	payment := seedPaymentWithMethod(t, db, enums.PaymentMethodWallet, enums.PaymentStatusProcessing, "100.00", "0.00", "0.00")

	_, err := svc.Deposit(ctx, DepositParams{
		UserID:      payment.PayerID,
		Currency:    payment.Currency,
		Amount:      decimal.RequireFromString("60.00"),
		ReferenceID: "deposit:test:1",
	})
	require.NoError(t, err)

	_, err = svc.CompletePayment(ctx, payment.ID)
	assertCode(t, err, pkgerrors.CodeValidation)

	// The whole settlement rolls back, nothing half moves.
	reloaded, err := payments.NewRepository(db).GetByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusProcessing, reloaded.Status)

	payerWallet, err := svc.GetOrCreateWallet(ctx, payment.PayerID, payment.Currency)
	require.NoError(t, err)
	assert.Equal(t, "60.00", payerWallet.Balance.StringFixed(2))

	payeeWallet, err := svc.GetOrCreateWallet(ctx, payment.PayeeID, payment.Currency)
	require.NoError(t, err)
	assert.True(t, payeeWallet.Balance.IsZero())
}

func TestRefundPayment_PartialThenFull(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	payment := seedPayment(t, db, enums.PaymentStatusProcessing, "100.00", "0.00", "0.00")
	admin := payments.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}

	_, err := svc.CompletePayment(ctx, payment.ID)
	require.NoError(t, err)

	partial, err := svc.RefundPayment(ctx, admin, RefundParams{
		PaymentID: payment.ID,
		Amount:    decimal.RequireFromString("40.00"),
		Reason:    "late cancellation",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPartiallyRefunded, partial.Status)
	assert.Equal(t, "40.00", partial.RefundedAmount.StringFixed(2))
	require.NotNil(t, partial.RefundedAt)

	full, err := svc.RefundPayment(ctx, admin, RefundParams{
		PaymentID: payment.ID,
		Amount:    decimal.RequireFromString("60.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusRefunded, full.Status)
	assert.Equal(t, "100.00", full.RefundedAmount.StringFixed(2))

	payerWallet, err := svc.GetOrCreateWallet(ctx, payment.PayerID, payment.Currency)
	require.NoError(t, err)
	assert.Equal(t, "100.00", payerWallet.Balance.StringFixed(2))
	assert.Equal(t, "100.00", payerWallet.TotalReceived.StringFixed(2))

	payeeWallet, err := svc.GetOrCreateWallet(ctx, payment.PayeeID, payment.Currency)
	require.NoError(t, err)
	assert.Equal(t, "0.00", payeeWallet.Balance.StringFixed(2))
}

func TestRefundPayment_DebitsPayeeWallet(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	payment := seedPayment(t, db, enums.PaymentStatusProcessing, "100.00", "0.00", "0.00")
	admin := payments.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}

	_, err := svc.CompletePayment(ctx, payment.ID)
	require.NoError(t, err)

	_, err = svc.RefundPayment(ctx, admin, RefundParams{
		PaymentID: payment.ID,
		Amount:    decimal.RequireFromString("25.00"),
	})
	require.NoError(t, err)

	payeeWallet, err := svc.GetOrCreateWallet(ctx, payment.PayeeID, payment.Currency)
	require.NoError(t, err)
	assert.Equal(t, "75.00", payeeWallet.Balance.StringFixed(2))

	var events int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventPaymentRefunded).
		Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestRefundPayment_FailsWhenPayeeFundsGone(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	payment := seedPayment(t, db, enums.PaymentStatusProcessing, "100.00", "0.00", "0.00")
	admin := payments.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}

	_, err := svc.CompletePayment(ctx, payment.ID)
	require.NoError(t, err)

	payeeActor := payments.Actor{UserID: payment.PayeeID, Role: enums.UserRoleCaregiver}
	_, err = svc.Withdraw(ctx, payeeActor, WithdrawParams{
		UserID:      payment.PayeeID,
		Currency:    payment.Currency,
		Amount:      decimal.RequireFromString("100.00"),
		ReferenceID: "withdrawal:test:1",
	})
	require.NoError(t, err)

	_, err = svc.RefundPayment(ctx, admin, RefundParams{
		PaymentID: payment.ID,
		Amount:    decimal.RequireFromString("50.00"),
	})
	assertCode(t, err, pkgerrors.CodeValidation)

	// The aborted refund must not leave the payment half moved.
	reloaded, err := payments.NewRepository(db).GetByID(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCompleted, reloaded.Status)
	assert.Equal(t, "0.00", reloaded.RefundedAmount.StringFixed(2))
}

func TestRefundPayment_RejectsOverRefund(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	payment := seedPayment(t, db, enums.PaymentStatusProcessing, "100.00", "0.00", "0.00")
	admin := payments.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}

	_, err := svc.CompletePayment(ctx, payment.ID)
	require.NoError(t, err)

	_, err = svc.RefundPayment(ctx, admin, RefundParams{
		PaymentID: payment.ID,
		Amount:    decimal.RequireFromString("60.00"),
	})
	require.NoError(t, err)

	_, err = svc.RefundPayment(ctx, admin, RefundParams{
		PaymentID: payment.ID,
		Amount:    decimal.RequireFromString("60.00"),
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestRefundPayment_AuthorizesParticipantsAndAdmin(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	payment := seedPayment(t, db, enums.PaymentStatusProcessing, "100.00", "0.00", "0.00")

	_, err := svc.CompletePayment(ctx, payment.ID)
	require.NoError(t, err)

	stranger := payments.Actor{UserID: uuid.New(), Role: enums.UserRoleClient}
	_, err = svc.RefundPayment(ctx, stranger, RefundParams{
		PaymentID: payment.ID,
		Amount:    decimal.RequireFromString("10.00"),
	})
	assertCode(t, err, pkgerrors.CodeForbidden)

	payer := payments.Actor{UserID: payment.PayerID, Role: enums.UserRoleClient}
	refunded, err := svc.RefundPayment(ctx, payer, RefundParams{
		PaymentID: payment.ID,
		Amount:    decimal.RequireFromString("10.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPartiallyRefunded, refunded.Status)

	// The recipient may hand money back as well.
	payee := payments.Actor{UserID: payment.PayeeID, Role: enums.UserRoleCaregiver}
	refunded, err = svc.RefundPayment(ctx, payee, RefundParams{
		PaymentID: payment.ID,
		Amount:    decimal.RequireFromString("15.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, "25.00", refunded.RefundedAmount.StringFixed(2))
}

func TestRefundPayment_RejectsPendingPayment(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	payment := seedPayment(t, db, enums.PaymentStatusPending, "100.00", "0.00", "0.00")
	admin := payments.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}

	_, err := svc.RefundPayment(ctx, admin, RefundParams{
		PaymentID: payment.ID,
		Amount:    decimal.RequireFromString("10.00"),
	})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

// A redelivered refund request can read the payment before the first delivery
// commits. The loser must then observe the winner's wallet entries and leave
// both the payment counters and the wallets untouched.
func TestRefundPayment_DuplicateDeliveryAppliesOnce(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	payment := seedPayment(t, db, enums.PaymentStatusProcessing, "80.00", "0.00", "0.00")
	admin := payments.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}

	_, err := svc.CompletePayment(ctx, payment.ID)
	require.NoError(t, err)

	refund := RefundParams{
		PaymentID: payment.ID,
		Amount:    decimal.RequireFromString("40.00"),
	}

	// The hooked service reads the payment, then the identical request
	// commits in full before the hooked transaction starts.
	runner := &hookTxRunner{db: db}
	runner.before = func() {
		_, err := svc.RefundPayment(ctx, admin, refund)
		require.NoError(t, err)
	}
	late := newServiceWithRunner(t, db, runner)

	result, err := late.RefundPayment(ctx, admin, refund)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPartiallyRefunded, result.Status)
	assert.Equal(t, "40.00", result.RefundedAmount.StringFixed(2))

	payerWallet, err := svc.GetOrCreateWallet(ctx, payment.PayerID, payment.Currency)
	require.NoError(t, err)
	assert.Equal(t, "40.00", payerWallet.Balance.StringFixed(2))

	var refundRows int64
	require.NoError(t, db.Model(&models.WalletTransaction{}).
		Where("wallet_id = ? AND type = ?", payerWallet.ID, enums.TransactionTypeRefund).
		Count(&refundRows).Error)
	assert.Equal(t, int64(1), refundRows)
}

func TestRefundPayment_DuplicateFullRefundLandsRefunded(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	payment := seedPayment(t, db, enums.PaymentStatusProcessing, "80.00", "0.00", "0.00")
	admin := payments.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}

	_, err := svc.CompletePayment(ctx, payment.ID)
	require.NoError(t, err)

	refund := RefundParams{
		PaymentID: payment.ID,
		Amount:    decimal.RequireFromString("80.00"),
	}
	runner := &hookTxRunner{db: db}
	runner.before = func() {
		_, err := svc.RefundPayment(ctx, admin, refund)
		require.NoError(t, err)
	}
	late := newServiceWithRunner(t, db, runner)

	result, err := late.RefundPayment(ctx, admin, refund)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusRefunded, result.Status)
	assert.Equal(t, "80.00", result.RefundedAmount.StringFixed(2))

	payerWallet, err := svc.GetOrCreateWallet(ctx, payment.PayerID, payment.Currency)
	require.NoError(t, err)
	assert.Equal(t, "80.00", payerWallet.Balance.StringFixed(2))
}

// Two different refunds racing must serialize: the one holding a stale
// payment read retries with fresh totals instead of reusing its snapshot.
func TestRefundPayment_StaleReadRetriesWithFreshTotals(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	payment := seedPayment(t, db, enums.PaymentStatusProcessing, "80.00", "0.00", "0.00")
	admin := payments.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}

	_, err := svc.CompletePayment(ctx, payment.ID)
	require.NoError(t, err)

	runner := &hookTxRunner{db: db}
	runner.before = func() {
		_, err := svc.RefundPayment(ctx, admin, RefundParams{
			PaymentID: payment.ID,
			Amount:    decimal.RequireFromString("40.00"),
		})
		require.NoError(t, err)
	}
	late := newServiceWithRunner(t, db, runner)

	result, err := late.RefundPayment(ctx, admin, RefundParams{
		PaymentID: payment.ID,
		Amount:    decimal.RequireFromString("30.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPartiallyRefunded, result.Status)
	assert.Equal(t, "70.00", result.RefundedAmount.StringFixed(2))

	payerWallet, err := svc.GetOrCreateWallet(ctx, payment.PayerID, payment.Currency)
	require.NoError(t, err)
	assert.Equal(t, "70.00", payerWallet.Balance.StringFixed(2))

	payeeWallet, err := svc.GetOrCreateWallet(ctx, payment.PayeeID, payment.Currency)
	require.NoError(t, err)
	assert.Equal(t, "10.00", payeeWallet.Balance.StringFixed(2))
}
