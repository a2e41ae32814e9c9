package payments

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vidacare-health/vidacare-backend/internal/users"
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

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:payments_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Payment{},
		&models.OutboxEvent{},
	))
	return db
}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()

	db := newTestDB(t)
	events := outbox.NewService(outbox.NewRepository(db), nil)
	svc, err := NewService(NewRepository(db), users.NewRepository(db), gormTxRunner{db: db}, events, nil)
	require.NoError(t, err)
	return svc, db
}

func seedUser(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()
	user := &models.User{
		Email:        uuid.NewString() + "@vidacare.test",
		PasswordHash: "irrelevant",
		FirstName:    "Test",
		LastName:     "User",
		Role:         enums.UserRoleClient,
	}
	require.NoError(t, db.Create(user).Error)
	return user.ID
}

func validCreateParams(t *testing.T, db *gorm.DB) CreateParams {
	return CreateParams{
		PayerID:     seedUser(t, db),
		PayeeID:     seedUser(t, db),
		Type:        enums.PaymentTypeAppointment,
		Method:      enums.PaymentMethodPix,
		Currency:    enums.CurrencyBRL,
		Amount:      decimal.RequireFromString("100.00"),
		PlatformFee: decimal.RequireFromString("10.00"),
		GatewayFee:  decimal.RequireFromString("2.50"),
	}
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	pkgErr := pkgerrors.As(err)
	require.NotNil(t, pkgErr, "expected a typed error, got %v", err)
	assert.Equal(t, code, pkgErr.Code())
}

func TestCreate_ComputesNetAmount(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	payment, err := svc.Create(ctx, validCreateParams(t, db))
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status)
	assert.Equal(t, "87.50", payment.NetAmount.StringFixed(2))
	assert.Equal(t, "0.00", payment.RefundedAmount.StringFixed(2))

	var events int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventPaymentCreated).
		Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestCreate_ValidatesInput(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreateParams)
	}{
		{"missing payer", func(p *CreateParams) { p.PayerID = uuid.Nil }},
		{"payer equals payee", func(p *CreateParams) { p.PayeeID = p.PayerID }},
		{"unknown type", func(p *CreateParams) { p.Type = enums.PaymentType("bogus") }},
		{"unknown method", func(p *CreateParams) { p.Method = enums.PaymentMethod("cash") }},
		{"unknown currency", func(p *CreateParams) { p.Currency = enums.Currency("XYZ") }},
		{"zero amount", func(p *CreateParams) { p.Amount = decimal.Zero }},
		{"negative fee", func(p *CreateParams) { p.PlatformFee = decimal.RequireFromString("-1.00") }},
		{"fees exceed amount", func(p *CreateParams) {
			p.PlatformFee = decimal.RequireFromString("60.00")
			p.GatewayFee = decimal.RequireFromString("40.00")
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := validCreateParams(t, db)
			tc.mutate(&params)
			_, err := svc.Create(ctx, params)
			assertCode(t, err, pkgerrors.CodeValidation)
		})
	}
}

func TestCreate_RequiresKnownParticipants(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	params := validCreateParams(t, db)
	params.PayerID = uuid.New()
	_, err := svc.Create(ctx, params)
	assertCode(t, err, pkgerrors.CodeNotFound)

	params = validCreateParams(t, db)
	params.PayeeID = uuid.New()
	_, err = svc.Create(ctx, params)
	assertCode(t, err, pkgerrors.CodeNotFound)

	var count int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&count).Error)
	assert.Zero(t, count, "no payment row may exist for unknown participants")
}

func TestCreate_DefaultsCurrencyToBRL(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	params := validCreateParams(t, db)
	params.Currency = ""
	payment, err := svc.Create(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, enums.CurrencyBRL, payment.Currency)
}

func TestGet_AuthorizesParticipantsAndAdmin(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	payment, err := svc.Create(ctx, validCreateParams(t, db))
	require.NoError(t, err)

	for _, actor := range []Actor{
		{UserID: payment.PayerID, Role: enums.UserRoleClient},
		{UserID: payment.PayeeID, Role: enums.UserRoleCaregiver},
		{UserID: uuid.New(), Role: enums.UserRoleAdmin},
	} {
		got, err := svc.Get(ctx, actor, payment.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.ID, got.ID)
	}

	_, err = svc.Get(ctx, Actor{UserID: uuid.New(), Role: enums.UserRoleClient}, payment.ID)
	assertCode(t, err, pkgerrors.CodeForbidden)

	_, err = svc.Get(ctx, Actor{UserID: payment.PayerID, Role: enums.UserRoleClient}, uuid.New())
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestProcess_MovesPendingToProcessing(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	payment, err := svc.Create(ctx, validCreateParams(t, db))
	require.NoError(t, err)

	processed, err := svc.Process(ctx, payment.ID, "gw_"+uuid.NewString())
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusProcessing, processed.Status)
	require.NotNil(t, processed.GatewayTransactionID)

	// Processing twice is a state conflict, not a silent no-op.
	_, err = svc.Process(ctx, payment.ID, "gw_other")
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestProcess_RejectsExpiredPayment(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	params := validCreateParams(t, db)
	expiry := time.Now().UTC().Add(-time.Minute)
	params.ExpiresAt = &expiry
	payment, err := svc.Create(ctx, params)
	require.NoError(t, err)

	_, err = svc.Process(ctx, payment.ID, "")
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestCancel_OnlyPayerOrAdmin(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	payment, err := svc.Create(ctx, validCreateParams(t, db))
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, Actor{UserID: payment.PayeeID, Role: enums.UserRoleCaregiver}, payment.ID)
	assertCode(t, err, pkgerrors.CodeForbidden)

	cancelled, err := svc.Cancel(ctx, Actor{UserID: payment.PayerID, Role: enums.UserRoleClient}, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCancelled, cancelled.Status)

	var events int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventPaymentCancelled).
		Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestCancel_RejectsProcessingPayment(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	payment, err := svc.Create(ctx, validCreateParams(t, db))
	require.NoError(t, err)
	_, err = svc.Process(ctx, payment.ID, "")
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, Actor{UserID: payment.PayerID, Role: enums.UserRoleClient}, payment.ID)
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestFail_RecordsReason(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	payment, err := svc.Create(ctx, validCreateParams(t, db))
	require.NoError(t, err)
	_, err = svc.Process(ctx, payment.ID, "")
	require.NoError(t, err)

	failed, err := svc.Fail(ctx, payment.ID, "card declined")
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusFailed, failed.Status)
	require.NotNil(t, failed.FailureReason)
	assert.Equal(t, "card declined", *failed.FailureReason)
}

func TestFail_RejectsPendingPayment(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	payment, err := svc.Create(ctx, validCreateParams(t, db))
	require.NoError(t, err)

	_, err = svc.Fail(ctx, payment.ID, "card declined")
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestExpirePending_CancelsOnlyOverduePayments(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	overdue := validCreateParams(t, db)
	past := now.Add(-time.Hour)
	overdue.ExpiresAt = &past
	expired, err := svc.Create(ctx, overdue)
	require.NoError(t, err)

	upcoming := validCreateParams(t, db)
	future := now.Add(time.Hour)
	upcoming.ExpiresAt = &future
	alive, err := svc.Create(ctx, upcoming)
	require.NoError(t, err)

	count, err := svc.ExpirePending(ctx, now, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	admin := Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}
	got, err := svc.Get(ctx, admin, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusCancelled, got.Status)

	got, err = svc.Get(ctx, admin, alive.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, got.Status)
}

func TestList_FiltersByParticipantAndStatus(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, db)

	for i := 0; i < 3; i++ {
		params := validCreateParams(t, db)
		params.PayerID = userID
		_, err := svc.Create(ctx, params)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}
	asPayee := validCreateParams(t, db)
	asPayee.PayeeID = userID
	_, err := svc.Create(ctx, asPayee)
	require.NoError(t, err)

	unrelated := validCreateParams(t, db)
	_, err = svc.Create(ctx, unrelated)
	require.NoError(t, err)

	page, err := svc.List(ctx, ListParams{UserID: userID, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page.Items, 4)

	pending, err := svc.List(ctx, ListParams{UserID: userID, Status: enums.PaymentStatusPending, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, pending.Items, 4)

	completed, err := svc.List(ctx, ListParams{UserID: userID, Status: enums.PaymentStatusCompleted, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, completed.Items)
}

func TestList_PaginatesWithCursor(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	userID := seedUser(t, db)

	for i := 0; i < 5; i++ {
		params := validCreateParams(t, db)
		params.PayerID = userID
		desc := fmt.Sprintf("payment %d", i)
		params.Description = &desc
		_, err := svc.Create(ctx, params)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	first, err := svc.List(ctx, ListParams{UserID: userID, Limit: 3})
	require.NoError(t, err)
	require.Len(t, first.Items, 3)
	require.NotEmpty(t, first.Cursor)

	second, err := svc.List(ctx, ListParams{UserID: userID, Limit: 3, Cursor: first.Cursor})
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	assert.Empty(t, second.Cursor)

	seen := map[uuid.UUID]bool{}
	for _, p := range append(first.Items, second.Items...) {
		assert.False(t, seen[p.ID], "payment %s returned twice", p.ID)
		seen[p.ID] = true
	}
}

func TestNetAmount(t *testing.T) {
	net := NetAmount(
		decimal.RequireFromString("100.00"),
		decimal.RequireFromString("10.00"),
		decimal.RequireFromString("2.50"),
	)
	assert.Equal(t, "87.50", net.StringFixed(2))

	negative := NetAmount(
		decimal.RequireFromString("10.00"),
		decimal.RequireFromString("10.00"),
		decimal.RequireFromString("1.00"),
	)
	assert.True(t, negative.IsNegative())
}
