package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vidacare-health/vidacare-backend/internal/caregivers"
	"github.com/vidacare-health/vidacare-backend/internal/ledger"
	"github.com/vidacare-health/vidacare-backend/internal/payments"
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

type testEnv struct {
	db         *gorm.DB
	svc        Service
	caregivers caregivers.Service
	ledger     ledger.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:appointments_" + uuid.NewString() + "?mode=memory&cache=shared"
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
		&models.CaregiverProfile{},
		&models.Appointment{},
		&models.Payment{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.OutboxEvent{},
	))

	events := outbox.NewService(outbox.NewRepository(db), nil)
	runner := gormTxRunner{db: db}

	caregiverSvc, err := caregivers.NewService(caregivers.NewRepository(db), nil)
	require.NoError(t, err)

	paymentSvc, err := payments.NewService(payments.NewRepository(db), users.NewRepository(db), runner, events, nil)
	require.NoError(t, err)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(db), payments.NewRepository(db), runner, events, nil, nil, 5)
	require.NoError(t, err)

	svc, err := NewService(NewRepository(db), caregiverSvc, paymentSvc, ledgerSvc, runner, events, nil)
	require.NoError(t, err)

	return &testEnv{db: db, svc: svc, caregivers: caregiverSvc, ledger: ledgerSvc}
}

func (e *testEnv) seedUser(t *testing.T, role enums.UserRole) uuid.UUID {
	t.Helper()
	user := &models.User{
		Email:        uuid.NewString() + "@vidacare.test",
		PasswordHash: "irrelevant",
		FirstName:    "Test",
		LastName:     "User",
		Role:         role,
	}
	require.NoError(t, e.db.Create(user).Error)
	return user.ID
}

func (e *testEnv) seedCaregiver(t *testing.T, rate string) uuid.UUID {
	t.Helper()
	userID := e.seedUser(t, enums.UserRoleCaregiver)
	_, err := e.caregivers.CreateProfile(context.Background(),
		payments.Actor{UserID: userID, Role: enums.UserRoleCaregiver},
		caregivers.ProfileParams{
			UserID:     userID,
			HourlyRate: decimal.RequireFromString(rate),
			City:       "São Paulo",
			State:      "SP",
		})
	require.NoError(t, err)
	return userID
}

func (e *testEnv) book(t *testing.T, clientID, caregiverID uuid.UUID, hours float64) *models.Appointment {
	t.Helper()
	start := time.Now().UTC().Add(24 * time.Hour)
	appointment, err := e.svc.Book(context.Background(),
		payments.Actor{UserID: clientID, Role: enums.UserRoleClient},
		BookParams{
			CaregiverID: caregiverID,
			StartsAt:    start,
			EndsAt:      start.Add(time.Duration(hours * float64(time.Hour))),
		})
	require.NoError(t, err)
	return appointment
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	pkgErr := pkgerrors.As(err)
	require.NotNil(t, pkgErr, "expected a typed error, got %v", err)
	assert.Equal(t, code, pkgErr.Code())
}

func TestBook_PricesFromCaregiverRate(t *testing.T) {
	env := newTestEnv(t)
	caregiverID := env.seedCaregiver(t, "80.00")
	clientID := env.seedUser(t, enums.UserRoleClient)

	appointment := env.book(t, clientID, caregiverID, 1.5)
	assert.Equal(t, enums.AppointmentStatusRequested, appointment.Status)
	assert.Equal(t, "80.00", appointment.HourlyRate.StringFixed(2))
	assert.Equal(t, "120.00", appointment.TotalAmount.StringFixed(2))

	var events int64
	require.NoError(t, env.db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventAppointmentBooked).
		Count(&events).Error)
	assert.Equal(t, int64(1), events)
}

func TestBook_Validation(t *testing.T) {
	env := newTestEnv(t)
	caregiverID := env.seedCaregiver(t, "80.00")
	ctx := context.Background()
	clientID := env.seedUser(t, enums.UserRoleClient)
	start := time.Now().UTC().Add(time.Hour)

	_, err := env.svc.Book(ctx, payments.Actor{UserID: clientID, Role: enums.UserRoleClient}, BookParams{
		CaregiverID: caregiverID,
		StartsAt:    start,
		EndsAt:      start,
	})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = env.svc.Book(ctx, payments.Actor{UserID: caregiverID, Role: enums.UserRoleCaregiver}, BookParams{
		CaregiverID: caregiverID,
		StartsAt:    start,
		EndsAt:      start.Add(time.Hour),
	})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = env.svc.Book(ctx, payments.Actor{UserID: clientID, Role: enums.UserRoleClient}, BookParams{
		CaregiverID: uuid.New(),
		StartsAt:    start,
		EndsAt:      start.Add(time.Hour),
	})
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestLifecycle_ConfirmStartComplete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	caregiverID := env.seedCaregiver(t, "100.00")
	clientID := env.seedUser(t, enums.UserRoleClient)
	caregiver := payments.Actor{UserID: caregiverID, Role: enums.UserRoleCaregiver}

	appointment := env.book(t, clientID, caregiverID, 2)

	confirmed, err := env.svc.Confirm(ctx, caregiver, appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.AppointmentStatusConfirmed, confirmed.Status)

	started, err := env.svc.Start(ctx, caregiver, appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.AppointmentStatusInProgress, started.Status)

	completed, err := env.svc.Complete(ctx, caregiver, appointment.ID, CompleteParams{
		PlatformFee: decimal.RequireFromString("20.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.AppointmentStatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	require.NotNil(t, completed.PaymentID)

	// Settlement landed in the caregiver wallet net of fees.
	wallet, err := env.ledger.GetOrCreateWallet(ctx, caregiverID, enums.CurrencyBRL)
	require.NoError(t, err)
	assert.Equal(t, "180.00", wallet.Balance.StringFixed(2))

	var payment models.Payment
	require.NoError(t, env.db.First(&payment, "id = ?", *completed.PaymentID).Error)
	assert.Equal(t, enums.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, clientID, payment.PayerID)
	assert.Equal(t, "200.00", payment.Amount.StringFixed(2))

	var events int64
	require.NoError(t, env.db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventCaregiverSettlementPaid).
		Count(&events).Error)
	assert.Equal(t, int64(1), events)

	// Completing twice is a state conflict and cannot double settle.
	_, err = env.svc.Complete(ctx, caregiver, appointment.ID, CompleteParams{})
	assertCode(t, err, pkgerrors.CodeStateConflict)
}

func TestConfirm_OnlyCaregiver(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	caregiverID := env.seedCaregiver(t, "100.00")
	clientID := env.seedUser(t, enums.UserRoleClient)

	appointment := env.book(t, clientID, caregiverID, 1)

	_, err := env.svc.Confirm(ctx, payments.Actor{UserID: clientID, Role: enums.UserRoleClient}, appointment.ID)
	assertCode(t, err, pkgerrors.CodeForbidden)

	_, err = env.svc.Confirm(ctx, payments.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}, appointment.ID)
	require.NoError(t, err)
}

func TestCancel_FromRequestedAndConfirmed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	caregiverID := env.seedCaregiver(t, "100.00")
	clientID := env.seedUser(t, enums.UserRoleClient)
	client := payments.Actor{UserID: clientID, Role: enums.UserRoleClient}
	caregiver := payments.Actor{UserID: caregiverID, Role: enums.UserRoleCaregiver}

	first := env.book(t, clientID, caregiverID, 1)
	cancelled, err := env.svc.Cancel(ctx, client, first.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.AppointmentStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	second := env.book(t, clientID, caregiverID, 1)
	_, err = env.svc.Confirm(ctx, caregiver, second.ID)
	require.NoError(t, err)
	_, err = env.svc.Cancel(ctx, caregiver, second.ID)
	require.NoError(t, err)

	third := env.book(t, clientID, caregiverID, 1)
	_, err = env.svc.Confirm(ctx, caregiver, third.ID)
	require.NoError(t, err)
	_, err = env.svc.Start(ctx, caregiver, third.ID)
	require.NoError(t, err)
	_, err = env.svc.Cancel(ctx, client, third.ID)
	assertCode(t, err, pkgerrors.CodeStateConflict)

	_, err = env.svc.Cancel(ctx, payments.Actor{UserID: uuid.New(), Role: enums.UserRoleClient}, first.ID)
	assertCode(t, err, pkgerrors.CodeForbidden)
}

func TestMarkNoShow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	caregiverID := env.seedCaregiver(t, "100.00")
	clientID := env.seedUser(t, enums.UserRoleClient)
	caregiver := payments.Actor{UserID: caregiverID, Role: enums.UserRoleCaregiver}

	appointment := env.book(t, clientID, caregiverID, 1)

	_, err := env.svc.MarkNoShow(ctx, caregiver, appointment.ID)
	assertCode(t, err, pkgerrors.CodeStateConflict)

	_, err = env.svc.Confirm(ctx, caregiver, appointment.ID)
	require.NoError(t, err)

	marked, err := env.svc.MarkNoShow(ctx, caregiver, appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.AppointmentStatusNoShow, marked.Status)
}

func TestListAndGet_ScopedToParticipants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	caregiverID := env.seedCaregiver(t, "100.00")
	clientID := env.seedUser(t, enums.UserRoleClient)
	client := payments.Actor{UserID: clientID, Role: enums.UserRoleClient}
	caregiver := payments.Actor{UserID: caregiverID, Role: enums.UserRoleCaregiver}

	appointment := env.book(t, clientID, caregiverID, 1)
	env.book(t, uuid.New(), caregiverID, 1)

	got, err := env.svc.Get(ctx, client, appointment.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.ID, got.ID)

	_, err = env.svc.Get(ctx, payments.Actor{UserID: uuid.New(), Role: enums.UserRoleClient}, appointment.ID)
	assertCode(t, err, pkgerrors.CodeForbidden)

	mine, err := env.svc.List(ctx, client, ListParams{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, mine.Items, 1)

	all, err := env.svc.List(ctx, caregiver, ListParams{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, all.Items, 2)

	requested, err := env.svc.List(ctx, caregiver, ListParams{Status: enums.AppointmentStatusRequested, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, requested.Items, 2)
}
