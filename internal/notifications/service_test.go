package notifications

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

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

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()

	dsn := "file:notifications_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.Notification{}, &models.OutboxEvent{}))

	events := outbox.NewService(outbox.NewRepository(db), nil)
	svc, err := NewService(NewRepository(db), gormTxRunner{db: db}, events, nil)
	require.NoError(t, err)
	return svc, db
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	pkgErr := pkgerrors.As(err)
	require.NotNil(t, pkgErr, "expected a typed error, got %v", err)
	assert.Equal(t, code, pkgErr.Code())
}

func seed(t *testing.T, svc Service, userID uuid.UUID, n int) []*models.Notification {
	t.Helper()
	rows := make([]*models.Notification, 0, n)
	for i := 0; i < n; i++ {
		row, err := svc.Create(context.Background(), CreateParams{
			UserID:  userID,
			Type:    enums.NotificationTypePaymentUpdate,
			Title:   fmt.Sprintf("Payment update %d", i),
			Message: "Your payment settled.",
		})
		require.NoError(t, err)
		rows = append(rows, row)
		time.Sleep(2 * time.Millisecond)
	}
	return rows
}

func TestCreate(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	row, err := svc.Create(ctx, CreateParams{
		UserID:  userID,
		Type:    enums.NotificationTypeWalletUpdate,
		Title:   "Funds received",
		Message: "R$ 180.00 landed in your wallet.",
	})
	require.NoError(t, err)
	assert.Nil(t, row.ReadAt)

	var events int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventNotificationRequested).
		Count(&events).Error)
	assert.Equal(t, int64(1), events)

	_, err = svc.Create(ctx, CreateParams{
		UserID:  userID,
		Type:    enums.NotificationType("push"),
		Title:   "x",
		Message: "y",
	})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Create(ctx, CreateParams{
		UserID: userID,
		Type:   enums.NotificationTypeWalletUpdate,
		Title:  "  ",
	})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestList_ScopesAndPaginates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	seed(t, svc, userID, 5)
	seed(t, svc, uuid.New(), 2)

	first, err := svc.List(ctx, userID, ListParams{Limit: 3})
	require.NoError(t, err)
	require.Len(t, first.Items, 3)
	require.NotEmpty(t, first.Cursor)
	assert.Equal(t, "Payment update 4", first.Items[0].Title)

	rest, err := svc.List(ctx, userID, ListParams{Limit: 3, Cursor: first.Cursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 2)
	assert.Empty(t, rest.Cursor)
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	rows := seed(t, svc, userID, 3)

	count, err := svc.UnreadCount(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	_, err = svc.MarkRead(ctx, uuid.New(), rows[0].ID)
	assertCode(t, err, pkgerrors.CodeForbidden)

	read, err := svc.MarkRead(ctx, userID, rows[0].ID)
	require.NoError(t, err)
	require.NotNil(t, read.ReadAt)

	count, err = svc.UnreadCount(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	unread, err := svc.List(ctx, userID, ListParams{UnreadOnly: true, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, unread.Items, 2)

	_, err = svc.MarkRead(ctx, userID, uuid.New())
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestMarkAllRead(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()

	seed(t, svc, userID, 4)

	count, err := svc.MarkAllRead(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	count, err = svc.MarkAllRead(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, count)
}
