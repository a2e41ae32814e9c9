package dashboard

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/vidacare-health/vidacare-backend/internal/payments"
	"github.com/vidacare-health/vidacare-backend/pkg/db/models"
	"github.com/vidacare-health/vidacare-backend/pkg/enums"
	pkgerrors "github.com/vidacare-health/vidacare-backend/pkg/errors"
	"github.com/vidacare-health/vidacare-backend/pkg/logger"
)

// Service exposes read-only platform aggregates for the admin dashboard.
// Every figure derives from persisted rows; nothing here mutates state.
type Service interface {
	Overview(ctx context.Context, actor payments.Actor) (*Overview, error)
}

// Overview bundles the admin dashboard figures.
type Overview struct {
	Payments PaymentStats `json:"payments"`
	Wallets  WalletStats  `json:"wallets"`
	Users    UserStats    `json:"users"`
}

// PaymentStats summarizes payment volume and the platform's take.
type PaymentStats struct {
	CountByStatus  map[enums.PaymentStatus]int64 `json:"countByStatus"`
	CompletedTotal decimal.Decimal               `json:"completedTotal"`
	FeeRevenue     decimal.Decimal               `json:"feeRevenue"`
	RefundedTotal  decimal.Decimal               `json:"refundedTotal"`
}

// WalletStats summarizes the ledger liability.
type WalletStats struct {
	Count          int64           `json:"count"`
	TotalBalance   decimal.Decimal `json:"totalBalance"`
	TotalWithdrawn decimal.Decimal `json:"totalWithdrawn"`
}

// UserStats counts accounts by role.
type UserStats struct {
	CountByRole map[enums.UserRole]int64 `json:"countByRole"`
}

type service struct {
	db   *gorm.DB
	logg *logger.Logger
}

// NewService wires the dashboard over a read-only database handle.
func NewService(db *gorm.DB, logg *logger.Logger) (Service, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "database required")
	}
	return &service{db: db, logg: logg}, nil
}

// Overview collects every aggregate, accumulating partial failures so one
// broken query does not hide the rest of the report.
func (s *service) Overview(ctx context.Context, actor payments.Actor) (*Overview, error) {
	if actor.Role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin only")
	}

	overview := &Overview{
		Payments: PaymentStats{CountByStatus: map[enums.PaymentStatus]int64{}},
		Users:    UserStats{CountByRole: map[enums.UserRole]int64{}},
	}

	var errs error
	errs = multierr.Append(errs, s.collectPaymentStats(ctx, &overview.Payments))
	errs = multierr.Append(errs, s.collectWalletStats(ctx, &overview.Wallets))
	errs = multierr.Append(errs, s.collectUserStats(ctx, &overview.Users))
	if errs != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "collect dashboard aggregates")
	}
	return overview, nil
}

func (s *service) collectPaymentStats(ctx context.Context, stats *PaymentStats) error {
	type statusCount struct {
		Status enums.PaymentStatus
		Count  int64
	}
	var counts []statusCount
	if err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&counts).Error; err != nil {
		return err
	}
	for _, row := range counts {
		stats.CountByStatus[row.Status] = row.Count
	}

	type sums struct {
		CompletedTotal decimal.NullDecimal
		FeeRevenue     decimal.NullDecimal
		RefundedTotal  decimal.NullDecimal
	}
	var totals sums
	err := s.db.WithContext(ctx).Model(&models.Payment{}).
		Select(
			"SUM(CASE WHEN status IN ('completed','partially_refunded','refunded') THEN amount ELSE 0 END) AS completed_total, " +
				"SUM(CASE WHEN status IN ('completed','partially_refunded','refunded') THEN platform_fee + gateway_fee ELSE 0 END) AS fee_revenue, " +
				"SUM(refunded_amount) AS refunded_total").
		Scan(&totals).Error
	if err != nil {
		return err
	}
	stats.CompletedTotal = totals.CompletedTotal.Decimal
	stats.FeeRevenue = totals.FeeRevenue.Decimal
	stats.RefundedTotal = totals.RefundedTotal.Decimal
	return nil
}

func (s *service) collectWalletStats(ctx context.Context, stats *WalletStats) error {
	if err := s.db.WithContext(ctx).Model(&models.Wallet{}).
		Count(&stats.Count).Error; err != nil {
		return err
	}

	type sums struct {
		TotalBalance   decimal.NullDecimal
		TotalWithdrawn decimal.NullDecimal
	}
	var totals sums
	err := s.db.WithContext(ctx).Model(&models.Wallet{}).
		Select("SUM(balance) AS total_balance, SUM(total_withdrawn) AS total_withdrawn").
		Scan(&totals).Error
	if err != nil {
		return err
	}
	stats.TotalBalance = totals.TotalBalance.Decimal
	stats.TotalWithdrawn = totals.TotalWithdrawn.Decimal
	return nil
}

func (s *service) collectUserStats(ctx context.Context, stats *UserStats) error {
	type roleCount struct {
		Role  enums.UserRole
		Count int64
	}
	var counts []roleCount
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Select("role, COUNT(*) AS count").
		Group("role").
		Scan(&counts).Error; err != nil {
		return err
	}
	for _, row := range counts {
		stats.CountByRole[row.Role] = row.Count
	}
	return nil
}
