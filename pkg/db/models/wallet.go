package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vidacare-health/vidacare-backend/pkg/enums"
)

// Wallet holds per-user balances in one currency. A user owns at most one
// wallet per currency.
//
// Version backs optimistic concurrency control. Every balance mutation
// increments it, and writers compare-and-swap on the value they read.
type Wallet struct {
	ID               uuid.UUID          `gorm:"type:uuid;primaryKey"`
	UserID           uuid.UUID          `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_wallets_user_currency"`
	Currency         enums.Currency     `gorm:"column:currency;type:varchar(3);not null;default:'BRL';uniqueIndex:idx_wallets_user_currency"`
	Status           enums.WalletStatus `gorm:"column:status;type:wallet_status;not null;default:'active'"`
	Balance          decimal.Decimal    `gorm:"column:balance;type:numeric(12,2);not null;default:0"`
	AvailableBalance decimal.Decimal    `gorm:"column:available_balance;type:numeric(12,2);not null;default:0"`
	PendingBalance   decimal.Decimal    `gorm:"column:pending_balance;type:numeric(12,2);not null;default:0"`
	ReservedBalance  decimal.Decimal    `gorm:"column:reserved_balance;type:numeric(12,2);not null;default:0"`
	TotalReceived    decimal.Decimal    `gorm:"column:total_received;type:numeric(12,2);not null;default:0"`
	TotalSent        decimal.Decimal    `gorm:"column:total_sent;type:numeric(12,2);not null;default:0"`
	TotalWithdrawn   decimal.Decimal    `gorm:"column:total_withdrawn;type:numeric(12,2);not null;default:0"`
	Version          int64              `gorm:"column:version;not null;default:0"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// TotalBalance sums every bucket the wallet tracks.
func (w Wallet) TotalBalance() decimal.Decimal {
	return w.Balance.Add(w.PendingBalance).Add(w.ReservedBalance)
}

// IsActive reports whether the wallet accepts new ledger entries.
func (w Wallet) IsActive() bool {
	return w.Status == enums.WalletStatusActive
}

// CanWithdraw reports whether the available balance covers the given amount.
func (w Wallet) CanWithdraw(amount decimal.Decimal) bool {
	if !w.IsActive() || !amount.IsPositive() {
		return false
	}
	return amount.LessThanOrEqual(w.AvailableBalance)
}
