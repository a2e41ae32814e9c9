package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vidacare-health/vidacare-backend/pkg/enums"
)

// WalletTransaction is one append-only ledger entry against a wallet.
//
// BalanceBefore and BalanceAfter snapshot the wallet balance around the entry
// so the full history replays to the current balance. ReferenceID dedupes
// business operations per wallet.
type WalletTransaction struct {
	ID            uuid.UUID               `gorm:"type:uuid;primaryKey"`
	WalletID      uuid.UUID               `gorm:"column:wallet_id;type:uuid;not null;index;uniqueIndex:idx_wallet_txns_reference"`
	PaymentID     *uuid.UUID              `gorm:"column:payment_id;type:uuid;index"`
	Type          enums.TransactionType   `gorm:"column:type;type:transaction_type;not null"`
	Status        enums.TransactionStatus `gorm:"column:status;type:transaction_status;not null;default:'completed'"`
	Amount        decimal.Decimal         `gorm:"column:amount;type:numeric(12,2);not null"`
	BalanceBefore decimal.Decimal         `gorm:"column:balance_before;type:numeric(12,2);not null"`
	BalanceAfter  decimal.Decimal         `gorm:"column:balance_after;type:numeric(12,2);not null"`
	Description   *string                 `gorm:"column:description;type:text"`
	ReferenceID   string                  `gorm:"column:reference_id;not null;uniqueIndex:idx_wallet_txns_reference"`
	Metadata      json.RawMessage         `gorm:"column:metadata;type:jsonb"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime"`
}

// SignedAmount returns the amount with the direction applied: positive for
// credits, negative for debits. Signed types already carry their direction.
func (t WalletTransaction) SignedAmount() decimal.Decimal {
	if t.Type.IsDebit() && t.Amount.IsPositive() {
		return t.Amount.Neg()
	}
	return t.Amount
}
