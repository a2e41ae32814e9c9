package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vidacare-health/vidacare-backend/pkg/enums"
)

// Payment tracks one monetary charge from a payer to a payee.
//
// Amounts are stored as fixed-point decimals. NetAmount is derived at creation
// time as Amount - PlatformFee - GatewayFee and never recomputed afterwards.
type Payment struct {
	ID                   uuid.UUID           `gorm:"type:uuid;primaryKey"`
	PayerID              uuid.UUID           `gorm:"column:payer_id;type:uuid;not null;index"`
	PayeeID              uuid.UUID           `gorm:"column:payee_id;type:uuid;not null;index"`
	AppointmentID        *uuid.UUID          `gorm:"column:appointment_id;type:uuid;index"`
	Type                 enums.PaymentType   `gorm:"column:type;type:payment_type;not null"`
	Method               enums.PaymentMethod `gorm:"column:method;type:payment_method;not null"`
	Status               enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	Currency             enums.Currency      `gorm:"column:currency;type:varchar(3);not null;default:'BRL'"`
	Amount               decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	PlatformFee          decimal.Decimal     `gorm:"column:platform_fee;type:numeric(12,2);not null;default:0"`
	GatewayFee           decimal.Decimal     `gorm:"column:gateway_fee;type:numeric(12,2);not null;default:0"`
	NetAmount            decimal.Decimal     `gorm:"column:net_amount;type:numeric(12,2);not null"`
	RefundedAmount       decimal.Decimal     `gorm:"column:refunded_amount;type:numeric(12,2);not null;default:0"`
	Description          *string             `gorm:"column:description;type:text"`
	GatewayTransactionID *string             `gorm:"column:gateway_transaction_id;uniqueIndex"`
	FailureReason        *string             `gorm:"column:failure_reason"`
	Metadata             json.RawMessage     `gorm:"column:metadata;type:jsonb"`
	ExpiresAt            *time.Time          `gorm:"column:expires_at"`
	PaidAt               *time.Time          `gorm:"column:paid_at"`
	RefundedAt           *time.Time          `gorm:"column:refunded_at"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// IsCompleted reports whether funds settled for this payment.
func (p Payment) IsCompleted() bool {
	return p.Status == enums.PaymentStatusCompleted ||
		p.Status == enums.PaymentStatusPartiallyRefunded
}

// AvailableRefundAmount returns how much can still be refunded.
func (p Payment) AvailableRefundAmount() decimal.Decimal {
	remaining := p.Amount.Sub(p.RefundedAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// CanRefund reports whether a refund of the given amount is allowed.
func (p Payment) CanRefund(amount decimal.Decimal) bool {
	if !p.IsCompleted() {
		return false
	}
	if !amount.IsPositive() {
		return false
	}
	return amount.LessThanOrEqual(p.AvailableRefundAmount())
}

// IsExpired reports whether the payment passed its expiry while still pending.
func (p Payment) IsExpired(now time.Time) bool {
	if p.ExpiresAt == nil {
		return false
	}
	return p.Status == enums.PaymentStatusPending && now.After(*p.ExpiresAt)
}
