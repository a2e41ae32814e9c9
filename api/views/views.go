// Package views maps persisted rows to API payloads. Derived fields come from
// the model helpers so callers never recompute refund or withdrawal math.
package views

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vidacare-health/vidacare-backend/pkg/db/models"
	"github.com/vidacare-health/vidacare-backend/pkg/enums"
)

// PaymentView is the API shape of a payment row.
type PaymentView struct {
	ID                    uuid.UUID           `json:"id"`
	PayerID               uuid.UUID           `json:"payerId"`
	PayeeID               uuid.UUID           `json:"payeeId"`
	AppointmentID         *uuid.UUID          `json:"appointmentId,omitempty"`
	Type                  enums.PaymentType   `json:"type"`
	Method                enums.PaymentMethod `json:"method"`
	Status                enums.PaymentStatus `json:"status"`
	Currency              enums.Currency      `json:"currency"`
	Amount                decimal.Decimal     `json:"amount"`
	PlatformFee           decimal.Decimal     `json:"platformFee"`
	GatewayFee            decimal.Decimal     `json:"gatewayFee"`
	NetAmount             decimal.Decimal     `json:"netAmount"`
	RefundedAmount        decimal.Decimal     `json:"refundedAmount"`
	AvailableRefundAmount decimal.Decimal     `json:"availableRefundAmount"`
	CanRefund             bool                `json:"canRefund"`
	IsExpired             bool                `json:"isExpired"`
	Description           *string             `json:"description,omitempty"`
	FailureReason         *string             `json:"failureReason,omitempty"`
	ExpiresAt             *time.Time          `json:"expiresAt,omitempty"`
	PaidAt                *time.Time          `json:"paidAt,omitempty"`
	RefundedAt            *time.Time          `json:"refundedAt,omitempty"`
	CreatedAt             time.Time           `json:"createdAt"`
	UpdatedAt             time.Time           `json:"updatedAt"`
}

// NewPaymentView builds the API view of one payment at the given instant.
func NewPaymentView(p models.Payment, now time.Time) PaymentView {
	available := p.AvailableRefundAmount()
	return PaymentView{
		ID:                    p.ID,
		PayerID:               p.PayerID,
		PayeeID:               p.PayeeID,
		AppointmentID:         p.AppointmentID,
		Type:                  p.Type,
		Method:                p.Method,
		Status:                p.Status,
		Currency:              p.Currency,
		Amount:                p.Amount,
		PlatformFee:           p.PlatformFee,
		GatewayFee:            p.GatewayFee,
		NetAmount:             p.NetAmount,
		RefundedAmount:        p.RefundedAmount,
		AvailableRefundAmount: available,
		CanRefund:             p.CanRefund(available),
		IsExpired:             p.IsExpired(now),
		Description:           p.Description,
		FailureReason:         p.FailureReason,
		ExpiresAt:             p.ExpiresAt,
		PaidAt:                p.PaidAt,
		RefundedAt:            p.RefundedAt,
		CreatedAt:             p.CreatedAt,
		UpdatedAt:             p.UpdatedAt,
	}
}

// NewPaymentViews maps a page of payments.
func NewPaymentViews(rows []models.Payment, now time.Time) []PaymentView {
	out := make([]PaymentView, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewPaymentView(row, now))
	}
	return out
}

// WalletView is the API shape of a wallet row.
type WalletView struct {
	ID               uuid.UUID          `json:"id"`
	UserID           uuid.UUID          `json:"userId"`
	Currency         enums.Currency     `json:"currency"`
	Status           enums.WalletStatus `json:"status"`
	Balance          decimal.Decimal    `json:"balance"`
	AvailableBalance decimal.Decimal    `json:"availableBalance"`
	PendingBalance   decimal.Decimal    `json:"pendingBalance"`
	ReservedBalance  decimal.Decimal    `json:"reservedBalance"`
	TotalBalance     decimal.Decimal    `json:"totalBalance"`
	TotalReceived    decimal.Decimal    `json:"totalReceived"`
	TotalSent        decimal.Decimal    `json:"totalSent"`
	TotalWithdrawn   decimal.Decimal    `json:"totalWithdrawn"`
	CanWithdraw      bool               `json:"canWithdraw"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// NewWalletView builds the API view of one wallet. CanWithdraw reports
// whether any positive amount could leave the wallet right now.
func NewWalletView(w models.Wallet) WalletView {
	return WalletView{
		ID:               w.ID,
		UserID:           w.UserID,
		Currency:         w.Currency,
		Status:           w.Status,
		Balance:          w.Balance,
		AvailableBalance: w.AvailableBalance,
		PendingBalance:   w.PendingBalance,
		ReservedBalance:  w.ReservedBalance,
		TotalBalance:     w.TotalBalance(),
		TotalReceived:    w.TotalReceived,
		TotalSent:        w.TotalSent,
		TotalWithdrawn:   w.TotalWithdrawn,
		CanWithdraw:      w.IsActive() && w.AvailableBalance.IsPositive(),
		CreatedAt:        w.CreatedAt,
		UpdatedAt:        w.UpdatedAt,
	}
}

// WalletTransactionView is the API shape of one ledger entry.
type WalletTransactionView struct {
	ID            uuid.UUID               `json:"id"`
	WalletID      uuid.UUID               `json:"walletId"`
	PaymentID     *uuid.UUID              `json:"paymentId,omitempty"`
	Type          enums.TransactionType   `json:"type"`
	Status        enums.TransactionStatus `json:"status"`
	Amount        decimal.Decimal         `json:"amount"`
	SignedAmount  decimal.Decimal         `json:"signedAmount"`
	IsCredit      bool                    `json:"isCredit"`
	BalanceBefore decimal.Decimal         `json:"balanceBefore"`
	BalanceAfter  decimal.Decimal         `json:"balanceAfter"`
	Description   *string                 `json:"description,omitempty"`
	ReferenceID   string                  `json:"referenceId"`
	Metadata      json.RawMessage         `json:"metadata,omitempty"`
	CreatedAt     time.Time               `json:"createdAt"`
}

// NewWalletTransactionView builds the API view of one ledger entry.
func NewWalletTransactionView(t models.WalletTransaction) WalletTransactionView {
	return WalletTransactionView{
		ID:            t.ID,
		WalletID:      t.WalletID,
		PaymentID:     t.PaymentID,
		Type:          t.Type,
		Status:        t.Status,
		Amount:        t.Amount,
		SignedAmount:  t.SignedAmount(),
		IsCredit:      t.Type.IsCredit(),
		BalanceBefore: t.BalanceBefore,
		BalanceAfter:  t.BalanceAfter,
		Description:   t.Description,
		ReferenceID:   t.ReferenceID,
		Metadata:      t.Metadata,
		CreatedAt:     t.CreatedAt,
	}
}

// NewWalletTransactionViews maps a page of ledger entries.
func NewWalletTransactionViews(rows []models.WalletTransaction) []WalletTransactionView {
	out := make([]WalletTransactionView, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewWalletTransactionView(row))
	}
	return out
}
