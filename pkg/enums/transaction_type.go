package enums

import "fmt"

// TransactionType classifies a wallet ledger entry.
type TransactionType string

const (
	TransactionTypeDeposit     TransactionType = "deposit"
	TransactionTypeWithdrawal  TransactionType = "withdrawal"
	TransactionTypePayment     TransactionType = "payment"
	TransactionTypeRefund      TransactionType = "refund"
	TransactionTypeTransferIn  TransactionType = "transfer_in"
	TransactionTypeTransferOut TransactionType = "transfer_out"
	TransactionTypeFee         TransactionType = "fee"
	TransactionTypeCommission  TransactionType = "commission"
	TransactionTypeAdjustment  TransactionType = "adjustment"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeDeposit,
	TransactionTypeWithdrawal,
	TransactionTypePayment,
	TransactionTypeRefund,
	TransactionTypeTransferIn,
	TransactionTypeTransferOut,
	TransactionTypeFee,
	TransactionTypeCommission,
	TransactionTypeAdjustment,
}

var creditTransactionTypes = map[TransactionType]bool{
	TransactionTypeDeposit:    true,
	TransactionTypeRefund:     true,
	TransactionTypeTransferIn: true,
}

var debitTransactionTypes = map[TransactionType]bool{
	TransactionTypeWithdrawal:  true,
	TransactionTypePayment:     true,
	TransactionTypeTransferOut: true,
	TransactionTypeFee:         true,
}

// String implements fmt.Stringer.
func (t TransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransactionType.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsCredit reports whether the type always increases the wallet balance.
func (t TransactionType) IsCredit() bool {
	return creditTransactionTypes[t]
}

// IsDebit reports whether the type always decreases the wallet balance.
func (t TransactionType) IsDebit() bool {
	return debitTransactionTypes[t]
}

// IsSigned reports whether the entry direction follows the declared amount
// sign rather than the type. Commissions and adjustments move either way.
func (t TransactionType) IsSigned() bool {
	return t == TransactionTypeCommission || t == TransactionTypeAdjustment
}

// ParseTransactionType converts raw input into a TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}
