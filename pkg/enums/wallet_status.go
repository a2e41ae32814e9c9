package enums

import "fmt"

// WalletStatus gates whether a wallet accepts new ledger entries.
type WalletStatus string

const (
	WalletStatusActive    WalletStatus = "active"
	WalletStatusSuspended WalletStatus = "suspended"
	WalletStatusBlocked   WalletStatus = "blocked"
)

var validWalletStatuses = []WalletStatus{
	WalletStatusActive,
	WalletStatusSuspended,
	WalletStatusBlocked,
}

// IsValid reports whether the value is a known WalletStatus.
func (w WalletStatus) IsValid() bool {
	for _, candidate := range validWalletStatuses {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWalletStatus converts raw input into a WalletStatus.
func ParseWalletStatus(value string) (WalletStatus, error) {
	for _, candidate := range validWalletStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet status %q", value)
}
