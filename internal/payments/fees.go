package payments

import "github.com/shopspring/decimal"

// NetAmount returns amount minus the platform and gateway fees.
//
// The result is what the payee's wallet receives once the payment settles.
// Callers must reject payments whose net amount is not positive.
func NetAmount(amount, platformFee, gatewayFee decimal.Decimal) decimal.Decimal {
	return amount.Sub(platformFee).Sub(gatewayFee)
}
