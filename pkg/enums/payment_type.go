package enums

import "fmt"

// PaymentType classifies what a payment is paying for.
type PaymentType string

const (
	PaymentTypeAppointment  PaymentType = "appointment"
	PaymentTypeSubscription PaymentType = "subscription"
	PaymentTypeService      PaymentType = "service"
)

var validPaymentTypes = []PaymentType{
	PaymentTypeAppointment,
	PaymentTypeSubscription,
	PaymentTypeService,
}

// IsValid reports whether the value is a known PaymentType.
func (p PaymentType) IsValid() bool {
	for _, candidate := range validPaymentTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentType converts raw input into a PaymentType.
func ParsePaymentType(value string) (PaymentType, error) {
	for _, candidate := range validPaymentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment type %q", value)
}
