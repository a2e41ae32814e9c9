package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vidacare-health/vidacare-backend/pkg/enums"
)

// Appointment represents a scheduled care session between a client and a caregiver.
type Appointment struct {
	ID          uuid.UUID               `gorm:"type:uuid;primaryKey"`
	ClientID    uuid.UUID               `gorm:"column:client_id;type:uuid;not null;index"`
	CaregiverID uuid.UUID               `gorm:"column:caregiver_id;type:uuid;not null;index"`
	Status      enums.AppointmentStatus `gorm:"column:status;type:appointment_status;not null;default:'requested'"`
	StartsAt    time.Time               `gorm:"column:starts_at;not null"`
	EndsAt      time.Time               `gorm:"column:ends_at;not null"`
	HourlyRate  decimal.Decimal         `gorm:"column:hourly_rate;type:numeric(12,2);not null"`
	TotalAmount decimal.Decimal         `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency    enums.Currency          `gorm:"column:currency;type:varchar(3);not null;default:'BRL'"`
	Notes       *string                 `gorm:"column:notes;type:text"`
	PaymentID   *uuid.UUID              `gorm:"column:payment_id;type:uuid"`
	CancelledAt *time.Time              `gorm:"column:cancelled_at"`
	CompletedAt *time.Time              `gorm:"column:completed_at"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

// DurationHours returns the booked duration in fractional hours.
func (a Appointment) DurationHours() decimal.Decimal {
	minutes := a.EndsAt.Sub(a.StartsAt).Minutes()
	return decimal.NewFromFloat(minutes).Div(decimal.NewFromInt(60))
}
