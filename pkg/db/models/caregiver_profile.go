package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CaregiverProfile extends a caregiver user with marketplace data.
type CaregiverProfile struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UserID          uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Bio             *string         `gorm:"column:bio;type:text"`
	Specialties     json.RawMessage `gorm:"column:specialties;type:jsonb"`
	HourlyRate      decimal.Decimal `gorm:"column:hourly_rate;type:numeric(12,2);not null"`
	City            string          `gorm:"column:city;not null"`
	State           string          `gorm:"column:state;not null"`
	YearsExperience int             `gorm:"column:years_experience;not null;default:0"`
	Verified        bool            `gorm:"column:verified;not null;default:false"`
	RatingAverage   decimal.Decimal `gorm:"column:rating_average;type:numeric(3,2);not null;default:0"`
	RatingCount     int             `gorm:"column:rating_count;not null;default:0"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
