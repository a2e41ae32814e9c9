package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage stores one message inside an appointment conversation.
type ChatMessage struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	AppointmentID uuid.UUID  `gorm:"column:appointment_id;type:uuid;not null;index"`
	SenderID      uuid.UUID  `gorm:"column:sender_id;type:uuid;not null"`
	RecipientID   uuid.UUID  `gorm:"column:recipient_id;type:uuid;not null;index"`
	Body          string     `gorm:"column:body;type:text;not null"`
	ReadAt        *time.Time `gorm:"column:read_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
}
