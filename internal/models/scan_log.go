package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ScanLog records a single validation attempt made by an operator.
type ScanLog struct {
	ID         string         `gorm:"primaryKey;size:36" json:"id"`
	AttendeeID *string        `gorm:"size:36;index" json:"attendee_id,omitempty"`
	Code       string         `gorm:"size:255;index" json:"code"`
	Mode       string         `gorm:"not null" json:"mode"`
	Status     string         `gorm:"not null;index" json:"status"`
	Operator   string         `json:"operator"`
	IPAddress  string         `json:"ip_address"`
	UserAgent  string         `json:"user_agent"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (s *ScanLog) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
