package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Attendee is a registered guest together with the single-use code issued to them.
type Attendee struct {
	BaseModel

	Name        string         `gorm:"size:200;not null" json:"name"`
	Email       string         `gorm:"size:320;not null;uniqueIndex" json:"email"`
	Phone       *string        `json:"phone,omitempty"`
	Code        string         `gorm:"size:64;not null;uniqueIndex" json:"code"`
	CodePayload datatypes.JSON `gorm:"not null" json:"code_payload"`
	Used        bool           `gorm:"not null;default:false;index" json:"used"`
	UsedAt      *time.Time     `json:"used_at,omitempty"`
	ExpiresAt   time.Time      `gorm:"not null" json:"expires_at"`
}

// BeforeCreate assigns the identifier and stores the email in its normalized form.
func (a *Attendee) BeforeCreate(tx *gorm.DB) error {
	if err := a.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	a.Email = NormalizeEmail(a.Email)
	return nil
}

// Expired reports whether the code can no longer be redeemed at the given instant.
func (a *Attendee) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// NormalizeEmail trims and lower-cases an address so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
