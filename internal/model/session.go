package model

import (
	"time"
)

// Session is a bearer credential for a mobile client.
//
// Logout flips IsActive instead of deleting the row, so the audit trail of
// issued credentials survives. Expiry is checked on every validation; an
// expired session is rejected, never extended.
type Session struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Token      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	UserID     int64     `gorm:"index;not null" json:"user_id"`
	DeviceInfo string    `gorm:"type:varchar(256)" json:"device_info"`
	ExpiresAt  time.Time `gorm:"not null;index" json:"expires_at"`
	IsActive   bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Session) TableName() string {
	return "user_session"
}
