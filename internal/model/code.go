package model

import (
	"time"
)

const (
	CodeStatusActive   = "ACTIVE"
	CodeStatusRedeemed = "REDEEMED"
	CodeStatusRevoked  = "REVOKED"
)

// Code is a single-use redemption code tied to a physical product.
//
// ACTIVE -> REDEEMED and ACTIVE -> REVOKED are the only transitions, both
// terminal, both applied as conditional updates on status. RedeemedBy and
// RedeemedAt are written exactly once, on the transition to REDEEMED.
type Code struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Code         string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"` // public code value
	ProductName  string     `gorm:"type:varchar(128);not null" json:"product_name"`
	Category     string     `gorm:"type:varchar(64);not null" json:"category"`
	Points       int64      `gorm:"not null" json:"points"` // reward value, always > 0
	Description  string     `gorm:"type:text" json:"description"`
	Status       string     `gorm:"type:varchar(20);index;not null;default:ACTIVE" json:"status"`
	CreatedBy    int64      `gorm:"index;not null" json:"created_by"` // operator user id
	RedeemedBy   *int64     `gorm:"index" json:"redeemed_by"`
	RedeemedAt   *time.Time `json:"redeemed_at"`
	ScannedCount int64      `gorm:"not null;default:0" json:"scanned_count"` // lifetime attempts, observational
	LastScanned  *time.Time `json:"last_scanned"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Code) TableName() string {
	return "qr_code"
}
